package fuse

import (
	"syscall"

	rfserrors "github.com/remotefs/remotefs/pkg/errors"
)

func lazyUnmount(mountPoint string) error {
	return syscall.Unmount(mountPoint, syscall.MNT_FORCE)
}

// UnmountPath detaches a mount owned by another process.
func UnmountPath(mountPoint string) error {
	if err := syscall.Unmount(mountPoint, 0); err != nil {
		return rfserrors.NewError(rfserrors.ErrCodeUnmountFailed, "unmount failed").
			WithDetail("mount_point", mountPoint).WithCause(err)
	}
	return nil
}
