package fuse

import (
	"os/exec"
	"syscall"

	rfserrors "github.com/remotefs/remotefs/pkg/errors"
)

func lazyUnmount(mountPoint string) error {
	return syscall.Unmount(mountPoint, syscall.MNT_DETACH)
}

// UnmountPath detaches a mount owned by another process. Unprivileged users
// go through fusermount; root can unmount directly.
func UnmountPath(mountPoint string) error {
	var errs []string
	for _, bin := range []string{"fusermount3", "fusermount"} {
		path, err := exec.LookPath(bin)
		if err != nil {
			continue
		}
		out, err := exec.Command(path, "-u", mountPoint).CombinedOutput()
		if err == nil {
			return nil
		}
		errs = append(errs, bin+": "+string(out))
	}

	if err := syscall.Unmount(mountPoint, 0); err != nil {
		return rfserrors.NewError(rfserrors.ErrCodeUnmountFailed, "unmount failed").
			WithDetail("mount_point", mountPoint).
			WithDetail("fusermount", errs).WithCause(err)
	}
	return nil
}
