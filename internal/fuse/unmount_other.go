//go:build !linux && !darwin

package fuse

import (
	"fmt"
	"runtime"

	rfserrors "github.com/remotefs/remotefs/pkg/errors"
)

func lazyUnmount(mountPoint string) error {
	return fmt.Errorf("lazy unmount of %s is not supported on %s", mountPoint, runtime.GOOS)
}

// UnmountPath is not available here; cgofuse mounts end with the process.
func UnmountPath(mountPoint string) error {
	return rfserrors.Newf(rfserrors.ErrCodeUnmountFailed, "unmounting from another process is not supported on %s", runtime.GOOS).
		WithDetail("mount_point", mountPoint)
}
