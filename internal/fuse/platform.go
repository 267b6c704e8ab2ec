package fuse

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/remotefs/remotefs/internal/config"
	rfserrors "github.com/remotefs/remotefs/pkg/errors"
)

// PlatformFileSystem is a mounted filesystem, whichever FUSE binding serves it.
type PlatformFileSystem interface {
	Mount(ctx context.Context) error
	Unmount() error
	IsMounted() bool
	Wait()
	GetMountPoint() string
	GetStats() *FilesystemStats
}

// MountConfig contains mount-specific configuration
type MountConfig struct {
	MountPoint string
	FSName     string
	AllowOther bool
	Debug      bool

	// LockDir holds the per-mount-point lock files. Defaults to os.TempDir().
	LockDir string
}

// NewMountConfig derives mount settings from the application configuration.
func NewMountConfig(cfg *config.Configuration) *MountConfig {
	return &MountConfig{
		MountPoint: cfg.Mount.MountPoint,
		FSName:     cfg.Mount.FSName,
		AllowOther: cfg.Mount.AllowOther,
		Debug:      cfg.Mount.Debug,
	}
}

func (c *MountConfig) withDefaults() MountConfig {
	out := *c
	if out.FSName == "" {
		out.FSName = config.DefaultFSName
	}
	if out.LockDir == "" {
		out.LockDir = os.TempDir()
	}
	return out
}

// prepareMountPoint creates the mount point if needed and checks it is a
// directory nobody else has mounted on.
func prepareMountPoint(mountPoint string) error {
	if mountPoint == "" {
		return rfserrors.NewError(rfserrors.ErrCodePathInvalid, "mount point cannot be empty")
	}

	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return pathError("cannot create mount point", mountPoint, err)
	}

	info, err := os.Stat(mountPoint)
	if err != nil {
		return pathError("cannot access mount point", mountPoint, err)
	}
	if !info.IsDir() {
		return rfserrors.NewError(rfserrors.ErrCodePathInvalid, "mount point is not a directory").
			WithDetail("mount_point", mountPoint)
	}

	if isAlreadyMounted(mountPoint) {
		return rfserrors.NewError(rfserrors.ErrCodeAlreadyMounted, "mount point is already mounted").
			WithDetail("mount_point", mountPoint)
	}
	return nil
}

func pathError(msg, mountPoint string, err error) error {
	code := rfserrors.ErrCodePathInvalid
	if errors.Is(err, fs.ErrPermission) {
		code = rfserrors.ErrCodePermissionDenied
	}
	return rfserrors.NewError(code, msg).WithDetail("mount_point", mountPoint).WithCause(err)
}

// lockMountPoint takes an exclusive, non-blocking lock tied to mountPoint so
// two processes cannot serve the same directory.
func lockMountPoint(lockDir, mountPoint string) (*flock.Flock, error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, pathError("cannot create lock directory", mountPoint, err)
	}

	lock := flock.New(lockPath(lockDir, mountPoint))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, rfserrors.NewError(rfserrors.ErrCodeMountFailed, "cannot lock mount point").
			WithDetail("lock_file", lock.Path()).WithCause(err)
	}
	if !locked {
		return nil, rfserrors.NewError(rfserrors.ErrCodeAlreadyMounted, "mount point is served by another process").
			WithDetail("mount_point", mountPoint).WithDetail("lock_file", lock.Path())
	}
	return lock, nil
}

func lockPath(lockDir, mountPoint string) string {
	clean := filepath.Clean(mountPoint)
	name := strings.ReplaceAll(strings.Trim(filepath.ToSlash(clean), "/"), "/", "_")
	if name == "" {
		name = "root"
	}
	return filepath.Join(lockDir, "remotefs-"+name+".lock")
}

// isAlreadyMounted reports whether mountPoint appears in /proc/mounts. It is
// always false where that file does not exist.
func isAlreadyMounted(mountPoint string) bool {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return false
	}
	defer f.Close()

	target := filepath.Clean(mountPoint)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == target {
			return true
		}
	}
	return false
}
