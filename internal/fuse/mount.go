//go:build !cgofuse

package fuse

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"github.com/gofrs/flock"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/sirupsen/logrus"

	rfserrors "github.com/remotefs/remotefs/pkg/errors"
	"github.com/remotefs/remotefs/pkg/utils"
)

// fuseServer is the part of *fuse.Server the mount manager drives.
type fuseServer interface {
	Serve()
	WaitMount() error
	Unmount() error
	Wait()
}

type serverFactory func(fs fuse.RawFileSystem, mountPoint string, opts *fuse.MountOptions) (fuseServer, error)

func newGoFuseServer(fs fuse.RawFileSystem, mountPoint string, opts *fuse.MountOptions) (fuseServer, error) {
	server, err := fuse.NewServer(fs, mountPoint, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// MountManager manages FUSE mount operations
type MountManager struct {
	handler *Handler
	config  MountConfig
	log     *logrus.Entry

	newServer   serverFactory
	lazyUnmount func(mountPoint string) error

	mu      sync.Mutex
	server  fuseServer
	lock    *flock.Flock
	mounted bool
	done    chan struct{}
}

// NewMountManager creates a new mount manager
func NewMountManager(handler *Handler, config *MountConfig, logger *logrus.Entry) *MountManager {
	if logger == nil {
		logger = logrus.WithField("component", "mount")
	}
	return &MountManager{
		handler:     handler,
		config:      config.withDefaults(),
		log:         logger.WithField("mount_point", config.MountPoint),
		newServer:   newGoFuseServer,
		lazyUnmount: lazyUnmount,
	}
}

// Mount prepares the mount point, checks the metadata service and starts
// serving. It returns once the kernel has acknowledged the mount.
func (m *MountManager) Mount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mounted {
		return rfserrors.NewError(rfserrors.ErrCodeAlreadyMounted, "filesystem is already mounted").
			WithDetail("mount_point", m.config.MountPoint)
	}

	if err := prepareMountPoint(m.config.MountPoint); err != nil {
		return err
	}

	lock, err := lockMountPoint(m.config.LockDir, m.config.MountPoint)
	if err != nil {
		return err
	}

	kernel, err := m.handler.Init(ctx)
	if err != nil {
		m.unlock(lock)
		return rfserrors.NewError(rfserrors.ErrCodeMountFailed, "metadata service unavailable").
			WithDetail("mount_point", m.config.MountPoint).WithCause(err)
	}

	rawfs := newRawFS(context.WithoutCancel(ctx), m.handler, m.config.FSName)
	server, err := m.newServer(rawfs, m.config.MountPoint, m.buildFUSEOptions(kernel))
	if err != nil {
		m.unlock(lock)
		return mountError(m.config.MountPoint, err)
	}

	go server.Serve()
	if err := server.WaitMount(); err != nil {
		_ = server.Unmount()
		m.unlock(lock)
		return mountError(m.config.MountPoint, err)
	}

	done := make(chan struct{})
	m.server = server
	m.lock = lock
	m.mounted = true
	m.done = done

	m.log.WithFields(logrus.Fields{
		"fsname":    m.config.FSName,
		"max_write": utils.FormatBytes(int64(kernel.MaxWrite)),
	}).Info("Filesystem mounted")

	go func() {
		server.Wait()
		m.finish(server)
		m.log.Info("FUSE server stopped")
		close(done)
	}()

	return nil
}

// Unmount detaches the filesystem, falling back to a lazy unmount when the
// kernel reports the mount busy.
func (m *MountManager) Unmount() error {
	m.mu.Lock()
	server := m.server
	mounted := m.mounted
	m.mu.Unlock()

	if !mounted || server == nil {
		return rfserrors.NewError(rfserrors.ErrCodeNotMounted, "filesystem is not mounted").
			WithDetail("mount_point", m.config.MountPoint)
	}

	m.log.Info("Unmounting filesystem")
	if err := server.Unmount(); err != nil {
		m.log.WithError(err).Warn("Normal unmount failed, trying lazy unmount")
		if lazyErr := m.lazyUnmount(m.config.MountPoint); lazyErr != nil {
			return rfserrors.NewError(rfserrors.ErrCodeUnmountFailed, "unmount failed").
				WithDetail("mount_point", m.config.MountPoint).
				WithDetail("lazy_error", lazyErr.Error()).WithCause(err)
		}
	}

	m.finish(server)
	m.log.Info("Filesystem unmounted")
	return nil
}

// finish clears state for server if it is still the active one.
func (m *MountManager) finish(server fuseServer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != server {
		return
	}
	m.unlock(m.lock)
	m.server = nil
	m.lock = nil
	m.mounted = false
}

func (m *MountManager) unlock(lock *flock.Flock) {
	if lock == nil {
		return
	}
	if err := lock.Unlock(); err != nil {
		m.log.WithError(err).Warn("Failed to release mount lock")
	}
}

// IsMounted checks if the filesystem is currently mounted
func (m *MountManager) IsMounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// GetMountPoint returns the current mount point
func (m *MountManager) GetMountPoint() string {
	return m.config.MountPoint
}

// Wait blocks until the FUSE server stops serving.
func (m *MountManager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// GetStats returns filesystem statistics
func (m *MountManager) GetStats() *FilesystemStats {
	return m.handler.GetStats()
}

func (m *MountManager) buildFUSEOptions(kernel KernelConfig) *fuse.MountOptions {
	return &fuse.MountOptions{
		FsName:       m.config.FSName,
		Name:         "remotefs",
		MaxWrite:     kernel.MaxWrite,
		MaxReadAhead: kernel.MaxReadAhead,
		AllowOther:   m.config.AllowOther,
		Debug:        m.config.Debug,
	}
}

func mountError(mountPoint string, err error) error {
	code := rfserrors.ErrCodeMountFailed
	if errors.Is(err, fs.ErrPermission) {
		code = rfserrors.ErrCodePermissionDenied
	}
	return rfserrors.NewError(code, "failed to mount filesystem").
		WithDetail("mount_point", mountPoint).WithCause(err)
}
