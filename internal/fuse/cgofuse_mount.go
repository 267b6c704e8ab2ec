//go:build cgofuse

package fuse

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	"github.com/winfsp/cgofuse/fuse"

	rfserrors "github.com/remotefs/remotefs/pkg/errors"
)

// CgoFuseMountManager manages cgofuse-based mounts
type CgoFuseMountManager struct {
	handler *Handler
	config  MountConfig
	log     *logrus.Entry

	mu      sync.Mutex
	host    *fuse.FileSystemHost
	lock    *flock.Flock
	mounted bool
	done    chan struct{}
}

// NewPlatformMountManager returns the mount manager for this build.
func NewPlatformMountManager(handler *Handler, config *MountConfig, logger *logrus.Entry) PlatformFileSystem {
	if logger == nil {
		logger = logrus.WithField("component", "mount")
	}
	return &CgoFuseMountManager{
		handler: handler,
		config:  config.withDefaults(),
		log:     logger.WithFields(logrus.Fields{"mount_point": config.MountPoint, "binding": "cgofuse"}),
	}
}

func (m *CgoFuseMountManager) options(kernel KernelConfig) []string {
	opts := []string{
		"-o", "fsname=" + m.config.FSName,
		"-o", fmt.Sprintf("max_write=%d", kernel.MaxWrite),
	}
	if m.config.AllowOther {
		opts = append(opts, "-o", "allow_other")
	}
	if m.config.Debug {
		opts = append(opts, "-d")
	}
	if runtime.GOOS == "darwin" {
		opts = append(opts, "-o", "volname="+m.config.FSName)
	}
	return opts
}

// Mount mounts the filesystem
func (m *CgoFuseMountManager) Mount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mounted {
		return rfserrors.NewError(rfserrors.ErrCodeAlreadyMounted, "filesystem is already mounted")
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
		_ = lock.Unlock()
		return rfserrors.NewError(rfserrors.ErrCodeMountFailed, "metadata service unavailable").
			WithDetail("mount_point", m.config.MountPoint).WithCause(err)
	}

	host := fuse.NewFileSystemHost(NewCgoFuseFS(context.WithoutCancel(ctx), m.handler))
	done := make(chan struct{})
	opts := m.options(kernel)
	go func() {
		defer close(done)
		if !host.Mount(m.config.MountPoint, opts) {
			m.log.Error("cgofuse mount returned failure")
		}
		m.mu.Lock()
		if m.host == host {
			_ = m.lock.Unlock()
			m.mounted = false
			m.host = nil
		}
		m.mu.Unlock()
		m.log.Info("FUSE server stopped")
	}()

	m.host = host
	m.lock = lock
	m.mounted = true
	m.done = done
	m.log.Info("Filesystem mounted")
	return nil
}

// Unmount unmounts the filesystem
func (m *CgoFuseMountManager) Unmount() error {
	m.mu.Lock()
	host := m.host
	m.mu.Unlock()

	if host == nil {
		return rfserrors.NewError(rfserrors.ErrCodeNotMounted, "filesystem is not mounted")
	}
	if !host.Unmount() {
		return rfserrors.NewError(rfserrors.ErrCodeUnmountFailed, "unmount failed").
			WithDetail("mount_point", m.config.MountPoint)
	}
	m.log.Info("Filesystem unmounted")
	return nil
}

// IsMounted returns whether the filesystem is mounted
func (m *CgoFuseMountManager) IsMounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// Wait blocks until the host stops serving.
func (m *CgoFuseMountManager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (m *CgoFuseMountManager) GetMountPoint() string {
	return m.config.MountPoint
}

// GetStats returns filesystem statistics
func (m *CgoFuseMountManager) GetStats() *FilesystemStats {
	return m.handler.GetStats()
}
