//go:build !cgofuse

package fuse

import "github.com/sirupsen/logrus"

// NewPlatformMountManager returns the mount manager for this build.
func NewPlatformMountManager(handler *Handler, config *MountConfig, logger *logrus.Entry) PlatformFileSystem {
	return NewMountManager(handler, config, logger)
}
