// Package resolver turns kernel inode handles into remote paths.
//
// The metadata service is the only source of truth: nothing is cached, so
// every resolution of a non-root inode costs one round trip.
package resolver

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/remotefs/remotefs/pkg/types"
)

// InodeResolver is the slice of the metadata service the resolver needs.
type InodeResolver interface {
	ResolveInode(ctx context.Context, ino uint64) (string, error)
}

// Resolver maps inodes, and (parent, name) pairs, to absolute remote paths.
type Resolver struct {
	remote InodeResolver
	log    *logrus.Entry
}

// New returns a Resolver backed by remote. A nil logger uses the standard logger.
func New(remote InodeResolver, logger *logrus.Entry) *Resolver {
	if logger == nil {
		logger = logrus.WithField("component", "resolver")
	}
	return &Resolver{remote: remote, log: logger}
}

// Resolve returns the path for ino. The second result is false when the
// service could not resolve it, whatever the reason.
func (r *Resolver) Resolve(ctx context.Context, ino uint64) (string, bool) {
	path, err := r.remote.ResolveInode(ctx, ino)
	if err != nil {
		r.log.WithError(err).WithField("ino", ino).Debug("Inode did not resolve")
		return "", false
	}
	return path, true
}

// BuildPath resolves parent and appends name to it.
func (r *Resolver) BuildPath(ctx context.Context, parent uint64, name string) (string, bool) {
	dir, ok := r.Resolve(ctx, parent)
	if !ok {
		return "", false
	}
	return Join(dir, name), true
}

// Join appends name to dir. Only the root is special: Join("/", "a") is "/a".
// Other paths are used as the service returned them, so Join("/a/", "b") is "/a//b".
func Join(dir, name string) string {
	if dir == types.RootPath {
		return dir + name
	}
	return dir + "/" + name
}
