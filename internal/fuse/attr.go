//go:build !cgofuse

package fuse

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/remotefs/remotefs/pkg/types"
)

// fillAttr copies remote attributes into the kernel's attribute record.
func fillAttr(out *fuse.Attr, a types.Attributes) {
	out.Ino = a.Ino
	out.Size = a.Size
	out.Blocks = a.Blocks
	out.Atime, out.Atimensec = splitTime(a.Atime)
	out.Mtime, out.Mtimensec = splitTime(a.Mtime)
	out.Ctime, out.Ctimensec = splitTime(a.Ctime)
	out.Mode = a.Mode()
	out.Nlink = a.Nlink
	out.Owner = fuse.Owner{Uid: a.UID, Gid: a.GID}
	out.Rdev = 0
	out.Blksize = a.Blksize
	fillPlatformAttr(out, a)
}

func splitTime(t time.Time) (uint64, uint32) {
	if t.IsZero() || t.Unix() < 0 {
		return 0, 0
	}
	return uint64(t.Unix()), uint32(t.Nanosecond())
}
