//go:build !cgofuse

package fuse

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/remotefs/remotefs/pkg/types"
)

func fillPlatformAttr(out *fuse.Attr, a types.Attributes) {
	out.Crtime_, out.Crtimensec_ = splitTime(a.Crtime)
	out.Flags_ = a.Flags
}
