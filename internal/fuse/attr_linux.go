//go:build !cgofuse

package fuse

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/remotefs/remotefs/pkg/types"
)

// Linux has no creation time or BSD flags in the attribute record.
func fillPlatformAttr(*fuse.Attr, types.Attributes) {}
