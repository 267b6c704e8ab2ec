package fuse

import (
	"syscall"
	"time"

	"github.com/remotefs/remotefs/pkg/types"
)

const (
	// EntryTTL is how long the kernel may cache entries and attributes we return.
	EntryTTL = time.Second

	// StatFSBlockSize is reported as both block and fragment size.
	StatFSBlockSize = 512

	// DefaultMaxIO is the read-ahead and write size negotiated at init.
	DefaultMaxIO = 128 * 1024
)

// Operation names used for logging and metrics.
const (
	OpLookup        = "lookup"
	OpGetAttr       = "getattr"
	OpSetAttr       = "setattr"
	OpForget        = "forget"
	OpOpen          = "open"
	OpOpenDir       = "opendir"
	OpRelease       = "release"
	OpReleaseDir    = "releasedir"
	OpStatFS        = "statfs"
	OpLink          = "link"
	OpSymlink       = "symlink"
	OpMknod         = "mknod"
	OpMkdir         = "mkdir"
	OpUnlink        = "unlink"
	OpRmdir         = "rmdir"
	OpRename        = "rename"
	OpReadlink      = "readlink"
	OpCreate        = "create"
	OpRead          = "read"
	OpWrite         = "write"
	OpFlush         = "flush"
	OpFsync         = "fsync"
	OpFsyncDir      = "fsyncdir"
	OpReadDir       = "readdir"
	OpReadDirPlus   = "readdirplus"
	OpAccess        = "access"
	OpGetXAttr      = "getxattr"
	OpSetXAttr      = "setxattr"
	OpListXAttr     = "listxattr"
	OpRemoveXAttr   = "removexattr"
	OpFallocate     = "fallocate"
	OpLseek         = "lseek"
	OpGetLk         = "getlk"
	OpSetLk         = "setlk"
	OpSetLkw        = "setlkw"
	OpCopyFileRange = "copy_file_range"
	OpIoctl         = "ioctl"
)

// Request is one kernel callback. The concrete types below are the only
// implementations.
type Request interface {
	// Op names the operation for logs and metrics.
	Op() string
}

type LookupRequest struct {
	Parent uint64
	Name   string
}

type GetAttrRequest struct {
	Ino uint64
}

type SetAttrRequest struct {
	Ino    uint64
	Update types.AttrUpdate
}

type ForgetRequest struct {
	Ino     uint64
	NLookup uint64
}

type OpenRequest struct {
	Ino uint64
	Dir bool
}

type ReleaseRequest struct {
	Ino uint64
	Fh  uint64
	Dir bool
}

type StatFSRequest struct {
	Ino uint64
}

// PathAttrRequest reads attributes by path, for bridges that address
// files by path rather than by inode.
type PathAttrRequest struct {
	Path string
}

// PathSetAttrRequest is the path-addressed form of SetAttrRequest.
type PathSetAttrRequest struct {
	Path   string
	Update types.AttrUpdate
}

// LinkRequest covers hard and symbolic link creation, both of which are refused.
type LinkRequest struct {
	Operation string
}

// UnsupportedRequest stands in for every callback without an implementation.
type UnsupportedRequest struct {
	Operation string
}

func (LookupRequest) Op() string  { return OpLookup }
func (GetAttrRequest) Op() string { return OpGetAttr }
func (SetAttrRequest) Op() string { return OpSetAttr }
func (ForgetRequest) Op() string  { return OpForget }
func (StatFSRequest) Op() string  { return OpStatFS }

func (PathAttrRequest) Op() string    { return OpGetAttr }
func (PathSetAttrRequest) Op() string { return OpSetAttr }

func (r OpenRequest) Op() string {
	if r.Dir {
		return OpOpenDir
	}
	return OpOpen
}

func (r ReleaseRequest) Op() string {
	if r.Dir {
		return OpReleaseDir
	}
	return OpRelease
}

func (r LinkRequest) Op() string        { return r.Operation }
func (r UnsupportedRequest) Op() string { return r.Operation }

// Entry is an attribute payload plus its cache lifetime.
type Entry struct {
	Attr       types.Attributes
	TTL        time.Duration
	Generation uint64
}

// OpenReply is the handle granted to an open or opendir.
type OpenReply struct {
	Fh    uint64
	Flags uint32
}

// StatFSReply mirrors struct statvfs.
type StatFSReply struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	Frsize  uint32
	NameLen uint32
}

// Response is the outcome of Dispatch. Status zero means success; payloads
// are only set on success.
type Response struct {
	Status syscall.Errno
	Entry  *Entry
	Open   *OpenReply
	StatFS *StatFSReply
}

// OK reports whether the request succeeded.
func (r Response) OK() bool {
	return r.Status == 0
}

// KernelConfig is what Init negotiates with the kernel.
type KernelConfig struct {
	MaxReadAhead int
	MaxWrite     int
}
