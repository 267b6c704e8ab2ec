package types

import (
	"fmt"
	"strings"
	"time"
)

const (
	// RootInode is the handle the kernel reserves for the filesystem root.
	RootInode uint64 = 1

	// RootPath is the remote path of the filesystem root.
	RootPath = "/"

	// MaxNameLen is the longest single path component accepted by lookup.
	MaxNameLen = 255
)

// FileKind is the POSIX type of a remote entry.
type FileKind uint8

const (
	KindUnknown FileKind = iota
	KindNamedPipe
	KindCharDevice
	KindBlockDevice
	KindDirectory
	KindRegularFile
	KindSymlink
	KindSocket
)

// POSIX file type bits, spelled out so the values are identical on every platform.
const (
	modeFIFO   uint32 = 0o010000
	modeChar   uint32 = 0o020000
	modeDir    uint32 = 0o040000
	modeBlock  uint32 = 0o060000
	modeReg    uint32 = 0o100000
	modeLink   uint32 = 0o120000
	modeSocket uint32 = 0o140000

	// ModeTypeMask selects the file type bits of a mode.
	ModeTypeMask uint32 = 0o170000
)

var kindNames = map[FileKind]string{
	KindNamedPipe:   "NamedPipe",
	KindCharDevice:  "CharDevice",
	KindBlockDevice: "BlockDevice",
	KindDirectory:   "Directory",
	KindRegularFile: "RegularFile",
	KindSymlink:     "Symlink",
	KindSocket:      "Socket",
}

// String returns the wire name of the kind.
func (k FileKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseFileKind maps a wire name to a FileKind.
func ParseFileKind(name string) (FileKind, error) {
	for kind, n := range kindNames {
		if n == name {
			return kind, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown file type %q", name)
}

// TypeBits returns the S_IFMT bits for the kind.
func (k FileKind) TypeBits() uint32 {
	switch k {
	case KindNamedPipe:
		return modeFIFO
	case KindCharDevice:
		return modeChar
	case KindBlockDevice:
		return modeBlock
	case KindDirectory:
		return modeDir
	case KindRegularFile:
		return modeReg
	case KindSymlink:
		return modeLink
	case KindSocket:
		return modeSocket
	default:
		return 0
	}
}

// Attributes is a point-in-time snapshot of a remote entry.
type Attributes struct {
	Ino     uint64
	Size    uint64
	Blocks  uint64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
	Crtime  time.Time
	Kind    FileKind
	Perm    uint16
	Nlink   uint32
	UID     uint32
	GID     uint32
	Blksize uint32
	Flags   uint32
}

// Mode returns the full POSIX mode: type bits plus permission bits.
func (a Attributes) Mode() uint32 {
	return a.Kind.TypeBits() | uint32(a.Perm)
}

// AttrUpdate is a sparse attribute change. Nil fields are left untouched by the server.
type AttrUpdate struct {
	Mode  *uint32 `json:"mode"`
	UID   *uint32 `json:"uid"`
	GID   *uint32 `json:"gid"`
	Size  *uint64 `json:"size"`
	Flags *uint32 `json:"flags"`
}

// IsEmpty reports whether no field is set.
func (u AttrUpdate) IsEmpty() bool {
	return u.Mode == nil && u.UID == nil && u.GID == nil && u.Size == nil && u.Flags == nil
}

// String renders only the fields that are set, for logging.
func (u AttrUpdate) String() string {
	var parts []string
	if u.Mode != nil {
		parts = append(parts, fmt.Sprintf("mode=%#o", *u.Mode))
	}
	if u.UID != nil {
		parts = append(parts, fmt.Sprintf("uid=%d", *u.UID))
	}
	if u.GID != nil {
		parts = append(parts, fmt.Sprintf("gid=%d", *u.GID))
	}
	if u.Size != nil {
		parts = append(parts, fmt.Sprintf("size=%d", *u.Size))
	}
	if u.Flags != nil {
		parts = append(parts, fmt.Sprintf("flags=%#x", *u.Flags))
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}
