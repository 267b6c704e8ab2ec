package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDecode is wrapped by every error DecodeMetadata returns.
var ErrDecode = errors.New("invalid metadata record")

// wireMetadata mirrors the JSON record served by the metadata endpoint.
// Pointers let the decoder tell a missing field from a zero value.
type wireMetadata struct {
	Ino         *uint64 `json:"ino"`
	Size        *uint64 `json:"size"`
	Blocks      *uint64 `json:"blocks"`
	Atime       *uint64 `json:"atime"`
	Mtime       *uint64 `json:"mtime"`
	Ctime       *uint64 `json:"ctime"`
	Crtime      *uint64 `json:"crtime,omitempty"`
	FileType    *string `json:"file_type"`
	Permissions *uint16 `json:"permissions"`
	Nlink       *uint32 `json:"nlink"`
	UID         *uint32 `json:"uid"`
	GID         *uint32 `json:"gid"`
	Blksize     *uint32 `json:"blksize"`
	Flags       *uint32 `json:"flags,omitempty"`
}

// DecodeMetadata converts a metadata record into Attributes.
func DecodeMetadata(raw []byte) (Attributes, error) {
	var w wireMetadata
	if err := json.Unmarshal(raw, &w); err != nil {
		return Attributes{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var missing []string
	require := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	require("ino", w.Ino != nil)
	require("size", w.Size != nil)
	require("blocks", w.Blocks != nil)
	require("atime", w.Atime != nil)
	require("mtime", w.Mtime != nil)
	require("ctime", w.Ctime != nil)
	require("file_type", w.FileType != nil)
	require("permissions", w.Permissions != nil)
	require("nlink", w.Nlink != nil)
	require("uid", w.UID != nil)
	require("gid", w.GID != nil)
	require("blksize", w.Blksize != nil)
	if len(missing) > 0 {
		return Attributes{}, fmt.Errorf("%w: missing %s", ErrDecode, strings.Join(missing, ", "))
	}

	kind, err := ParseFileKind(*w.FileType)
	if err != nil {
		return Attributes{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	attrs := Attributes{
		Ino:     *w.Ino,
		Size:    *w.Size,
		Blocks:  *w.Blocks,
		Atime:   fromEpoch(*w.Atime),
		Mtime:   fromEpoch(*w.Mtime),
		Ctime:   fromEpoch(*w.Ctime),
		Kind:    kind,
		Perm:    *w.Permissions,
		Nlink:   *w.Nlink,
		UID:     *w.UID,
		GID:     *w.GID,
		Blksize: *w.Blksize,
	}

	attrs.Crtime = attrs.Ctime
	if w.Crtime != nil {
		attrs.Crtime = fromEpoch(*w.Crtime)
	}
	if w.Flags != nil {
		attrs.Flags = *w.Flags
	}

	return attrs, nil
}

// EncodeUpdate renders a sparse update. Unset fields are sent as explicit nulls.
func EncodeUpdate(u AttrUpdate) ([]byte, error) {
	return json.Marshal(u)
}

func fromEpoch(secs uint64) time.Time {
	return time.Unix(int64(secs), 0)
}
