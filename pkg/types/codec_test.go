package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullRecord = `{
	"ino": 42, "size": 1234, "blocks": 3,
	"atime": 1700000001, "mtime": 1700000002, "ctime": 1700000003, "crtime": 1600000000,
	"file_type": "RegularFile", "permissions": 420,
	"nlink": 1, "uid": 1000, "gid": 100, "blksize": 4096, "flags": 2
}`

func TestDecodeMetadata(t *testing.T) {
	t.Parallel()

	attrs, err := DecodeMetadata([]byte(fullRecord))
	require.NoError(t, err)

	assert.Equal(t, uint64(42), attrs.Ino)
	assert.Equal(t, uint64(1234), attrs.Size)
	assert.Equal(t, uint64(3), attrs.Blocks)
	assert.Equal(t, time.Unix(1700000001, 0), attrs.Atime)
	assert.Equal(t, time.Unix(1700000002, 0), attrs.Mtime)
	assert.Equal(t, time.Unix(1700000003, 0), attrs.Ctime)
	assert.Equal(t, time.Unix(1600000000, 0), attrs.Crtime)
	assert.Equal(t, KindRegularFile, attrs.Kind)
	assert.Equal(t, uint16(0o644), attrs.Perm)
	assert.Equal(t, uint32(1), attrs.Nlink)
	assert.Equal(t, uint32(1000), attrs.UID)
	assert.Equal(t, uint32(100), attrs.GID)
	assert.Equal(t, uint32(4096), attrs.Blksize)
	assert.Equal(t, uint32(2), attrs.Flags)
	assert.Equal(t, uint32(0o100644), attrs.Mode())
}

func TestDecodeMetadata_OptionalDefaults(t *testing.T) {
	t.Parallel()

	raw := `{"ino":1,"size":0,"blocks":0,"atime":10,"mtime":20,"ctime":30,
		"file_type":"Directory","permissions":493,"nlink":2,"uid":0,"gid":0,"blksize":512}`

	attrs, err := DecodeMetadata([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, attrs.Ctime, attrs.Crtime, "crtime defaults to ctime")
	assert.Zero(t, attrs.Flags)
	assert.Equal(t, KindDirectory, attrs.Kind)
	assert.Equal(t, uint32(0o40755), attrs.Mode())
}

func TestDecodeMetadata_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(m map[string]interface{})
		raw    string
	}{
		{name: "missing ino", mutate: func(m map[string]interface{}) { delete(m, "ino") }},
		{name: "missing ctime", mutate: func(m map[string]interface{}) { delete(m, "ctime") }},
		{name: "missing file_type", mutate: func(m map[string]interface{}) { delete(m, "file_type") }},
		{name: "missing blksize", mutate: func(m map[string]interface{}) { delete(m, "blksize") }},
		{name: "size is a string", mutate: func(m map[string]interface{}) { m["size"] = "big" }},
		{name: "negative timestamp", mutate: func(m map[string]interface{}) { m["mtime"] = -5 }},
		{name: "permissions overflow", mutate: func(m map[string]interface{}) { m["permissions"] = 70000 }},
		{name: "unknown file type", mutate: func(m map[string]interface{}) { m["file_type"] = "Door" }},
		{name: "not json", raw: "/etc/passwd"},
		{name: "json array", raw: "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := []byte(tt.raw)
			if tt.mutate != nil {
				var m map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(fullRecord), &m))
				tt.mutate(m)
				var err error
				raw, err = json.Marshal(m)
				require.NoError(t, err)
			}

			_, err := DecodeMetadata(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestEncodeUpdate_SparseFieldsAreNull(t *testing.T) {
	t.Parallel()

	size := uint64(0)
	raw, err := EncodeUpdate(AttrUpdate{Size: &size})
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))

	require.Len(t, body, 5, "every field is present on the wire")
	assert.Equal(t, float64(0), body["size"], "explicit zero survives")
	for _, field := range []string{"mode", "uid", "gid", "flags"} {
		v, ok := body[field]
		assert.True(t, ok, field)
		assert.Nil(t, v, "%s must be null when unset", field)
	}
}

func TestAttrUpdate_String(t *testing.T) {
	t.Parallel()

	mode := uint32(0o600)
	uid := uint32(1000)

	assert.Equal(t, "{}", AttrUpdate{}.String())
	assert.True(t, AttrUpdate{}.IsEmpty())
	assert.Equal(t, "{mode=0600 uid=1000}", AttrUpdate{Mode: &mode, UID: &uid}.String())
	assert.False(t, AttrUpdate{UID: &uid}.IsEmpty())
}

func TestFileKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind FileKind
		bits uint32
	}{
		{"NamedPipe", KindNamedPipe, 0o010000},
		{"CharDevice", KindCharDevice, 0o020000},
		{"BlockDevice", KindBlockDevice, 0o060000},
		{"Directory", KindDirectory, 0o040000},
		{"RegularFile", KindRegularFile, 0o100000},
		{"Symlink", KindSymlink, 0o120000},
		{"Socket", KindSocket, 0o140000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := ParseFileKind(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.name, kind.String())
			assert.Equal(t, tt.bits, kind.TypeBits())
			assert.Equal(t, tt.bits, kind.TypeBits()&ModeTypeMask)
		})
	}

	assert.Equal(t, "Unknown", KindUnknown.String())
	assert.Zero(t, KindUnknown.TypeBits())
}

func TestInterfaces(t *testing.T) {
	var _ MetricsCollector = NopMetrics{}
}
