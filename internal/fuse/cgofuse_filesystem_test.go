//go:build cgofuse

package fuse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winfsp/cgofuse/fuse"
)

func TestCgoFuseFS_AttributeUpdates(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	fs := NewCgoFuseFS(context.Background(), NewHandler(remote, nil, nil))

	require.Equal(t, 0, fs.Chflags("/foo/bar", 0x8000))
	require.Equal(t, 0, fs.Chown("/foo/bar", ^uint32(0), 20))
	require.Equal(t, 0, fs.Truncate("/foo/bar", 0, 0))
	assert.Equal(t, -fuse.EINVAL, fs.Truncate("/foo/bar", -1, 0))

	require.Len(t, remote.updates, 3)

	flags := remote.updates[0]
	require.NotNil(t, flags.Flags)
	assert.Equal(t, uint32(0x8000), *flags.Flags)
	assert.Nil(t, flags.Mode)
	assert.Nil(t, flags.UID)
	assert.Nil(t, flags.GID)
	assert.Nil(t, flags.Size)

	owner := remote.updates[1]
	assert.Nil(t, owner.UID, "unchanged owner is not sent")
	require.NotNil(t, owner.GID)
	assert.Equal(t, uint32(20), *owner.GID)

	require.NotNil(t, remote.updates[2].Size)
	assert.Zero(t, *remote.updates[2].Size)

	assert.Equal(t, -fuse.ENOENT, fs.Chflags("/missing", 1))
}

func TestCgoFuseFS_Getattr(t *testing.T) {
	t.Parallel()

	fs := NewCgoFuseFS(context.Background(), NewHandler(newFakeRemote(), nil, nil))

	var st fuse.Stat_t
	require.Equal(t, 0, fs.Getattr("/foo/bar", &st, ^uint64(0)))
	assert.Equal(t, int64(42), st.Size)
	assert.Equal(t, uint32(fuse.S_IFREG|0o644), st.Mode)

	assert.Equal(t, -fuse.ENOENT, fs.Getattr("/nope", &st, ^uint64(0)))
}
