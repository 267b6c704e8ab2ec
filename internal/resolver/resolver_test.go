package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	rfserrors "github.com/remotefs/remotefs/pkg/errors"
	"github.com/remotefs/remotefs/pkg/types"
)

type stubResolver struct {
	paths map[uint64]string
	calls []uint64
}

func (s *stubResolver) ResolveInode(_ context.Context, ino uint64) (string, error) {
	s.calls = append(s.calls, ino)
	if ino == types.RootInode {
		return types.RootPath, nil
	}
	p, ok := s.paths[ino]
	if !ok {
		return "", rfserrors.Newf(rfserrors.ErrCodeNotFound, "inode %d not found", ino)
	}
	return p, nil
}

func TestBuildPath(t *testing.T) {
	t.Parallel()

	stub := &stubResolver{paths: map[uint64]string{7: "/foo", 8: "/foo/bar", 9: "/foo/"}}
	r := New(stub, nil)

	tests := []struct {
		name   string
		parent uint64
		child  string
		want   string
		ok     bool
	}{
		{"child of root", types.RootInode, "foo", "/foo", true},
		{"nested", 7, "bar", "/foo/bar", true},
		{"deeper", 8, "baz.txt", "/foo/bar/baz.txt", true},
		{"name with spaces", 7, "a b", "/foo/a b", true},
		{"trailing slash kept", 9, "bar", "/foo//bar", true},
		{"unknown parent", 99, "x", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.BuildPath(context.Background(), tt.parent, tt.child)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	stub := &stubResolver{paths: map[uint64]string{3: "/docs"}}
	r := New(stub, nil)

	path, ok := r.Resolve(context.Background(), 3)
	assert.True(t, ok)
	assert.Equal(t, "/docs", path)

	path, ok = r.Resolve(context.Background(), 4)
	assert.False(t, ok)
	assert.Empty(t, path)

	assert.Equal(t, []uint64{3, 4}, stub.calls, "no caching between calls")
}

func TestJoin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/a", Join("/", "a"))
	assert.Equal(t, "/a/b", Join("/a", "b"))
	assert.Equal(t, "/a//b", Join("/a/", "b"), "paths are not normalized")
}
