//go:build cgofuse

package fuse

import (
	"context"
	"path"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/remotefs/remotefs/pkg/types"
)

// CgoFuseFS serves the handler through cgofuse, which addresses files by
// path. Paths come straight from the kernel, so no inode resolution happens.
type CgoFuseFS struct {
	fuse.FileSystemBase

	handler *Handler
	ctx     context.Context
}

// NewCgoFuseFS creates a new cgofuse-based filesystem
func NewCgoFuseFS(ctx context.Context, handler *Handler) *CgoFuseFS {
	return &CgoFuseFS{handler: handler, ctx: ctx}
}

func (fs *CgoFuseFS) status(resp Response) int {
	return -int(resp.Status)
}

func (fs *CgoFuseFS) unsupported(op string) int {
	return fs.status(fs.handler.Dispatch(fs.ctx, UnsupportedRequest{Operation: op}))
}

func (fs *CgoFuseFS) Destroy() {
	fs.handler.log.Info("Filesystem shutting down")
}

// Getattr gets file attributes
func (fs *CgoFuseFS) Getattr(p string, stat *fuse.Stat_t, _ uint64) int {
	if len(path.Base(p)) > types.MaxNameLen {
		return -fuse.ENAMETOOLONG
	}
	resp := fs.handler.Dispatch(fs.ctx, PathAttrRequest{Path: p})
	if resp.OK() {
		fillStat(stat, resp.Entry.Attr)
	}
	return fs.status(resp)
}

func (fs *CgoFuseFS) setattr(p string, update types.AttrUpdate) int {
	return fs.status(fs.handler.Dispatch(fs.ctx, PathSetAttrRequest{Path: p, Update: update}))
}

func (fs *CgoFuseFS) Chmod(p string, mode uint32) int {
	return fs.setattr(p, types.AttrUpdate{Mode: &mode})
}

func (fs *CgoFuseFS) Chown(p string, uid uint32, gid uint32) int {
	var update types.AttrUpdate
	// cgofuse passes ^uint32(0) for an owner that should stay unchanged.
	if uid != ^uint32(0) {
		update.UID = &uid
	}
	if gid != ^uint32(0) {
		update.GID = &gid
	}
	return fs.setattr(p, update)
}

// Chflags sets BSD file flags. Only macOS and WinFsp deliver this callback.
func (fs *CgoFuseFS) Chflags(p string, flags uint32) int {
	return fs.setattr(p, types.AttrUpdate{Flags: &flags})
}

func (fs *CgoFuseFS) Truncate(p string, size int64, _ uint64) int {
	if size < 0 {
		return -fuse.EINVAL
	}
	sz := uint64(size)
	return fs.setattr(p, types.AttrUpdate{Size: &sz})
}

func (fs *CgoFuseFS) Open(_ string, _ int) (int, uint64) {
	resp := fs.handler.Dispatch(fs.ctx, OpenRequest{})
	return fs.status(resp), resp.Open.Fh
}

func (fs *CgoFuseFS) Opendir(_ string) (int, uint64) {
	resp := fs.handler.Dispatch(fs.ctx, OpenRequest{Dir: true})
	return fs.status(resp), resp.Open.Fh
}

func (fs *CgoFuseFS) Release(_ string, fh uint64) int {
	return fs.status(fs.handler.Dispatch(fs.ctx, ReleaseRequest{Fh: fh}))
}

func (fs *CgoFuseFS) Releasedir(_ string, fh uint64) int {
	return fs.status(fs.handler.Dispatch(fs.ctx, ReleaseRequest{Fh: fh, Dir: true}))
}

func (fs *CgoFuseFS) Statfs(_ string, stat *fuse.Statfs_t) int {
	resp := fs.handler.Dispatch(fs.ctx, StatFSRequest{Ino: types.RootInode})
	if resp.OK() {
		*stat = fuse.Statfs_t{
			Bsize:   uint64(resp.StatFS.Bsize),
			Frsize:  uint64(resp.StatFS.Frsize),
			Blocks:  resp.StatFS.Blocks,
			Bfree:   resp.StatFS.Bfree,
			Bavail:  resp.StatFS.Bavail,
			Files:   resp.StatFS.Files,
			Ffree:   resp.StatFS.Ffree,
			Namemax: uint64(resp.StatFS.NameLen),
		}
	}
	return fs.status(resp)
}

func (fs *CgoFuseFS) Link(_ string, _ string) int {
	return fs.status(fs.handler.Dispatch(fs.ctx, LinkRequest{Operation: OpLink}))
}

func (fs *CgoFuseFS) Symlink(_ string, _ string) int {
	return fs.status(fs.handler.Dispatch(fs.ctx, LinkRequest{Operation: OpSymlink}))
}

func (fs *CgoFuseFS) Mknod(string, uint32, uint64) int { return fs.unsupported(OpMknod) }
func (fs *CgoFuseFS) Mkdir(string, uint32) int         { return fs.unsupported(OpMkdir) }
func (fs *CgoFuseFS) Unlink(string) int                { return fs.unsupported(OpUnlink) }
func (fs *CgoFuseFS) Rmdir(string) int                 { return fs.unsupported(OpRmdir) }
func (fs *CgoFuseFS) Rename(string, string) int        { return fs.unsupported(OpRename) }
func (fs *CgoFuseFS) Flush(string, uint64) int         { return fs.unsupported(OpFlush) }
func (fs *CgoFuseFS) Fsync(string, bool, uint64) int   { return fs.unsupported(OpFsync) }

func (fs *CgoFuseFS) Readlink(string) (int, string) {
	return fs.unsupported(OpReadlink), ""
}

func (fs *CgoFuseFS) Create(string, int, uint32) (int, uint64) {
	return fs.unsupported(OpCreate), ^uint64(0)
}

func (fs *CgoFuseFS) Read(string, []byte, int64, uint64) int {
	return fs.unsupported(OpRead)
}

func (fs *CgoFuseFS) Write(string, []byte, int64, uint64) int {
	return fs.unsupported(OpWrite)
}

func (fs *CgoFuseFS) Readdir(string, func(string, *fuse.Stat_t, int64) bool, int64, uint64) int {
	return fs.unsupported(OpReadDir)
}

func (fs *CgoFuseFS) Getxattr(string, string) (int, []byte) {
	return fs.unsupported(OpGetXAttr), nil
}

func (fs *CgoFuseFS) Setxattr(string, string, []byte, int) int {
	return fs.unsupported(OpSetXAttr)
}

func (fs *CgoFuseFS) Listxattr(string, func(string) bool) int {
	return fs.unsupported(OpListXAttr)
}

func (fs *CgoFuseFS) Removexattr(string, string) int {
	return fs.unsupported(OpRemoveXAttr)
}

func fillStat(stat *fuse.Stat_t, a types.Attributes) {
	*stat = fuse.Stat_t{
		Ino:      a.Ino,
		Mode:     a.Mode(),
		Nlink:    a.Nlink,
		Uid:      a.UID,
		Gid:      a.GID,
		Size:     int64(a.Size),
		Atim:     fuse.NewTimespec(a.Atime),
		Mtim:     fuse.NewTimespec(a.Mtime),
		Ctim:     fuse.NewTimespec(a.Ctime),
		Birthtim: fuse.NewTimespec(a.Crtime),
		Blksize:  int64(a.Blksize),
		Blocks:   int64(a.Blocks),
		Flags:    a.Flags,
	}
}
