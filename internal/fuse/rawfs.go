//go:build !cgofuse

package fuse

import (
	"context"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/remotefs/remotefs/pkg/types"
)

// rawFS adapts go-fuse's raw node-id protocol to Handler requests. The
// embedded default answers ENOSYS silently, so unsupported callbacks are
// overridden here to go through Dispatch and get logged.
type rawFS struct {
	fuse.RawFileSystem

	handler *Handler
	name    string
	base    context.Context
}

func newRawFS(ctx context.Context, handler *Handler, name string) *rawFS {
	return &rawFS{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		handler:       handler,
		name:          name,
		base:          ctx,
	}
}

func (r *rawFS) String() string {
	return r.name
}

// channelContext exposes a kernel interrupt channel as a context, so an
// interrupted request abandons its remote calls.
type channelContext struct {
	context.Context
	cancel <-chan struct{}
}

func (c channelContext) Done() <-chan struct{} {
	if c.cancel == nil {
		return c.Context.Done()
	}
	return c.cancel
}

func (c channelContext) Err() error {
	select {
	case <-c.cancel:
		return context.Canceled
	default:
		return c.Context.Err()
	}
}

func (r *rawFS) dispatch(cancel <-chan struct{}, req Request) Response {
	return r.handler.Dispatch(channelContext{Context: r.base, cancel: cancel}, req)
}

func (r *rawFS) unsupported(cancel <-chan struct{}, op string) fuse.Status {
	return fuse.Status(r.dispatch(cancel, UnsupportedRequest{Operation: op}).Status)
}

func (r *rawFS) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	resp := r.dispatch(cancel, LookupRequest{Parent: header.NodeId, Name: name})
	if resp.OK() {
		fillEntryOut(out, resp.Entry)
	}
	return fuse.Status(resp.Status)
}

func (r *rawFS) Forget(nodeID, nlookup uint64) {
	r.handler.Dispatch(r.base, ForgetRequest{Ino: nodeID, NLookup: nlookup})
}

func (r *rawFS) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	resp := r.dispatch(cancel, GetAttrRequest{Ino: input.NodeId})
	if resp.OK() {
		fillAttrOut(out, resp.Entry)
	}
	return fuse.Status(resp.Status)
}

func (r *rawFS) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	resp := r.dispatch(cancel, SetAttrRequest{Ino: input.NodeId, Update: attrUpdate(input)})
	if resp.OK() {
		fillAttrOut(out, resp.Entry)
	}
	return fuse.Status(resp.Status)
}

func (r *rawFS) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	return r.open(cancel, input, out, false)
}

func (r *rawFS) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	return r.open(cancel, input, out, true)
}

func (r *rawFS) open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut, dir bool) fuse.Status {
	resp := r.dispatch(cancel, OpenRequest{Ino: input.NodeId, Dir: dir})
	if resp.OK() {
		out.Fh = resp.Open.Fh
		out.OpenFlags = resp.Open.Flags
	}
	return fuse.Status(resp.Status)
}

func (r *rawFS) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	r.dispatch(cancel, ReleaseRequest{Ino: input.NodeId, Fh: input.Fh})
}

func (r *rawFS) ReleaseDir(input *fuse.ReleaseIn) {
	r.handler.Dispatch(r.base, ReleaseRequest{Ino: input.NodeId, Fh: input.Fh, Dir: true})
}

func (r *rawFS) StatFs(cancel <-chan struct{}, header *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	resp := r.dispatch(cancel, StatFSRequest{Ino: header.NodeId})
	if resp.OK() {
		*out = fuse.StatfsOut{
			Blocks:  resp.StatFS.Blocks,
			Bfree:   resp.StatFS.Bfree,
			Bavail:  resp.StatFS.Bavail,
			Files:   resp.StatFS.Files,
			Ffree:   resp.StatFS.Ffree,
			Bsize:   resp.StatFS.Bsize,
			NameLen: resp.StatFS.NameLen,
			Frsize:  resp.StatFS.Frsize,
		}
	}
	return fuse.Status(resp.Status)
}

func (r *rawFS) Link(cancel <-chan struct{}, _ *fuse.LinkIn, _ string, _ *fuse.EntryOut) fuse.Status {
	return fuse.Status(r.dispatch(cancel, LinkRequest{Operation: OpLink}).Status)
}

func (r *rawFS) Symlink(cancel <-chan struct{}, _ *fuse.InHeader, _ string, _ string, _ *fuse.EntryOut) fuse.Status {
	return fuse.Status(r.dispatch(cancel, LinkRequest{Operation: OpSymlink}).Status)
}

func (r *rawFS) Mknod(cancel <-chan struct{}, _ *fuse.MknodIn, _ string, _ *fuse.EntryOut) fuse.Status {
	return r.unsupported(cancel, OpMknod)
}

func (r *rawFS) Mkdir(cancel <-chan struct{}, _ *fuse.MkdirIn, _ string, _ *fuse.EntryOut) fuse.Status {
	return r.unsupported(cancel, OpMkdir)
}

func (r *rawFS) Unlink(cancel <-chan struct{}, _ *fuse.InHeader, _ string) fuse.Status {
	return r.unsupported(cancel, OpUnlink)
}

func (r *rawFS) Rmdir(cancel <-chan struct{}, _ *fuse.InHeader, _ string) fuse.Status {
	return r.unsupported(cancel, OpRmdir)
}

func (r *rawFS) Rename(cancel <-chan struct{}, _ *fuse.RenameIn, _ string, _ string) fuse.Status {
	return r.unsupported(cancel, OpRename)
}

func (r *rawFS) Readlink(cancel <-chan struct{}, _ *fuse.InHeader) ([]byte, fuse.Status) {
	return nil, r.unsupported(cancel, OpReadlink)
}

func (r *rawFS) Access(cancel <-chan struct{}, _ *fuse.AccessIn) fuse.Status {
	return r.unsupported(cancel, OpAccess)
}

func (r *rawFS) GetXAttr(cancel <-chan struct{}, _ *fuse.InHeader, _ string, _ []byte) (uint32, fuse.Status) {
	return 0, r.unsupported(cancel, OpGetXAttr)
}

func (r *rawFS) ListXAttr(cancel <-chan struct{}, _ *fuse.InHeader, _ []byte) (uint32, fuse.Status) {
	return 0, r.unsupported(cancel, OpListXAttr)
}

func (r *rawFS) SetXAttr(cancel <-chan struct{}, _ *fuse.SetXAttrIn, _ string, _ []byte) fuse.Status {
	return r.unsupported(cancel, OpSetXAttr)
}

func (r *rawFS) RemoveXAttr(cancel <-chan struct{}, _ *fuse.InHeader, _ string) fuse.Status {
	return r.unsupported(cancel, OpRemoveXAttr)
}

func (r *rawFS) Create(cancel <-chan struct{}, _ *fuse.CreateIn, _ string, _ *fuse.CreateOut) fuse.Status {
	return r.unsupported(cancel, OpCreate)
}

func (r *rawFS) Read(cancel <-chan struct{}, _ *fuse.ReadIn, _ []byte) (fuse.ReadResult, fuse.Status) {
	return nil, r.unsupported(cancel, OpRead)
}

func (r *rawFS) Write(cancel <-chan struct{}, _ *fuse.WriteIn, _ []byte) (uint32, fuse.Status) {
	return 0, r.unsupported(cancel, OpWrite)
}

func (r *rawFS) Flush(cancel <-chan struct{}, _ *fuse.FlushIn) fuse.Status {
	return r.unsupported(cancel, OpFlush)
}

func (r *rawFS) Fsync(cancel <-chan struct{}, _ *fuse.FsyncIn) fuse.Status {
	return r.unsupported(cancel, OpFsync)
}

func (r *rawFS) Fallocate(cancel <-chan struct{}, _ *fuse.FallocateIn) fuse.Status {
	return r.unsupported(cancel, OpFallocate)
}

func (r *rawFS) Lseek(cancel <-chan struct{}, _ *fuse.LseekIn, _ *fuse.LseekOut) fuse.Status {
	return r.unsupported(cancel, OpLseek)
}

func (r *rawFS) ReadDir(cancel <-chan struct{}, _ *fuse.ReadIn, _ *fuse.DirEntryList) fuse.Status {
	return r.unsupported(cancel, OpReadDir)
}

func (r *rawFS) ReadDirPlus(cancel <-chan struct{}, _ *fuse.ReadIn, _ *fuse.DirEntryList) fuse.Status {
	return r.unsupported(cancel, OpReadDirPlus)
}

func (r *rawFS) FsyncDir(cancel <-chan struct{}, _ *fuse.FsyncIn) fuse.Status {
	return r.unsupported(cancel, OpFsyncDir)
}

func (r *rawFS) GetLk(cancel <-chan struct{}, _ *fuse.LkIn, _ *fuse.LkOut) fuse.Status {
	return r.unsupported(cancel, OpGetLk)
}

func (r *rawFS) SetLk(cancel <-chan struct{}, _ *fuse.LkIn) fuse.Status {
	return r.unsupported(cancel, OpSetLk)
}

func (r *rawFS) SetLkw(cancel <-chan struct{}, _ *fuse.LkIn) fuse.Status {
	return r.unsupported(cancel, OpSetLkw)
}

func (r *rawFS) CopyFileRange(cancel <-chan struct{}, _ *fuse.CopyFileRangeIn) (uint32, fuse.Status) {
	return 0, r.unsupported(cancel, OpCopyFileRange)
}

func (r *rawFS) Ioctl(cancel <-chan struct{}, _ *fuse.IoctlIn, _ []byte, _ *fuse.IoctlOut, _ []byte) fuse.Status {
	return r.unsupported(cancel, OpIoctl)
}

func fillEntryOut(out *fuse.EntryOut, e *Entry) {
	out.NodeId = e.Attr.Ino
	out.Generation = e.Generation
	out.SetEntryTimeout(e.TTL)
	out.SetAttrTimeout(e.TTL)
	fillAttr(&out.Attr, e.Attr)
}

func fillAttrOut(out *fuse.AttrOut, e *Entry) {
	out.SetTimeout(e.TTL)
	fillAttr(&out.Attr, e.Attr)
}

// attrUpdate keeps only the fields the kernel marked valid.
func attrUpdate(in *fuse.SetAttrIn) types.AttrUpdate {
	var u types.AttrUpdate
	if mode, ok := in.GetMode(); ok {
		u.Mode = &mode
	}
	if uid, ok := in.GetUID(); ok {
		u.UID = &uid
	}
	if gid, ok := in.GetGID(); ok {
		u.GID = &gid
	}
	if size, ok := in.GetSize(); ok {
		u.Size = &size
	}
	return u
}
