package fuse

import (
	"context"
	"fmt"
	"sync/atomic"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/remotefs/remotefs/internal/resolver"
	"github.com/remotefs/remotefs/pkg/types"
)

// FilesystemStats counts handled requests.
type FilesystemStats struct {
	Lookups     int64 `json:"lookups"`
	GetAttrs    int64 `json:"getattrs"`
	SetAttrs    int64 `json:"setattrs"`
	Opens       int64 `json:"opens"`
	Unsupported int64 `json:"unsupported"`
	Errors      int64 `json:"errors"`
}

// Handler answers kernel requests against the remote metadata service. It
// keeps no per-request state; counters are the only shared data.
type Handler struct {
	remote  types.MetadataService
	paths   *resolver.Resolver
	metrics types.MetricsCollector
	log     *logrus.Entry

	lookups     atomic.Int64
	getattrs    atomic.Int64
	setattrs    atomic.Int64
	opens       atomic.Int64
	unsupported atomic.Int64
	errors      atomic.Int64
}

// NewHandler builds a handler. metrics and logger may be nil.
func NewHandler(remote types.MetadataService, metrics types.MetricsCollector, logger *logrus.Entry) *Handler {
	if metrics == nil {
		metrics = types.NopMetrics{}
	}
	if logger == nil {
		logger = logrus.WithField("component", "fuse")
	}
	return &Handler{
		remote:  remote,
		paths:   resolver.New(remote, logger.WithField("component", "resolver")),
		metrics: metrics,
		log:     logger,
	}
}

// Init probes the metadata service before the kernel is told the mount is
// ready. A failed probe returns an error wrapping syscall.EIO.
func (h *Handler) Init(ctx context.Context) (KernelConfig, error) {
	if err := h.remote.Health(ctx); err != nil {
		h.metrics.SetRemoteHealthy(false)
		h.log.WithError(err).Error("Metadata service health check failed, refusing to mount")
		return KernelConfig{}, fmt.Errorf("metadata service health check: %w: %w", syscall.EIO, err)
	}
	h.metrics.SetRemoteHealthy(true)
	h.log.Info("Metadata service healthy")
	return KernelConfig{MaxReadAhead: DefaultMaxIO, MaxWrite: DefaultMaxIO}, nil
}

// Dispatch routes req to its operation and records the outcome.
func (h *Handler) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()

	var resp Response
	switch r := req.(type) {
	case LookupRequest:
		h.lookups.Add(1)
		resp = h.lookup(ctx, r)
	case GetAttrRequest:
		h.getattrs.Add(1)
		resp = h.getAttr(ctx, r)
	case SetAttrRequest:
		h.setattrs.Add(1)
		resp = h.setAttr(ctx, r)
	case PathAttrRequest:
		h.getattrs.Add(1)
		resp = h.fetchPath(ctx, r.Path)
	case PathSetAttrRequest:
		h.setattrs.Add(1)
		resp = h.updatePath(ctx, r.Path, r.Update)
	case ForgetRequest:
		// The remote service owns inode lifetime.
		return Response{}
	case OpenRequest:
		h.opens.Add(1)
		resp = Response{Open: &OpenReply{}}
	case ReleaseRequest:
		resp = Response{}
	case StatFSRequest:
		resp = Response{StatFS: statFS()}
	case LinkRequest:
		h.log.WithField("op", r.Operation).Debug("Refusing link creation")
		resp = Response{Status: syscall.EPERM}
	default:
		h.unsupported.Add(1)
		h.log.WithField("op", req.Op()).Warn("Unsupported filesystem operation")
		resp = Response{Status: syscall.ENOSYS}
	}

	if !resp.OK() {
		h.errors.Add(1)
	}
	h.metrics.RecordOperation(req.Op(), time.Since(start), resp.OK())
	return resp
}

func (h *Handler) lookup(ctx context.Context, r LookupRequest) Response {
	if len(r.Name) > types.MaxNameLen {
		return Response{Status: syscall.ENAMETOOLONG}
	}
	if !utf8.ValidString(r.Name) {
		return Response{Status: syscall.EINVAL}
	}

	path, ok := h.paths.BuildPath(ctx, r.Parent, r.Name)
	if !ok {
		return Response{Status: syscall.ENOENT}
	}
	attrs, err := h.remote.FetchAttributes(ctx, path)
	if err != nil {
		return Response{Status: syscall.ENOENT}
	}
	return entry(attrs)
}

func (h *Handler) getAttr(ctx context.Context, r GetAttrRequest) Response {
	path, ok := h.paths.Resolve(ctx, r.Ino)
	if !ok {
		return Response{Status: syscall.ENOENT}
	}
	return h.fetchPath(ctx, path)
}

func (h *Handler) setAttr(ctx context.Context, r SetAttrRequest) Response {
	path, ok := h.paths.Resolve(ctx, r.Ino)
	if !ok {
		return Response{Status: syscall.ENOENT}
	}
	return h.updatePath(ctx, path, r.Update)
}

func (h *Handler) fetchPath(ctx context.Context, path string) Response {
	attrs, err := h.remote.FetchAttributes(ctx, path)
	if err != nil {
		return Response{Status: syscall.ENOENT}
	}
	return entry(attrs)
}

func (h *Handler) updatePath(ctx context.Context, path string, update types.AttrUpdate) Response {
	log := h.log.WithFields(logrus.Fields{"path": path, "update": update.String()})
	if update.IsEmpty() {
		log.Debug("Attribute update carries no supported fields, fetching server state")
	} else {
		log.Debug("Applying attribute update")
	}
	attrs, err := h.remote.UpdateAttributes(ctx, path, update)
	if err != nil {
		return Response{Status: syscall.ENOENT}
	}
	return entry(attrs)
}

func entry(attrs types.Attributes) Response {
	return Response{Entry: &Entry{Attr: attrs, TTL: EntryTTL}}
}

func statFS() *StatFSReply {
	return &StatFSReply{
		Bsize:   StatFSBlockSize,
		Frsize:  StatFSBlockSize,
		NameLen: types.MaxNameLen,
	}
}

// GetStats returns a snapshot of the request counters.
func (h *Handler) GetStats() *FilesystemStats {
	return &FilesystemStats{
		Lookups:     h.lookups.Load(),
		GetAttrs:    h.getattrs.Load(),
		SetAttrs:    h.setattrs.Load(),
		Opens:       h.opens.Load(),
		Unsupported: h.unsupported.Load(),
		Errors:      h.errors.Load(),
	}
}
