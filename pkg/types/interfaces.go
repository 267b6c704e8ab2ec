package types

import (
	"context"
	"time"
)

// MetadataService is the remote authority for paths, attributes and existence.
type MetadataService interface {
	// Health succeeds when the service answers its health endpoint with a success status.
	Health(ctx context.Context) error

	// ResolveInode maps an inode handle to its remote path.
	ResolveInode(ctx context.Context, ino uint64) (string, error)

	// FetchAttributes returns the current attributes of path.
	FetchAttributes(ctx context.Context, path string) (Attributes, error)

	// UpdateAttributes applies a sparse update and returns the server's resulting state.
	UpdateAttributes(ctx context.Context, path string, update AttrUpdate) (Attributes, error)
}

// MetricsCollector receives operation outcomes from the filesystem and the gateway.
type MetricsCollector interface {
	// RecordOperation records one kernel request and whether it succeeded.
	RecordOperation(operation string, duration time.Duration, success bool)

	// RecordRemoteCall records one HTTP call to the metadata service, by endpoint and outcome.
	RecordRemoteCall(endpoint, outcome string, duration time.Duration)

	// SetRemoteHealthy reports the latest health probe result.
	SetRemoteHealthy(healthy bool)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordOperation(string, time.Duration, bool)    {}
func (NopMetrics) RecordRemoteCall(string, string, time.Duration) {}
func (NopMetrics) SetRemoteHealthy(bool)                          {}
