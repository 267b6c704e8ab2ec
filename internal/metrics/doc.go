/*
Package metrics exports remotefs activity to Prometheus.

Architecture

	┌─────────────┐
	│  Collector  │  ← fed by internal/fuse and internal/gateway
	└──────┬──────┘
	       │
	   ┌───┴──────────────────────────┐
	   │                              │
	┌──▼───────────┐       ┌──────────▼────────┐
	│  Prometheus  │       │  HTTP Endpoints   │
	│   Registry   │       │  /metrics         │
	│              │       │  /debug/operations│
	└──────────────┘       └───────────────────┘

Series

	remotefs_fuse_operations_total{operation,status}
	remotefs_fuse_operation_duration_seconds{operation}
	remotefs_remote_requests_total{endpoint,outcome}
	remotefs_remote_request_duration_seconds{endpoint}
	remotefs_remote_healthy
	remotefs_remote_circuit_state

The collector is disabled by default. A disabled collector is safe to call and
records nothing, so components never need a nil check.

Usage

	collector, err := metrics.NewCollector(&cfg.Monitoring.Metrics)
	if err != nil {
		return err
	}
	if err := collector.Start(ctx); err != nil {
		return err
	}
*/
package metrics
