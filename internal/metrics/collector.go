package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Collector records kernel operations and metadata service calls.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry
	log      *logrus.Entry

	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	remoteCounter     *prometheus.CounterVec
	remoteDuration    *prometheus.HistogramVec
	remoteHealthy     prometheus.Gauge
	circuitState      prometheus.Gauge

	operations map[string]*OperationMetrics
	lastReset  time.Time

	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// OperationMetrics tracks one kernel operation type.
type OperationMetrics struct {
	Count         int64         `json:"count"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	LastOperation time.Time     `json:"last_operation"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Port:      9464,
		Path:      "/metrics",
		Namespace: "remotefs",
		Labels:    make(map[string]string),
	}
}

// NewCollector creates a collector. A disabled collector accepts every call and records nothing.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Collector{
		config: config,
		log:    logrus.WithField("component", "metrics"),
	}
	if !config.Enabled {
		return c, nil
	}

	c.registry = prometheus.NewRegistry()
	c.operations = make(map[string]*OperationMetrics)
	c.lastReset = time.Now()
	c.initMetrics()

	if err := c.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return c, nil
}

// Registry exposes the prometheus registry, nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Start serves the metrics endpoint until ctx is cancelled or Stop is called.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/debug/operations", c.debugOperationsHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.WithError(err).Error("Metrics server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Stop(shutdownCtx)
	}()

	c.log.WithField("addr", c.server.Addr).Info("Serving metrics")
	return nil
}

// Stop shuts the metrics server down.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordOperation records one kernel request.
func (c *Collector) RecordOperation(operation string, duration time.Duration, success bool) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	m, ok := c.operations[operation]
	if !ok {
		m = &OperationMetrics{}
		c.operations[operation] = m
	}
	m.Count++
	m.TotalDuration += duration
	m.AvgDuration = time.Duration(int64(m.TotalDuration) / m.Count)
	m.LastOperation = time.Now()
	if !success {
		m.Errors++
	}
	c.mu.Unlock()

	status := "success"
	if !success {
		status = "error"
	}
	c.operationCounter.With(prometheus.Labels{"operation": operation, "status": status}).Inc()
	c.operationDuration.With(prometheus.Labels{"operation": operation}).Observe(duration.Seconds())
}

// RecordRemoteCall records one call to the metadata service.
func (c *Collector) RecordRemoteCall(endpoint, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.remoteCounter.With(prometheus.Labels{"endpoint": endpoint, "outcome": outcome}).Inc()
	c.remoteDuration.With(prometheus.Labels{"endpoint": endpoint}).Observe(duration.Seconds())
}

// SetRemoteHealthy records the latest health probe result.
func (c *Collector) SetRemoteHealthy(healthy bool) {
	if !c.config.Enabled {
		return
	}

	if healthy {
		c.remoteHealthy.Set(1)
	} else {
		c.remoteHealthy.Set(0)
	}
}

// SetCircuitState records the gateway breaker state (0 closed, 1 open, 2 half-open).
func (c *Collector) SetCircuitState(state int) {
	if !c.config.Enabled {
		return
	}
	c.circuitState.Set(float64(state))
}

// GetOperations returns a copy of the per-operation summary.
func (c *Collector) GetOperations() map[string]OperationMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]OperationMetrics, len(c.operations))
	for name, m := range c.operations {
		out[name] = *m
	}
	return out
}

// ResetOperations clears the per-operation summary. Prometheus series are kept.
func (c *Collector) ResetOperations() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations = make(map[string]*OperationMetrics)
	c.lastReset = time.Now()
}

func (c *Collector) initMetrics() {
	ns := c.config.Namespace
	labels := prometheus.Labels(c.config.Labels)

	c.operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "fuse",
		Name:        "operations_total",
		Help:        "Kernel requests handled, by operation and status.",
		ConstLabels: labels,
	}, []string{"operation", "status"})

	c.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   ns,
		Subsystem:   "fuse",
		Name:        "operation_duration_seconds",
		Help:        "Kernel request latency in seconds.",
		Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 15),
		ConstLabels: labels,
	}, []string{"operation"})

	c.remoteCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "remote",
		Name:        "requests_total",
		Help:        "Metadata service calls, by endpoint and outcome.",
		ConstLabels: labels,
	}, []string{"endpoint", "outcome"})

	c.remoteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   ns,
		Subsystem:   "remote",
		Name:        "request_duration_seconds",
		Help:        "Metadata service call latency in seconds.",
		Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 15),
		ConstLabels: labels,
	}, []string{"endpoint"})

	c.remoteHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Subsystem:   "remote",
		Name:        "healthy",
		Help:        "1 when the last health probe succeeded.",
		ConstLabels: labels,
	})

	c.circuitState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Subsystem:   "remote",
		Name:        "circuit_state",
		Help:        "Gateway circuit breaker state: 0 closed, 1 open, 2 half-open.",
		ConstLabels: labels,
	})
}

func (c *Collector) registerMetrics() error {
	for _, m := range []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.remoteCounter,
		c.remoteDuration,
		c.remoteHealthy,
		c.circuitState,
	} {
		if err := c.registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) debugOperationsHandler(w http.ResponseWriter, r *http.Request) {
	ops := c.GetOperations()

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	type row struct {
		Operation string `json:"operation"`
		OperationMetrics
	}
	rows := make([]row, 0, len(names))
	for _, name := range names {
		rows = append(rows, row{Operation: name, OperationMetrics: ops[name]})
	}

	c.mu.RLock()
	since := c.lastReset
	c.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"since":      since,
		"operations": rows,
	})
}
