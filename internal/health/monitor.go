// Package health watches the metadata service while the filesystem is mounted.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	rfserrors "github.com/remotefs/remotefs/pkg/errors"
	"github.com/remotefs/remotefs/pkg/types"
)

// Prober is anything that can answer a health probe.
type Prober interface {
	Health(ctx context.Context) error
}

// MonitorConfig represents monitor configuration
type MonitorConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Status is the latest probe outcome.
type Status struct {
	Healthy             bool      `json:"healthy"`
	LastCheck           time.Time `json:"last_check"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Checks              int64     `json:"checks"`
}

// Monitor probes the metadata service periodically and reports transitions.
type Monitor struct {
	prober  Prober
	config  MonitorConfig
	metrics types.MetricsCollector
	log     *logrus.Entry

	mu      sync.RWMutex
	status  Status
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a new health monitor
func NewMonitor(prober Prober, config *MonitorConfig, metrics types.MetricsCollector, logger *logrus.Entry) *Monitor {
	cfg := MonitorConfig{Interval: 30 * time.Second, Timeout: 5 * time.Second}
	if config != nil {
		if config.Interval > 0 {
			cfg.Interval = config.Interval
		}
		if config.Timeout > 0 {
			cfg.Timeout = config.Timeout
		}
	}
	if metrics == nil {
		metrics = types.NopMetrics{}
	}
	if logger == nil {
		logger = logrus.WithField("component", "health")
	}
	return &Monitor{
		prober:  prober,
		config:  cfg,
		metrics: metrics,
		log:     logger,
		// Init has already probed successfully by the time a monitor runs.
		status: Status{Healthy: true},
	}
}

// Start begins probing in the background until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return rfserrors.NewError(rfserrors.ErrCodeInternalError, "health monitor already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true

	go m.loop(ctx, m.done)

	m.log.WithField("interval", m.config.Interval).Debug("Health monitor started")
	return nil
}

// Stop halts probing and waits for the loop to exit.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	cancel, done := m.cancel, m.done
	m.started = false
	m.mu.Unlock()

	cancel()
	<-done
	m.log.Debug("Health monitor stopped")
	return nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe, records it and returns its error.
func (m *Monitor) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	err := m.prober.Health(ctx)
	healthy := err == nil

	m.mu.Lock()
	was := m.status.Healthy
	m.status.Healthy = healthy
	m.status.LastCheck = time.Now()
	m.status.Checks++
	if healthy {
		m.status.LastError = ""
		m.status.ConsecutiveFailures = 0
	} else {
		m.status.LastError = err.Error()
		m.status.ConsecutiveFailures++
	}
	failures := m.status.ConsecutiveFailures
	m.mu.Unlock()

	m.metrics.SetRemoteHealthy(healthy)

	switch {
	case was && !healthy:
		m.log.WithError(err).Error("Metadata service became unhealthy")
	case !was && healthy:
		m.log.Info("Metadata service recovered")
	case !healthy:
		m.log.WithError(err).WithField("consecutive_failures", failures).Debug("Metadata service still unhealthy")
	}
	return err
}

// GetStatus returns a copy of the latest status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsHealthy reports the latest probe result.
func (m *Monitor) IsHealthy() bool {
	return m.GetStatus().Healthy
}
