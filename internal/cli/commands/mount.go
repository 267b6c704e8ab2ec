package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/remotefs/remotefs/internal/circuit"
	"github.com/remotefs/remotefs/internal/config"
	"github.com/remotefs/remotefs/internal/fuse"
	"github.com/remotefs/remotefs/internal/gateway"
	"github.com/remotefs/remotefs/internal/health"
	"github.com/remotefs/remotefs/internal/metrics"
	rfserrors "github.com/remotefs/remotefs/pkg/errors"
	"github.com/remotefs/remotefs/pkg/utils"
)

// daemonEnv marks the detached child so it does not fork again.
const daemonEnv = "REMOTEFS_DAEMON_CHILD"

type mountOptions struct {
	*globalOptions
	mountPoint string
	server     string
	daemon     bool
	debug      bool
	allowOther bool
}

func newMountCmd(global *globalOptions) *cobra.Command {
	return (&mountOptions{globalOptions: global}).command()
}

func (o *mountOptions) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount [MOUNT_POINT] [SERVER_URL]",
		Short: "Mount the remote metadata service",
		Long: `Mount the remote metadata service at MOUNT_POINT.

Positional arguments take precedence over --mount-point and --server, which
take precedence over REMOTEFS_* environment variables and the config file.
The command blocks until the filesystem is unmounted or the process receives
SIGINT or SIGTERM, unless --daemon is given.`,
		Example: `  remotefs mount /tmp/remote-fs http://localhost:3000
  remotefs mount --daemon --log-file /var/log/remotefs.log`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.resolve(cmd, args)
			if err != nil {
				return err
			}
			if o.daemon && os.Getenv(daemonEnv) == "" {
				pid, err := startDetached(o.daemonArgs(cfg))
				if err != nil {
					return fmt.Errorf("failed to start in background: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "remotefs started in background (PID %d), mounting %s\n", pid, cfg.Mount.MountPoint)
				return nil
			}
			return runMount(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.mountPoint, "mount-point", config.DefaultMountPoint, "Directory to mount the filesystem at")
	flags.StringVar(&o.server, "server", config.DefaultServerURL, "Base URL of the metadata service")
	flags.BoolVarP(&o.daemon, "daemon", "d", false, "Detach and run in the background")
	flags.BoolVar(&o.debug, "debug", false, "Log every FUSE request and enable debug logging")
	flags.BoolVar(&o.allowOther, "allow-other", false, "Allow other users to access the mount")
	return cmd
}

// resolve builds the effective configuration for a mount.
func (o *mountOptions) resolve(cmd *cobra.Command, args []string) (*config.Configuration, error) {
	cfg, err := o.loadConfiguration(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("mount-point") {
		cfg.Mount.MountPoint = o.mountPoint
	}
	if flags.Changed("server") {
		cfg.Remote.ServerURL = o.server
	}
	if flags.Changed("allow-other") {
		cfg.Mount.AllowOther = o.allowOther
	}
	if o.debug {
		cfg.Mount.Debug = true
		if !flags.Changed("log-level") {
			cfg.Global.LogLevel = "DEBUG"
		}
	}
	if len(args) > 0 {
		cfg.Mount.MountPoint = args[0]
	}
	if len(args) > 1 {
		cfg.Remote.ServerURL = args[1]
	}

	if cfg.Mount.MountPoint != "" {
		abs, err := filepath.Abs(cfg.Mount.MountPoint)
		if err != nil {
			return nil, rfserrors.NewError(rfserrors.ErrCodePathInvalid, "cannot resolve mount point").
				WithContext("mount_point", cfg.Mount.MountPoint).WithCause(err)
		}
		cfg.Mount.MountPoint = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// daemonArgs rebuilds the command line for the detached child from the
// resolved configuration.
func (o *mountOptions) daemonArgs(cfg *config.Configuration) []string {
	args := []string{"mount", cfg.Mount.MountPoint, cfg.Remote.ServerURL, "--log-level", cfg.Global.LogLevel}
	if o.configFile != "" {
		args = append(args, "--config", o.configFile)
	}
	logFile := cfg.Global.LogFile
	if logFile == "" {
		logFile = filepath.Join(os.TempDir(), "remotefs.log")
	}
	args = append(args, "--log-file", logFile)
	if cfg.Mount.Debug {
		args = append(args, "--debug")
	}
	if cfg.Mount.AllowOther {
		args = append(args, "--allow-other")
	}
	return args
}

// stack is the set of components serving one mount.
type stack struct {
	collector *metrics.Collector
	client    *gateway.Client
	handler   *fuse.Handler
	monitor   *health.Monitor
}

func buildStack(cfg *config.Configuration, logger *logrus.Logger) (*stack, error) {
	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Metrics.Enabled,
		Port:      cfg.Monitoring.Metrics.Port,
		Path:      cfg.Monitoring.Metrics.Path,
		Namespace: cfg.Monitoring.Metrics.Namespace,
		Labels:    cfg.Monitoring.Metrics.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	var breaker *circuit.Breaker
	if cb := cfg.Network.CircuitBreaker; cb.Enabled {
		breaker = circuit.NewBreaker("metadata", circuit.Config{
			FailureThreshold: uint32(cb.FailureThreshold),
			Timeout:          cb.Timeout,
			IsFailure:        rfserrors.IsNetworkError,
			OnStateChange: func(name string, from, to circuit.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
				collector.SetCircuitState(int(to))
			},
		})
	}

	client, err := gateway.New(gateway.Options{
		BaseURL: cfg.Remote.ServerURL,
		Timeout: cfg.Network.Timeout,
		Retry: gateway.RetryOptions{
			Attempts: uint(cfg.Network.Retry.MaxAttempts),
			Delay:    cfg.Network.Retry.BaseDelay,
			MaxDelay: cfg.Network.Retry.MaxDelay,
		},
		Breaker: breaker,
		Metrics: collector,
		Logger:  logger.WithField("component", "gateway"),
	})
	if err != nil {
		return nil, err
	}

	s := &stack{
		collector: collector,
		client:    client,
		handler:   fuse.NewHandler(client, collector, logger.WithField("component", "fuse")),
	}
	if hc := cfg.Monitoring.HealthChecks; hc.Enabled {
		s.monitor = health.NewMonitor(client, &health.MonitorConfig{
			Interval: hc.Interval,
			Timeout:  hc.Timeout,
		}, collector, logger.WithField("component", "health"))
	}
	return s, nil
}

func runMount(ctx context.Context, cfg *config.Configuration) error {
	if ctx == nil {
		ctx = context.Background()
	}

	closer, err := utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFile, cfg.Global.LogFormat)
	if err != nil {
		return rfserrors.NewError(rfserrors.ErrCodeInvalidConfig, "failed to set up logging").WithCause(err)
	}
	defer closer.Close()

	logger := logrus.StandardLogger()
	logger.WithFields(logrus.Fields{
		"version":     version,
		"mount_point": cfg.Mount.MountPoint,
		"server":      cfg.Remote.ServerURL,
	}).Info("Starting remotefs")

	s, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.collector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	defer s.collector.Stop(context.Background())

	mgr := fuse.NewPlatformMountManager(s.handler, fuse.NewMountConfig(cfg), logger.WithField("component", "mount"))
	if err := mgr.Mount(ctx); err != nil {
		logger.WithError(err).Error("Mount failed")
		return err
	}

	if s.monitor != nil {
		if err := s.monitor.Start(ctx); err != nil {
			logger.WithError(err).Warn("Health monitor not started")
		} else {
			defer s.monitor.Stop()
		}
	}

	go func() {
		<-ctx.Done()
		if !mgr.IsMounted() {
			return
		}
		logger.Info("Shutdown signal received, unmounting")
		if err := mgr.Unmount(); err != nil {
			logger.WithError(err).Error("Unmount failed")
		}
	}()

	mgr.Wait()

	stats := mgr.GetStats()
	logger.WithFields(logrus.Fields{
		"lookups":     stats.Lookups,
		"getattrs":    stats.GetAttrs,
		"setattrs":    stats.SetAttrs,
		"unsupported": stats.Unsupported,
		"errors":      stats.Errors,
	}).Info("Filesystem unmounted")
	return nil
}
