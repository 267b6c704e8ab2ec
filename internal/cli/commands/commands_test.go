package commands

import (
	"bytes"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remotefs/remotefs/internal/config"
	rfserrors "github.com/remotefs/remotefs/pkg/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersion("dev", "none", "unknown") })

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "remotefs version 1.2.3 (commit: abc123, built: 2026-01-01)\n", out)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "remotefs.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg := config.NewDefault()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, config.DefaultServerURL, cfg.Remote.ServerURL)
	assert.Equal(t, config.DefaultMountPoint, cfg.Mount.MountPoint)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestConfigShowLayersFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.NewDefault()
	cfg.Remote.ServerURL = "http://file.example:3000"
	cfg.Mount.MountPoint = "/mnt/from-file"
	require.NoError(t, cfg.SaveToFile(path))

	t.Setenv("REMOTEFS_MOUNT_POINT", "/mnt/from-env")

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "server_url: http://file.example:3000")
	assert.Contains(t, out, "mount_point: /mnt/from-env")
}

func TestHealthCommand(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(healthy.Close)

	out, err := execute(t, "health", healthy.URL)
	require.NoError(t, err)
	assert.Contains(t, out, healthy.URL+": healthy")

	sick := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(sick.Close)

	out, err = execute(t, "health", sick.URL)
	require.Error(t, err)
	assert.Contains(t, out, "unhealthy")
	assert.Equal(t, rfserrors.ErrCodeUnhealthy, rfserrors.GetCode(err))
	assert.Equal(t, ExitFailure, ExitCode(err))

	_, err = execute(t, "health", "not a url")
	assert.Equal(t, rfserrors.ErrCodeInvalidConfig, rfserrors.GetCode(err))
}

func TestMountResolvePrecedence(t *testing.T) {
	t.Setenv("REMOTEFS_SERVER_URL", "http://env.example:3000")
	t.Setenv("REMOTEFS_MOUNT_POINT", "/mnt/env")

	tests := []struct {
		name       string
		args       []string
		mountPoint string
		server     string
	}{
		{
			name:       "environment over defaults",
			mountPoint: "/mnt/env",
			server:     "http://env.example:3000",
		},
		{
			name:       "flags over environment",
			args:       []string{"--mount-point", "/mnt/flag", "--server", "http://flag.example:3000"},
			mountPoint: "/mnt/flag",
			server:     "http://flag.example:3000",
		},
		{
			name:       "positional over flags",
			args:       []string{"--mount-point", "/mnt/flag", "/mnt/arg", "http://arg.example:3000"},
			mountPoint: "/mnt/arg",
			server:     "http://arg.example:3000",
		},
		{
			name:       "relative mount point is made absolute",
			args:       []string{"rel/mnt"},
			mountPoint: mustAbs(t, "rel/mnt"),
			server:     "http://env.example:3000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &mountOptions{globalOptions: &globalOptions{}}
			cmd := opts.command()
			require.NoError(t, cmd.ParseFlags(tt.args))

			cfg, err := opts.resolve(cmd, cmd.Flags().Args())
			require.NoError(t, err)
			assert.Equal(t, tt.mountPoint, cfg.Mount.MountPoint)
			assert.Equal(t, tt.server, cfg.Remote.ServerURL)
		})
	}
}

func TestMountDebugRaisesLogLevel(t *testing.T) {
	opts := &mountOptions{globalOptions: &globalOptions{}}
	cmd := opts.command()
	require.NoError(t, cmd.ParseFlags([]string{"--debug", "--allow-other", "/mnt/x"}))

	cfg, err := opts.resolve(cmd, cmd.Flags().Args())
	require.NoError(t, err)
	assert.True(t, cfg.Mount.Debug)
	assert.True(t, cfg.Mount.AllowOther)
	assert.Equal(t, "DEBUG", cfg.Global.LogLevel)

	args := opts.daemonArgs(cfg)
	assert.Equal(t, []string{"mount", "/mnt/x", config.DefaultServerURL}, args[:3])
	assert.Contains(t, args, "--debug")
	assert.Contains(t, args, "--allow-other")
	assert.Contains(t, args, filepath.Join(os.TempDir(), "remotefs.log"))
}

func TestMountRejectsInvalidServer(t *testing.T) {
	_, err := execute(t, "mount", t.TempDir(), "ftp://example.com")
	require.Error(t, err)
	assert.Equal(t, rfserrors.ErrCodeConfigValidation, rfserrors.GetCode(err))
}

func TestMountAbortsWhenServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	mountPoint := filepath.Join(t.TempDir(), "mnt")
	logFile := filepath.Join(t.TempDir(), "remotefs.log")
	t.Cleanup(func() { logrus.SetOutput(os.Stderr) })

	_, err := execute(t, "mount", mountPoint, url, "--log-file", logFile)
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.EIO)
	assert.Equal(t, rfserrors.ErrCodeMountFailed, rfserrors.GetCode(err))
	assert.Equal(t, ExitFailure, ExitCode(err))

	info, statErr := os.Stat(mountPoint)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())

	logs, readErr := os.ReadFile(logFile)
	require.NoError(t, readErr)
	assert.Contains(t, string(logs), "Starting remotefs")
}

func TestBuildStack_HealthMonitorIsOptIn(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefault()
	s, err := buildStack(cfg, logrus.New())
	require.NoError(t, err)
	assert.Nil(t, s.monitor, "no background traffic by default")

	cfg.Monitoring.HealthChecks.Enabled = true
	s, err = buildStack(cfg, logrus.New())
	require.NoError(t, err)
	assert.NotNil(t, s.monitor)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(fmt.Errorf("boom")))
	assert.Equal(t, ExitPermission, ExitCode(fmt.Errorf("mount: %w", fs.ErrPermission)))
	assert.Equal(t, ExitPermission, ExitCode(rfserrors.NewError(rfserrors.ErrCodePermissionDenied, "fusermount refused")))
	assert.Equal(t, ExitFailure, ExitCode(rfserrors.NewError(rfserrors.ErrCodeMountFailed, "mount failed")))
}

func mustAbs(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	require.NoError(t, err)
	return abs
}
