package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/remotefs/remotefs/internal/config"
	rfserrors "github.com/remotefs/remotefs/pkg/errors"
)

// Process exit codes.
const (
	ExitSuccess = iota
	ExitFailure
	// ExitPermission means the mount was refused for lack of privileges.
	ExitPermission
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion records build information for the version command.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	logLevel   string
	logFile    string
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "remotefs",
		Short: "Mount a remote metadata service as a FUSE filesystem",
		Long: `remotefs exposes the namespace of a remote metadata service as a local
filesystem. Every lookup and attribute request is answered by the service
over HTTP; nothing is cached locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       versionString(),
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate("remotefs version {{.Version}}\n")

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Append logs to this file instead of stderr")

	root.AddCommand(
		newMountCmd(opts),
		newUnmountCmd(opts),
		newHealthCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, fs.ErrPermission),
		rfserrors.GetCode(err) == rfserrors.ErrCodePermissionDenied:
		return ExitPermission
	default:
		return ExitFailure
	}
}

// loadConfiguration layers defaults, the config file, then REMOTEFS_*
// variables. Command flags are applied by the caller.
func (o *globalOptions) loadConfiguration(cmd *cobra.Command) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if o.configFile != "" {
		if err := cfg.LoadFromFile(o.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Global.LogLevel = o.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Global.LogFile = o.logFile
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "remotefs version %s\n", versionString())
		},
	}
}
