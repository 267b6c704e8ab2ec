package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/remotefs/remotefs/internal/gateway"
)

func newHealthCmd(global *globalOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health [SERVER_URL]",
		Short: "Probe the metadata service",
		Long:  "Send one GET /health to the metadata service and report whether it answered with a 2xx status.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfiguration(cmd)
			if err != nil {
				return err
			}
			server := cfg.Remote.ServerURL
			if len(args) == 1 {
				server = args[0]
			}

			logger := logrus.New()
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(logrus.WarnLevel)

			client, err := gateway.New(gateway.Options{
				BaseURL: server,
				Timeout: timeout,
				Logger:  logrus.NewEntry(logger),
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			start := time.Now()
			if err := client.Health(ctx); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: unhealthy\n", client.BaseURL())
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: healthy (%s)\n", client.BaseURL(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Give up on the probe after this long")
	return cmd
}
