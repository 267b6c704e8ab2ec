package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/remotefs/remotefs/internal/fuse"
	rfserrors "github.com/remotefs/remotefs/pkg/errors"
)

func newUnmountCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unmount [MOUNT_POINT]",
		Short: "Unmount a remotefs mount",
		Long: `Unmount the filesystem at MOUNT_POINT. Without an argument the mount point
comes from the config file, REMOTEFS_MOUNT_POINT, or the default.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfiguration(cmd)
			if err != nil {
				return err
			}
			mountPoint := cfg.Mount.MountPoint
			if len(args) == 1 {
				mountPoint = args[0]
			}
			if mountPoint, err = filepath.Abs(mountPoint); err != nil {
				return rfserrors.NewError(rfserrors.ErrCodePathInvalid, "cannot resolve mount point").WithCause(err)
			}

			if err := fuse.UnmountPath(mountPoint); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unmounted %s\n", mountPoint)
			return nil
		},
	}
}
