package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/srediag/todo-shm/pkg/todo"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Attach to a running list and edit it interactively",
	Args:  args(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd.Flags(), false)
		if err != nil {
			return err
		}
		c, logger, err := openList(cmd, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := todo.NewShell(c, os.Stdin, cmd.OutOrStdout(), logger).Run(cmd.Context()); err != nil {
			return shellError(err)
		}
		return nil
	},
}
