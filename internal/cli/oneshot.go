package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srediag/todo-shm/pkg/todo"
)

var addCmd = &cobra.Command{
	Use:   "add <description...>",
	Short: "Add one item to a running list",
	Args:  args(cobra.MinimumNArgs(1)),
	RunE: func(cmd *cobra.Command, a []string) error {
		c, err := attach(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		idx, err := c.Add(cmd.Context(), strings.Join(a, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added item %d.\n", idx+1)
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <item number>",
	Short: "Mark an item of a running list completed",
	Args:  args(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, a []string) error {
		n, err := strconv.Atoi(a[0])
		if err != nil {
			return usage(fmt.Errorf("invalid item number %q", a[0]))
		}
		c, err := attach(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Complete(cmd.Context(), n-1); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Completed item %d.\n", n)
		return nil
	},
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print a running list",
	Args:  args(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := attach(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		records, err := c.List(cmd.Context())
		if err != nil {
			return err
		}
		return todo.Render(cmd.OutOrStdout(), records)
	},
}

func attach(cmd *cobra.Command) (*todo.Client, error) {
	cfg, err := loadConfig(cmd.Flags(), false)
	if err != nil {
		return nil, err
	}
	c, _, err := openList(cmd, cfg)
	return c, err
}
