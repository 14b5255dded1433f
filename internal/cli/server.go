package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/srediag/todo-shm/pkg/todo"
)

var serverSeed bool

// seedItems are added by "server --seed".
var seedItems = []string{"Design webpage", "Do backend", "Deploy website"}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Create a shared list and edit it interactively",
	Long: `Create the shared list and run the interactive shell on it.

The list lives as long as this process. Exiting the shell, closing stdin,
SIGINT and SIGTERM all destroy it.`,
	Args: args(cobra.NoArgs),
	RunE: runServer,
}

func init() {
	serverCmd.Flags().BoolVar(&serverSeed, "seed", false, "add three demo items after creating the list")
	serverCmd.Flags().String("admin-addr", "", "serve /live, /ready and /metrics on this address")
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags(), true)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c, logger, err := openList(cmd, cfg, todo.WithRegistry(reg))
	if err != nil {
		return err
	}
	defer c.Close()

	if serverSeed {
		if err := seed(cmd.Context(), c); err != nil {
			return err
		}
	}

	if cfg.AdminAddr != "" {
		admin, err := startAdmin(cfg.AdminAddr, c, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = admin.Shutdown(ctx)
		}()
		fmt.Fprintf(cmd.ErrOrStderr(), "Admin endpoints on http://%s\n", admin.Addr())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving to-do list %q with %d slots. Attach with: todoshm client --name %s\n",
		c.Name(), c.Capacity(), c.Name())
	logger.Info("server ready", zap.String("name", c.Name()))

	if err := todo.NewShell(c, os.Stdin, cmd.OutOrStdout(), logger).Run(cmd.Context()); err != nil {
		return shellError(err)
	}
	return c.Close()
}

func seed(ctx context.Context, list *todo.Client) error {
	for _, item := range seedItems {
		if _, err := list.Add(ctx, item); err != nil {
			return fmt.Errorf("seed %q: %w", item, err)
		}
	}
	return nil
}
