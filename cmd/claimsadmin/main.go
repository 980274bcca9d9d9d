// Command claimsadmin administers the claim workflow database: schema
// migrations, the user directory, finance exports and local dev tokens.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/config"
	"github.com/garyjia/claim-workflow/internal/container"
	"github.com/garyjia/claim-workflow/pkg/utils"
)

var version = "dev"

// app carries state resolved once per invocation by the root command
type app struct {
	configPath string
	format     string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "claimsadmin",
		Short:        "Administer the claim workflow service",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "configs/config.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&a.format, "format", "table", "output format: table|json")

	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newUserCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newTokenCmd(a))
	return root
}

func (a *app) init() error {
	if a.format != "table" && a.format != "json" {
		return fmt.Errorf("unknown format %q", a.format)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// The CLI logs to stderr so stdout stays machine-readable.
	a.logger, err = utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     "console",
		Service:    "claimsadmin",
	})
	return err
}

// withContainer starts the service container for the duration of fn
func (a *app) withContainer(ctx context.Context, fn func(c *container.Container) error) error {
	if a.cfg.Database.Driver == config.DriverMemory {
		a.logger.Warn("Memory driver selected; changes are discarded when the command exits")
	}

	c, err := container.NewContainer(a.cfg, a.logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}
