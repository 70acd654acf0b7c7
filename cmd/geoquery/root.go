package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nnnkkk7/geoquery/pkg/config"
	"github.com/nnnkkk7/geoquery/pkg/datasource"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	driver     string
	dsn        string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "geoquery",
		Short:         "Query tabular and spatial data over SQL backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&opts.driver, "driver", "", "backend (duckdb|postgres|mysql|sqlite|snowflake)")
	flags.StringVar(&opts.dsn, "dsn", "", "backend connection string")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newTablesCommand(opts))

	return cmd
}

// load resolves the configuration. Flags that were set win over every other
// source.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(afero.NewOsFs(), o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Driver = o.driver
	}
	if flags.Changed("dsn") {
		cfg.DSN = o.dsn
	}
	if flags.Changed("log-level") {
		level, err := zerolog.ParseLevel(o.logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		cfg.LogLevel = level
	}

	o.cfg = cfg
	o.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(cfg.LogLevel).
		With().Timestamp().Logger()
	return nil
}

func (o *rootOptions) open(cmd *cobra.Command) (*datasource.DataSource, error) {
	return datasource.OpenConfig(cmd.Context(), o.cfg, o.logger)
}
