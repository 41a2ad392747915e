package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	geosql "github.com/tingold/orb-geosql"
	"github.com/tingold/orb-geosql/internal/config"
	"github.com/tingold/orb-geosql/internal/logger"
)

// RootOptions holds global flags and the state built from them.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	SRID       int

	cfg config.Config
	log zerolog.Logger
}

// codec returns the configured codec, with --srid taking precedence.
func (o *RootOptions) codec() geosql.Codec {
	c := o.cfg.Codec()
	if o.SRID != 0 {
		c.DefaultSRID = o.SRID
	}
	return c
}

// NewRootCommand creates the geosql command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "geosql",
		Short: "Convert geometries between GeoJSON, SRID-prefixed WKB and FlatGeobuf",
		Long: `geosql converts Point, LineString and Polygon geometries between GeoJSON,
the SRID-prefixed little-endian WKB stored in spatial columns, and FlatGeobuf.
It can also show how read queries are rewritten for a database dialect.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				cfg.Log.Level = opts.LogLevel
			}
			opts.cfg = cfg
			opts.log = logger.Build(logger.Config{
				Level:     cfg.Log.Level,
				Console:   true,
				Component: "cli",
			}, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().IntVar(&opts.SRID, "srid", 0, "default SRID for geometries without one")

	cmd.AddCommand(newEncodeCommand(opts))
	cmd.AddCommand(newDecodeCommand(opts))
	cmd.AddCommand(newRewriteCommand(opts))
	cmd.AddCommand(newDetectCommand(opts))
	cmd.AddCommand(newExportCommand(opts))

	return cmd
}
