package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	geosql "github.com/tingold/orb-geosql"
	"github.com/tingold/orb-geosql/fgb"
)

// readInput returns args[0], or stdin when no argument or "-" is given.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		return []byte(args[0]), nil
	}
	return io.ReadAll(cmd.InOrStdin())
}

func newEncodeCommand(opts *RootOptions) *cobra.Command {
	var exteriorOnly bool
	cmd := &cobra.Command{
		Use:   "encode [geojson|-]",
		Short: "Encode a GeoJSON geometry as SRID-prefixed WKB hex",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			g, err := geosql.UnmarshalGeoJSON(bytes.TrimSpace(in))
			if err != nil {
				return err
			}
			c := opts.codec()
			c.ExteriorOnly = c.ExteriorOnly || exteriorOnly
			out, err := c.EncodeHex(g)
			if err != nil {
				return err
			}
			opts.log.Debug().Str("kind", g.Kind().String()).Int("bytes", len(out)/2).Msg("encoded")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&exteriorOnly, "exterior-only", false, "drop polygon holes")
	return cmd
}

func newDecodeCommand(opts *RootOptions) *cobra.Command {
	var showSRID bool
	cmd := &cobra.Command{
		Use:   "decode [hex|-]",
		Short: "Decode SRID-prefixed WKB hex into a GeoJSON geometry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			g, err := opts.codec().DecodeHex(strings.TrimSpace(string(in)))
			if err != nil {
				return err
			}
			out, err := geosql.MarshalGeoJSON(g)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if showSRID {
				fmt.Fprintf(w, "SRID=%d;", g.SRID())
			}
			_, err = fmt.Fprintln(w, string(out))
			return err
		},
	}
	cmd.Flags().BoolVar(&showSRID, "show-srid", false, "prefix the output with SRID=<n>;")
	return cmd
}

func newRewriteCommand(opts *RootOptions) *cobra.Command {
	var (
		dialect  string
		geometry []string
		columns  []string
	)
	cmd := &cobra.Command{
		Use:   "rewrite [sql|-]",
		Short: "Show how a read query is rewritten to return geometry columns as hex",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if dialect == "" {
				dialect = "mysql"
				if !opts.cfg.AutoDetect() {
					dialect = opts.cfg.Dialect
				}
			}
			engine, err := geosql.ParseEngine(dialect)
			if err != nil {
				return err
			}
			d := geosql.NewDialect(engine, geosql.WithCodec(opts.codec()), geosql.WithLogger(opts.log))
			r := geosql.NewRewriter(d, geosql.WithStatementCacheSize(0))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), r.Rewrite(strings.TrimSpace(string(in)), geometry, columns))
			return err
		},
	}
	cmd.Flags().StringVarP(&dialect, "dialect", "d", "", "database dialect (mysql|postgresql)")
	cmd.Flags().StringSliceVarP(&geometry, "geometry", "g", nil, "geometry column names")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "all column names, in order, for expanding SELECT *")
	return cmd
}

func newDetectCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <name>",
		Short: "Map a product, driver or connection URL name onto a dialect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, ok := geosql.DetectEngine(args[0])
			if !ok {
				opts.log.Warn().Str("name", args[0]).Msg("unrecognized database, defaulting to mysql")
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), engine)
			return err
		},
	}
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	var (
		out     string
		name    string
		noIndex bool
	)
	cmd := &cobra.Command{
		Use:   "export [featurecollection.geojson|-]",
		Short: "Convert a GeoJSON FeatureCollection into a FlatGeobuf file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) > 0 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			features, err := featuresFromGeoJSON(data, opts.codec().DefaultSRID)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			err = fgb.Write(&buf, features, &fgb.Options{
				Name:         name,
				IncludeIndex: !noIndex,
				DefaultSRID:  opts.codec().DefaultSRID,
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}
			opts.log.Info().Int("features", len(features)).Str("out", out).Msg("exported")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "out.fgb", "output file")
	cmd.Flags().StringVar(&name, "name", "", "layer name")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "omit the spatial index")
	return cmd
}

// featuresFromGeoJSON validates each feature geometry and normalizes polygon winding.
func featuresFromGeoJSON(data []byte, srid int) ([]fgb.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	features := make([]fgb.Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		g, err := geosql.FromOrb(f.Geometry, srid)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		g = g.Normalize()
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		features = append(features, fgb.Feature{Geometry: g, Properties: f.Properties})
	}
	return features, nil
}
