package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/trackdb/config"
	"github.com/kilianp07/trackdb/core/tsdb"
	"github.com/kilianp07/trackdb/infra/influx"
	"github.com/kilianp07/trackdb/infra/logger"
)

const defaultTimeout = 30 * time.Second

var (
	queryTimeout time.Duration
	queryTZ      string
	queryStart   string
	queryEnd     string
	queryGroup   string
)

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List the units that reported speed samples",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(ctx context.Context, s *influx.Store) error {
			units, err := s.ListUnits(ctx)
			if err != nil {
				return err
			}
			for _, u := range units {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), u.ID); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events UNIT",
	Short: "Print moving seconds per time bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *influx.Store) error {
			buckets, err := s.EventsByGroup(ctx, args[0], tsdb.EventsParams{
				Group:     queryGroup,
				Timezone:  queryTZ,
				StartDate: queryStart,
				EndDate:   queryEnd,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), buckets)
		})
	},
}

var distanceCmd = &cobra.Command{
	Use:   "distance UNIT",
	Short: "Print the distance traveled by a unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *influx.Store) error {
			d, err := s.TotalDistance(ctx, args[0], tsdb.DistanceParams{
				Timezone:  queryTZ,
				StartDate: queryStart,
				EndDate:   queryEnd,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%g\n", d)
			return err
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{unitsCmd, eventsCmd, distanceCmd} {
		c.Flags().DurationVar(&queryTimeout, "timeout", defaultTimeout, "query timeout")
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{eventsCmd, distanceCmd} {
		c.Flags().StringVar(&queryTZ, "tz", tsdb.DefaultTimezone, "IANA timezone of the results")
		c.Flags().StringVar(&queryStart, "start", "", "exclusive RFC3339 start date")
		c.Flags().StringVar(&queryEnd, "end", "", "exclusive RFC3339 end date")
	}
	eventsCmd.Flags().StringVar(&queryGroup, "group", tsdb.DefaultGroup, "bucket unit (ns, us, ms, s, m, h, d, w, mo, y)")
}

// withStore loads the configuration, connects a store and runs fn with a
// bounded context.
func withStore(cmd *cobra.Command, fn func(context.Context, *influx.Store) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetDebug(cfg.Logging.Debug)
	s := influx.New(logger.New("cli"), nil)
	if err := s.Connect(&cfg.Influx, cfg.Ingest.DataIntervalSeconds); err != nil {
		return err
	}
	defer s.Disconnect()
	ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
	defer cancel()
	return fn(ctx, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
