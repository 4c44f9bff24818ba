package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/trackdb/core/model"
	"github.com/kilianp07/trackdb/infra/influx"
)

var writeFile string

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write records from a JSON file (a record or an array of records)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := readInput(cmd, writeFile)
		if err != nil {
			return err
		}
		records, err := model.DecodeRecords(data)
		if err != nil {
			return err
		}
		return withStore(cmd, func(ctx context.Context, s *influx.Store) error {
			n, err := s.WriteBatch(ctx, records)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d of %d records\n", n, len(records))
			return err
		})
	},
}

func init() {
	writeCmd.Flags().StringVarP(&writeFile, "file", "f", "-", "JSON file to read, - for stdin")
	writeCmd.Flags().DurationVar(&queryTimeout, "timeout", defaultTimeout, "write timeout")
	rootCmd.AddCommand(writeCmd)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
