package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lehigh-university-libraries/almaharvest/internal/config"
	"github.com/lehigh-university-libraries/almaharvest/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var configPath string
	var barcode string

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show the last harvest outcome of a barcode",
		Example: `  almaharvest history -c provide-dod-info.yml --barcode 11010200054A`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled() {
				return errors.New("history.mongo_uri is not configured")
			}

			sink, err := history.NewMongo(cmd.Context(), cfg.History.MongoURI, cfg.History.Database, cfg.History.Collection)
			if err != nil {
				return err
			}
			defer sink.Close(context.Background())

			entry, err := sink.LastOutcome(cmd.Context(), barcode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if entry == nil {
				fmt.Fprintf(out, "%s: never harvested\n", barcode)
				return nil
			}

			fmt.Fprintf(out, "%s: %s", entry.Barcode, entry.Outcome)
			if entry.Reason != "" {
				fmt.Fprintf(out, " (%s)", entry.Reason)
			}
			fmt.Fprintf(out, " run=%s at=%s", entry.RunID, entry.FinishedAt.Format(time.RFC3339))
			if entry.Year != "" {
				fmt.Fprintf(out, " year=%s", entry.Year)
			}
			fmt.Fprintln(out)
			if entry.Error != "" {
				fmt.Fprintf(out, "  error: %s\n", entry.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "provide-dod-info.yml", "Path to the settings file")
	cmd.Flags().StringVar(&barcode, "barcode", "", "Barcode of the item")
	_ = cmd.MarkFlagRequired("barcode")

	return cmd
}
