package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "almaharvest",
		Short: "Harvest Alma metadata and OCR text for digitized books",
		Long: `almaharvest builds an OCR corpus of digitized books that are out of copyright.

It looks up every scanned book in Alma by barcode, keeps the ones published
before the cutoff year, extracts their text and sorts the results into
50 year periods before packaging everything as a zip archive.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			setupLogging(verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newSortCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
