package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lehigh-university-libraries/almaharvest/internal/config"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var configPath string
	var barcode string
	var isbn string
	var output string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Retrieve a single Alma record",
		Long: `Retrieve the catalogue record of one item and write it to a file.

A barcode search returns MARCXML and must match exactly one record. An ISBN
search returns MODS.`,
		Example: `  almaharvest fetch -c provide-dod-info.yml --barcode 11010200054A
  almaharvest fetch -c provide-dod-info.yml --isbn 9788702000000 --output book.mods.xml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			var payload []byte
			if barcode != "" {
				payload, err = client.FetchRecord(cmd.Context(), barcode)
				if output == "" {
					output = barcode + ".marc.xml"
				}
			} else {
				payload, err = client.FetchRecordByISBN(cmd.Context(), isbn)
				if output == "" {
					output = isbn + ".mods.xml"
				}
			}
			if err != nil {
				return fmt.Errorf("failed to retrieve record: %w", err)
			}

			if err := os.WriteFile(output, payload, 0644); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
			slog.Info("Record written", "path", output, "size_bytes", len(payload))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "provide-dod-info.yml", "Path to the settings file")
	cmd.Flags().StringVar(&barcode, "barcode", "", "Barcode of the item")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN of the title")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to <id>.marc.xml or <id>.mods.xml)")
	cmd.MarkFlagsOneRequired("barcode", "isbn")
	cmd.MarkFlagsMutuallyExclusive("barcode", "isbn")

	return cmd
}
