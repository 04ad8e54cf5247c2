package cmd

import (
	"fmt"
	"sort"

	"github.com/lehigh-university-libraries/almaharvest/internal/classify"
	"github.com/lehigh-university-libraries/almaharvest/internal/ledger"
	"github.com/lehigh-university-libraries/almaharvest/internal/packager"
	"github.com/spf13/cobra"
)

func newSortCmd() *cobra.Command {
	var workbookPath string
	var snapshotPath string
	var workDir string

	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort harvested files into periods using an existing ledger",
		Long: `Read the Barcode and Year columns of a harvest workbook, or of the
ledger.parquet snapshot written next to it, and move the matching
<barcode>.txt and <barcode>.marc.xml files of the work directory into their
50 year period directories.`,
		Example: `  almaharvest sort --workbook tempDir/alma.xlsx --work-dir tempDir
  almaharvest sort --snapshot tempDir/ledger.parquet --work-dir tempDir`,
		RunE: func(cmd *cobra.Command, args []string) error {
			years, err := loadYears(workbookPath, snapshotPath)
			if err != nil {
				return err
			}

			summary := classify.NewSorter(workDir).Sort(years)

			labels := make([]string, 0, len(summary))
			for label := range summary {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			for _, label := range labels {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", label, summary[label])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workbookPath, "workbook", "", "Path to the harvest workbook (.xlsx)")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Path to the ledger snapshot (.parquet)")
	cmd.Flags().StringVar(&workDir, "work-dir", "tempDir", "Directory holding the harvested files")
	cmd.MarkFlagsOneRequired("workbook", "snapshot")
	cmd.MarkFlagsMutuallyExclusive("workbook", "snapshot")

	return cmd
}

func loadYears(workbookPath, snapshotPath string) (map[string]string, error) {
	if snapshotPath == "" {
		return packager.ReadYears(workbookPath)
	}
	l, err := ledger.ReadParquet(snapshotPath)
	if err != nil {
		return nil, err
	}
	return l.Years(), nil
}
