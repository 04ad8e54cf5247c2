package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/almaharvest/internal/alma"
	"github.com/lehigh-university-libraries/almaharvest/internal/classify"
	"github.com/lehigh-university-libraries/almaharvest/internal/config"
	"github.com/lehigh-university-libraries/almaharvest/internal/corpus"
	"github.com/lehigh-university-libraries/almaharvest/internal/harvest"
	"github.com/lehigh-university-libraries/almaharvest/internal/history"
	"github.com/lehigh-university-libraries/almaharvest/internal/ocr"
	"github.com/lehigh-university-libraries/almaharvest/internal/packager"
	"github.com/lehigh-university-libraries/almaharvest/internal/publish"
	"github.com/spf13/cobra"
)

func newHarvestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest metadata and OCR text and package the corpus",
		Long: `Run the full pipeline: discover items, retrieve their Alma records, keep
the items published before the cutoff year, run OCR, write the workbook, sort
the results into periods and zip the work directory.

Items are discovered from the PDF files in corpus_orig_dir, or from the
records of electronic_collection when that key is set.`,
		Example: `  # Harvest the PDFs in the corpus directory
  almaharvest harvest --config provide-dod-info.yml

  # Same with debug logging
  almaharvest harvest -c provide-dod-info.yml --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runHarvest(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "provide-dod-info.yml", "Path to the settings file")

	return cmd
}

func newClient(cfg *config.Config) (*alma.Client, error) {
	fetcher := alma.NewHTTPFetcher(cfg.HTTPTimeout, cfg.RequestsPerSecond)
	return alma.NewClient(cfg.AlmaSRUSearch, fetcher, cfg.CollectionMode())
}

func runHarvest(ctx context.Context, cfg *config.Config) error {
	startedAt := time.Now()

	if err := cfg.PrepareDirs(); err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	engine, err := ocr.New(ocr.Config{
		Engine:  cfg.OCR.Engine,
		Command: cfg.OCR.Command,
		Args:    cfg.OCR.Args,
		Model:   cfg.OCR.Model,
	})
	if err != nil {
		return err
	}

	var observer harvest.Observer
	if cfg.History.Enabled() {
		sink, err := history.NewMongo(ctx, cfg.History.MongoURI, cfg.History.Database, cfg.History.Collection)
		if err != nil {
			return err
		}
		defer func() {
			if err := sink.Close(context.Background()); err != nil {
				slog.Warn("Failed to disconnect from MongoDB", "err", err)
			}
		}()
		observer = sink
	}

	scanner := corpus.NewScanner(cfg.CorpusOrigDir, cfg.ElectronicCollection, client)
	scan, err := scanner.Discover(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover items: %w", err)
	}

	orchestrator, err := harvest.New(harvest.Options{
		WorkDir:        cfg.TempDir,
		SourceDir:      cfg.CorpusOrigDir,
		ConfiguredYear: cfg.CutYear,
		Fetcher:        client,
		OCR:            engine,
		Observer:       observer,
	})
	if err != nil {
		return err
	}
	l := orchestrator.Run(ctx, scan)

	pkg := &packager.Packager{
		WorkDir:      cfg.TempDir,
		OutDir:       cfg.OutDir,
		WorkbookName: cfg.OutFileName,
		Collection:   cfg.ElectronicCollection,
		KeepWorkDir:  cfg.KeepWorkDir,
	}
	if _, err := pkg.WriteLedger(l); err != nil {
		return err
	}

	buckets := classify.NewSorter(cfg.TempDir).Sort(l.Years())

	report := orchestrator.NewReport(startedAt)
	report.Mode = "directory"
	if cfg.CollectionMode() {
		report.Mode = "collection"
		report.Collection = cfg.ElectronicCollection
	}
	report.Buckets = buckets
	now := harvest.LocalTime(time.Now())
	report.FinishedAt = now.Format(time.RFC3339)
	report.Archive = packager.ArchiveName(cfg.ElectronicCollection, now)
	if err := harvest.WriteReport(filepath.Join(cfg.TempDir, harvest.ReportFileName), report); err != nil {
		return err
	}

	zipPath, err := pkg.Package(now)
	if err != nil {
		return err
	}
	slog.Info("Corpus packaged", "archive", zipPath, "ok", report.Counts.OK, "nok", report.Counts.NOK)

	if cfg.Publish.Enabled() {
		uploader, err := publish.NewMinIO(publish.Config{
			Endpoint:  cfg.Publish.Endpoint,
			Bucket:    cfg.Publish.Bucket,
			AccessKey: cfg.Publish.AccessKey,
			SecretKey: cfg.Publish.SecretKey,
			UseSSL:    cfg.Publish.UseSSL,
			Prefix:    cfg.Publish.Prefix,
			Region:    cfg.Publish.Region,
		})
		if err != nil {
			return err
		}
		if _, err := uploader.Upload(ctx, zipPath); err != nil {
			return err
		}
	}

	return nil
}
