package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/almaharvest/internal/corpus"
	"github.com/lehigh-university-libraries/almaharvest/internal/ledger"
	"github.com/lehigh-university-libraries/almaharvest/internal/marc"
	"github.com/lehigh-university-libraries/almaharvest/internal/ocr"
)

// File suffixes of the per-item artifacts in the work directory
const (
	RecordSuffix = ".marc.xml"
	TextSuffix   = ".txt"
)

// Outcome is the terminal state of one item
type Outcome string

const (
	OutcomeOK      Outcome = "recorded_ok"
	OutcomeNOK     Outcome = "recorded_nok"
	OutcomeSkipped Outcome = "skipped"
)

// Reason explains a skipped or NOK outcome
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonFetchFailed Reason = "fetch_failed"
	ReasonWriteFailed Reason = "write_failed"
	ReasonNoYear      Reason = "no_year"
	ReasonTooRecent   Reason = "too_recent"
	ReasonOCRMissing  Reason = "ocr_missing"
	ReasonNoData      Reason = "no_data"
)

// RecordFetcher retrieves the bibliographic record of a barcode
type RecordFetcher interface {
	FetchRecord(ctx context.Context, barcode string) ([]byte, error)
}

// Observer is notified of every item outcome
type Observer interface {
	OnResult(ctx context.Context, res Result) error
}

// Result describes what happened to one item
type Result struct {
	RunID      string
	Barcode    string
	SourceFile string
	Outcome    Outcome
	Reason     Reason
	Year       string
	Err        error
	FinishedAt time.Time
}

// Options configures an Orchestrator
type Options struct {
	WorkDir        string
	SourceDir      string
	ConfiguredYear int
	CurrentYear    int
	Fetcher        RecordFetcher
	OCR            ocr.Engine
	Observer       Observer
	Now            func() time.Time
}

// Orchestrator runs the per-item harvest pipeline and owns the ledger
type Orchestrator struct {
	workDir    string
	sourceDir  string
	configured int
	cutoff     int
	fetcher    RecordFetcher
	extractor  *marc.Extractor
	ocr        ocr.Engine
	observer   Observer
	now        func() time.Time
	runID      string
	ledger     *ledger.Ledger
	counts     Counts
}

// New creates an orchestrator. The cutoff year is clamped once here.
func New(opts Options) (*Orchestrator, error) {
	if opts.WorkDir == "" {
		return nil, errors.New("work directory is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("record fetcher is required")
	}
	if opts.OCR == nil {
		return nil, errors.New("OCR engine is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CurrentYear == 0 {
		opts.CurrentYear = CurrentYear(opts.Now())
	}
	if err := os.MkdirAll(opts.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	o := &Orchestrator{
		workDir:    opts.WorkDir,
		sourceDir:  opts.SourceDir,
		configured: opts.ConfiguredYear,
		cutoff:     EffectiveCutoff(opts.ConfiguredYear, opts.CurrentYear),
		fetcher:    opts.Fetcher,
		extractor:  marc.NewExtractor(),
		ocr:        opts.OCR,
		observer:   opts.Observer,
		now:        opts.Now,
		runID:      uuid.NewString(),
		ledger:     ledger.New(),
		counts:     Counts{Reasons: map[string]int{}},
	}

	slog.Info("Harvest configured",
		"run_id", o.runID,
		"configured_cutoff", opts.ConfiguredYear,
		"effective_cutoff", o.cutoff,
		"work_dir", o.workDir)
	return o, nil
}

// Cutoff returns the effective cutoff year
func (o *Orchestrator) Cutoff() int {
	return o.cutoff
}

// RunID identifies this harvest run
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Ledger returns the ledger filled by Run and Process
func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

// Counts returns the outcome tallies so far
func (o *Orchestrator) Counts() Counts {
	c := o.counts
	c.Reasons = make(map[string]int, len(o.counts.Reasons))
	for k, v := range o.counts.Reasons {
		c.Reasons[k] = v
	}
	return c
}

// Run processes every discovered item in order. A scanner diagnostic is
// written to the ledger first.
func (o *Orchestrator) Run(ctx context.Context, scan *corpus.Result) *ledger.Ledger {
	if scan == nil {
		return o.ledger
	}
	if scan.Diagnostic != "" {
		o.ledger.AppendNote(scan.Diagnostic)
	}

	total := len(scan.Items)
	for i, item := range scan.Items {
		slog.Info("Processing item", "barcode", item.Barcode, "progress", fmt.Sprintf("%d/%d", i+1, total))
		o.Process(ctx, item)
	}

	slog.Info("Harvest finished",
		"run_id", o.runID,
		"items", o.counts.Items,
		"ok", o.counts.OK,
		"nok", o.counts.NOK,
		"skipped", o.counts.Skipped)
	return o.ledger
}

// Process harvests a single item. Every failure stays inside the item.
func (o *Orchestrator) Process(ctx context.Context, item corpus.Item) Result {
	res := Result{
		RunID:      o.runID,
		Barcode:    item.Barcode,
		SourceFile: item.SourceFile,
		Outcome:    OutcomeSkipped,
	}

	recordPath := filepath.Join(o.workDir, item.Barcode+RecordSuffix)
	keep := o.harvest(ctx, item, recordPath, &res)
	o.cleanup(recordPath, keep, &res)

	res.FinishedAt = o.now()
	o.counts.add(res)
	if o.observer != nil {
		if err := o.observer.OnResult(ctx, res); err != nil {
			slog.Warn("Failed to record harvest history", "barcode", item.Barcode, "err", err)
		}
	}
	return res
}

// harvest runs fetch, year gate, extraction and OCR. It reports whether the
// record file is to be kept.
func (o *Orchestrator) harvest(ctx context.Context, item corpus.Item, recordPath string, res *Result) bool {
	payload, err := o.fetcher.FetchRecord(ctx, item.Barcode)
	if err != nil {
		slog.Warn("Failed to retrieve Alma metadata", "barcode", item.Barcode, "err", err)
		res.Reason, res.Err = ReasonFetchFailed, err
		return false
	}
	if err := os.WriteFile(recordPath, payload, 0644); err != nil {
		slog.Error("Failed to write record", "barcode", item.Barcode, "path", recordPath, "err", err)
		res.Reason, res.Err = ReasonWriteFailed, err
		return false
	}

	year, err := o.extractor.Extract(recordPath, marc.Year)
	if err != nil {
		slog.Warn("Year of release was not found", "barcode", item.Barcode, "err", err)
		res.Reason, res.Err = ReasonNoYear, err
		return false
	}
	res.Year = year

	// the year is four digits at this point
	yearNum, _ := strconv.Atoi(year)
	if yearNum >= o.cutoff {
		slog.Info("Item is too recent", "barcode", item.Barcode, "year", year, "cutoff", o.cutoff)
		res.Reason = ReasonTooRecent
		return false
	}

	fields, err := o.extractor.ExtractAll(recordPath)
	if err != nil {
		res.Reason, res.Err = ReasonNoYear, err
		return false
	}

	textPath := filepath.Join(o.workDir, item.Barcode+TextSuffix)
	inputPath := filepath.Join(o.sourceDir, item.SourceFile)
	if err := o.ocr.GenerateText(ctx, inputPath, textPath); err != nil {
		slog.Error("OCR failed", "barcode", item.Barcode, "input", inputPath, "err", err)
		res.Err = err
	}

	if _, err := os.Stat(textPath); err != nil {
		slog.Warn("No OCR text produced", "barcode", item.Barcode, "path", textPath)
		res.Reason = ReasonOCRMissing
		return true
	}

	o.ledger.AppendOK(ledger.Entry{
		Barcode:        item.Barcode,
		Year:           fields.Year,
		Place:          fields.PublicationPlace,
		Author:         fields.Author,
		Publisher:      fields.Publisher,
		Classification: fields.Classification,
		Title:          fields.Title,
	})
	res.Outcome, res.Reason, res.Err = OutcomeOK, ReasonNone, nil
	slog.Info("Item harvested", "barcode", item.Barcode, "year", year)
	return true
}

// cleanup removes the record unless it is kept. An empty record means Alma
// returned no data and is recorded as NOK.
func (o *Orchestrator) cleanup(recordPath string, keep bool, res *Result) {
	info, err := os.Stat(recordPath)
	if err != nil {
		return
	}

	if info.Size() == 0 {
		if err := os.Remove(recordPath); err != nil {
			slog.Warn("Failed to delete record", "path", recordPath, "err", err)
		}
		slog.Info("No Alma data retrieved", "barcode", res.Barcode)
		o.ledger.AppendNOK(res.Barcode)
		res.Outcome, res.Reason = OutcomeNOK, ReasonNoData
		return
	}

	if keep {
		return
	}
	if err := os.Remove(recordPath); err != nil {
		slog.Warn("Failed to delete record", "path", recordPath, "err", err)
	}
}
