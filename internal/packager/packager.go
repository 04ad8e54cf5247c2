package packager

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/almaharvest/internal/ledger"
)

// ReadmeFileName is the name of the readme added to every archive
const ReadmeFileName = "readme.txt"

const directArchivePrefix = "DOD_OCR_korpus"

//go:embed readme.txt
var readme []byte

// Packager turns a work directory into the deliverable archive
type Packager struct {
	WorkDir      string
	OutDir       string
	WorkbookName string
	Collection   string
	KeepWorkDir  bool
}

// ArchiveName returns the archive file name for a run on the given date
func ArchiveName(collection string, date time.Time) string {
	prefix := directArchivePrefix
	if collection != "" {
		prefix = collection
	}
	return fmt.Sprintf("%s_%s.zip", prefix, date.Format("20060102"))
}

// WriteLedger saves the workbook and the Parquet snapshot into the work
// directory
func (p *Packager) WriteLedger(l *ledger.Ledger) (string, error) {
	if err := os.MkdirAll(p.WorkDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}

	workbook := filepath.Join(p.WorkDir, p.WorkbookName)
	if err := WriteWorkbook(workbook, l.Rows()); err != nil {
		return "", err
	}
	if err := l.WriteParquet(filepath.Join(p.WorkDir, ledger.SnapshotFileName)); err != nil {
		return "", err
	}
	return workbook, nil
}

// AddReadme writes the readme into the work directory
func (p *Packager) AddReadme() error {
	path := filepath.Join(p.WorkDir, ReadmeFileName)
	if err := os.WriteFile(path, readme, 0644); err != nil {
		return fmt.Errorf("failed to write readme: %w", err)
	}
	return nil
}

// Package adds the readme, purges transient files, zips the work directory
// into the output directory and removes the work directory. It returns the
// archive path.
func (p *Packager) Package(date time.Time) (string, error) {
	if err := p.AddReadme(); err != nil {
		return "", err
	}
	if err := Purge(p.WorkDir, p.Collection != ""); err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.OutDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	zipPath := filepath.Join(p.OutDir, ArchiveName(p.Collection, date))
	if err := Archive(p.WorkDir, zipPath); err != nil {
		return "", err
	}

	if p.KeepWorkDir {
		return zipPath, nil
	}
	if err := os.RemoveAll(p.WorkDir); err != nil {
		slog.Warn("Failed to remove work directory", "dir", p.WorkDir, "err", err)
	}
	return zipPath, nil
}
