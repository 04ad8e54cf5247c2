package ledger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/parquet-go/parquet-go"
)

// SnapshotFileName is the name of the columnar snapshot in the work directory
const SnapshotFileName = "ledger.parquet"

// snapshotRow is the columnar form of a ledger row. Width keeps the number of
// cells so short rows survive a round trip.
type snapshotRow struct {
	Position       int64  `parquet:"position"`
	Width          int32  `parquet:"width"`
	Barcode        string `parquet:"barcode"`
	Alma           string `parquet:"alma"`
	Year           string `parquet:"year"`
	Place          string `parquet:"place"`
	Author         string `parquet:"author"`
	Publisher      string `parquet:"publisher"`
	Classification string `parquet:"classification"`
	Title          string `parquet:"title"`
}

func toSnapshot(position int, row Row) snapshotRow {
	cells := make([]string, len(Header()))
	copy(cells, row)
	return snapshotRow{
		Position:       int64(position),
		Width:          int32(min(len(row), len(cells))),
		Barcode:        cells[0],
		Alma:           cells[1],
		Year:           cells[2],
		Place:          cells[3],
		Author:         cells[4],
		Publisher:      cells[5],
		Classification: cells[6],
		Title:          cells[7],
	}
}

func (s snapshotRow) row() Row {
	cells := Row{s.Barcode, s.Alma, s.Year, s.Place, s.Author, s.Publisher, s.Classification, s.Title}
	width := int(s.Width)
	if width < 0 || width > len(cells) {
		width = len(cells)
	}
	return cells[:width]
}

// WriteParquet stores every row after the header as a Parquet file
func (l *Ledger) WriteParquet(path string) error {
	rows := make([]snapshotRow, 0, len(l.rows))
	for i, row := range l.rows[1:] {
		rows = append(rows, toSnapshot(i+1, row))
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	if err := writeSnapshot(file, rows); err != nil {
		return err
	}

	slog.Debug("Wrote ledger snapshot", "path", path, "rows", len(rows))
	return nil
}

// writeSnapshot writes rows to out and closes it. A failed close fails the
// snapshot.
func writeSnapshot(out io.WriteCloser, rows []snapshotRow) error {
	writer := parquet.NewGenericWriter[snapshotRow](out)
	if _, err := writer.Write(rows); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write ledger rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	return nil
}

// ReadParquet restores a ledger from a snapshot written by WriteParquet
func ReadParquet(path string) (*Ledger, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[snapshotRow](pf)
	defer reader.Close()

	l := New()
	batch := make([]snapshotRow, 128)
	for {
		n, err := reader.Read(batch)
		for _, s := range batch[:n] {
			l.rows = append(l.rows, s.row())
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return l, nil
}
