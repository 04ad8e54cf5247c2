package ledger

import (
	"regexp"
	"strings"
)

// Status values written to the Alma column
const (
	StatusOK  = "OK"
	StatusNOK = "NOK"
)

// Column names of the header row, in order
const (
	ColumnBarcode        = "Barcode"
	ColumnAlma           = "Alma"
	ColumnYear           = "Year"
	ColumnPlace          = "Place"
	ColumnAuthor         = "Author"
	ColumnPublisher      = "Publisher"
	ColumnClassification = "Classification"
	ColumnTitle          = "Title"
)

// Row is one line of the ledger
type Row []string

// Header returns the header row
func Header() Row {
	return Row{
		ColumnBarcode,
		ColumnAlma,
		ColumnYear,
		ColumnPlace,
		ColumnAuthor,
		ColumnPublisher,
		ColumnClassification,
		ColumnTitle,
	}
}

// Entry is a harvested item that made it into the ledger
type Entry struct {
	Barcode        string
	Year           string
	Place          string
	Author         string
	Publisher      string
	Classification string
	Title          string
}

// Ledger is the ordered, append-only record of a harvest run. The first row
// is always the header.
type Ledger struct {
	rows []Row
}

// New creates a ledger holding only the header row
func New() *Ledger {
	return &Ledger{rows: []Row{Header()}}
}

// AppendOK records a successfully harvested item
func (l *Ledger) AppendOK(e Entry) {
	l.rows = append(l.rows, Row{
		e.Barcode,
		StatusOK,
		e.Year,
		e.Place,
		e.Author,
		e.Publisher,
		e.Classification,
		e.Title,
	})
}

// AppendNOK records an item for which Alma returned no data
func (l *Ledger) AppendNOK(barcode string) {
	l.rows = append(l.rows, Row{barcode, StatusNOK})
}

// AppendNote records a message that is not tied to an item
func (l *Ledger) AppendNote(message string) {
	l.rows = append(l.rows, Row{"", message})
}

// Len returns the number of rows including the header
func (l *Ledger) Len() int {
	return len(l.rows)
}

// Rows returns a copy of every row including the header
func (l *Ledger) Rows() []Row {
	out := make([]Row, len(l.rows))
	for i, row := range l.rows {
		out[i] = append(Row(nil), row...)
	}
	return out
}

var numeric = regexp.MustCompile(`^[0-9]+$`)

// Years maps barcodes to the year of every row with a numeric year
func (l *Ledger) Years() map[string]string {
	return YearsOf(l.rows)
}

// YearsOf builds the barcode to year view of a table whose first row is the
// header. Columns are located by name.
func YearsOf(rows []Row) map[string]string {
	years := make(map[string]string)
	if len(rows) == 0 {
		return years
	}

	barcodeCol, yearCol := -1, -1
	for i, name := range rows[0] {
		switch {
		case strings.EqualFold(strings.TrimSpace(name), ColumnBarcode):
			barcodeCol = i
		case strings.EqualFold(strings.TrimSpace(name), ColumnYear):
			yearCol = i
		}
	}
	if barcodeCol < 0 || yearCol < 0 {
		return years
	}

	for _, row := range rows[1:] {
		if len(row) <= barcodeCol || len(row) <= yearCol {
			continue
		}
		barcode := strings.TrimSpace(row[barcodeCol])
		year := strings.TrimSpace(row[yearCol])
		if barcode == "" || !numeric.MatchString(year) {
			continue
		}
		years[barcode] = year
	}
	return years
}
