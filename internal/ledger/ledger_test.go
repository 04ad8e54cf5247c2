package ledger

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleLedger() *Ledger {
	l := New()
	l.AppendOK(Entry{
		Barcode:        "11010200054A",
		Year:           "1875",
		Place:          "Kjøbenhavn",
		Author:         "Andersen, H.C.",
		Publisher:      "Reitzel",
		Classification: "61.3",
		Title:          "Eventyr",
	})
	l.AppendNOK("130018852943")
	l.AppendNote("No files to retrieve and get Alma metadata for in this directory: /tmp/x")
	return l
}

func TestNewLedgerHasHeader(t *testing.T) {
	l := New()
	if l.Len() != 1 {
		t.Fatalf("Expected 1 row, got %d", l.Len())
	}
	expected := Row{"Barcode", "Alma", "Year", "Place", "Author", "Publisher", "Classification", "Title"}
	if !reflect.DeepEqual(l.Rows()[0], expected) {
		t.Errorf("Expected header %v, got %v", expected, l.Rows()[0])
	}
}

func TestAppendKeepsOrder(t *testing.T) {
	rows := sampleLedger().Rows()
	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(rows))
	}
	if rows[1][0] != "11010200054A" || rows[1][1] != StatusOK || len(rows[1]) != 8 {
		t.Errorf("Unexpected OK row: %v", rows[1])
	}
	if !reflect.DeepEqual(rows[2], Row{"130018852943", StatusNOK}) {
		t.Errorf("Unexpected NOK row: %v", rows[2])
	}
	if rows[3][0] != "" || len(rows[3]) != 2 {
		t.Errorf("Unexpected note row: %v", rows[3])
	}
}

func TestRowsReturnsCopy(t *testing.T) {
	l := sampleLedger()
	rows := l.Rows()
	rows[1][0] = "changed"
	if l.Rows()[1][0] != "11010200054A" {
		t.Error("Expected ledger rows to be unaffected by caller mutation")
	}
}

func TestYears(t *testing.T) {
	years := sampleLedger().Years()
	expected := map[string]string{"11010200054A": "1875"}
	if !reflect.DeepEqual(years, expected) {
		t.Errorf("Expected %v, got %v", expected, years)
	}
}

func TestYearsOfFindsColumnsByName(t *testing.T) {
	rows := []Row{
		{"Title", "year", "barcode"},
		{"Eventyr", "1875", "A1"},
		{"Digte", "N/A", "A2"},
		{"Ukendt", "1901", ""},
		{"Kort"},
	}
	expected := map[string]string{"A1": "1875"}
	if got := YearsOf(rows); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestParquetRoundTrip(t *testing.T) {
	l := sampleLedger()
	path := filepath.Join(t.TempDir(), SnapshotFileName)

	if err := l.WriteParquet(path); err != nil {
		t.Fatalf("Failed to write snapshot: %v", err)
	}
	restored, err := ReadParquet(path)
	if err != nil {
		t.Fatalf("Failed to read snapshot: %v", err)
	}
	if !reflect.DeepEqual(restored.Rows(), l.Rows()) {
		t.Errorf("Expected %v, got %v", l.Rows(), restored.Rows())
	}
}

func TestParquetEmptyLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), SnapshotFileName)
	if err := New().WriteParquet(path); err != nil {
		t.Fatalf("Failed to write snapshot: %v", err)
	}
	restored, err := ReadParquet(path)
	if err != nil {
		t.Fatalf("Failed to read snapshot: %v", err)
	}
	if restored.Len() != 1 {
		t.Errorf("Expected header only, got %d rows", restored.Len())
	}
}

// closeFailer buffers writes and fails on Close like a full disk would
type closeFailer struct {
	bytes.Buffer
	closed bool
}

func (c *closeFailer) Close() error {
	c.closed = true
	return errors.New("no space left on device")
}

func TestWriteSnapshotReportsCloseError(t *testing.T) {
	out := &closeFailer{}
	err := writeSnapshot(out, []snapshotRow{toSnapshot(1, Row{"11010200054A", StatusOK, "1875"})})
	if err == nil {
		t.Fatal("Expected close error to be returned")
	}
	if !out.closed {
		t.Error("Expected output to be closed")
	}
	if out.Len() == 0 {
		t.Error("Expected parquet data to be written before closing")
	}
}
