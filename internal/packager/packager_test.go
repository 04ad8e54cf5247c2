package packager

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/lehigh-university-libraries/almaharvest/internal/ledger"
	"github.com/xuri/excelize/v2"
)

func sampleLedger() *ledger.Ledger {
	l := ledger.New()
	l.AppendOK(ledger.Entry{
		Barcode:        "11010200054A",
		Year:           "1875",
		Place:          "Kjøbenhavn",
		Author:         "Andersen, H.C.",
		Publisher:      "Reitzel",
		Classification: "N/A",
		Title:          "Eventyr",
	})
	l.AppendNOK("130018852943")
	return l
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(name), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
}

func TestArchiveName(t *testing.T) {
	date := time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)
	if got := ArchiveName("", date); got != "DOD_OCR_korpus_20250307.zip" {
		t.Errorf("Expected DOD_OCR_korpus_20250307.zip, got %s", got)
	}
	if got := ArchiveName("DOD 1800", date); got != "DOD 1800_20250307.zip" {
		t.Errorf("Expected DOD 1800_20250307.zip, got %s", got)
	}
}

func TestWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alma.xlsx")
	l := sampleLedger()

	if err := WriteWorkbook(path, l.Rows()); err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()
	if name := f.GetSheetName(0); name != SheetName {
		t.Errorf("Expected sheet %s, got %s", SheetName, name)
	}
	header, err := f.GetCellValue(SheetName, "A1")
	if err != nil || header != "Barcode" {
		t.Errorf("Expected Barcode header, got %q (%v)", header, err)
	}
	status, _ := f.GetCellValue(SheetName, "B3")
	if status != ledger.StatusNOK {
		t.Errorf("Expected NOK in B3, got %q", status)
	}
	headerStyle, _ := f.GetCellStyle(SheetName, "A1")
	nokStyle, _ := f.GetCellStyle(SheetName, "B3")
	okStyle, _ := f.GetCellStyle(SheetName, "B2")
	if headerStyle == 0 || nokStyle == 0 {
		t.Errorf("Expected styled header and NOK cells, got %d and %d", headerStyle, nokStyle)
	}
	if okStyle == nokStyle {
		t.Error("Expected OK cell to differ from NOK cell style")
	}

	years, err := ReadYears(path)
	if err != nil {
		t.Fatalf("Failed to read years: %v", err)
	}
	expected := map[string]string{"11010200054A": "1875"}
	if !reflect.DeepEqual(years, expected) {
		t.Errorf("Expected %v, got %v", expected, years)
	}
}

func TestPurge(t *testing.T) {
	tests := []struct {
		name           string
		collectionMode bool
		remaining      []string
	}{
		{
			name:      "direct mode",
			remaining: []string{"1850to1899", "A.marc.xml", "A.txt", "alma.xlsx"},
		},
		{
			name:           "collection mode",
			collectionMode: true,
			remaining:      []string{"1850to1899", "A.txt", "alma.xlsx"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, "old.zip", "B.error", "A.marc.xml", "A.txt", "alma.xlsx", "1850to1899/C.marc.xml")

			if err := Purge(dir, tt.collectionMode); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			entries, _ := os.ReadDir(dir)
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			sort.Strings(names)
			if !reflect.DeepEqual(names, tt.remaining) {
				t.Errorf("Expected %v, got %v", tt.remaining, names)
			}
			if _, err := os.Stat(filepath.Join(dir, "1850to1899", "C.marc.xml")); err != nil {
				t.Error("Expected sorted records to survive the purge")
			}
		})
	}
}

func TestArchive(t *testing.T) {
	root := t.TempDir()
	workDir := filepath.Join(root, "tempDir")
	writeFiles(t, workDir, "alma.xlsx", "1850to1899/A.txt", "1850to1899/A.marc.xml")

	zipPath := filepath.Join(root, "out.zip")
	if err := Archive(workDir, zipPath); err != nil {
		t.Fatalf("Failed to archive: %v", err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	expected := []string{
		"tempDir/",
		"tempDir/1850to1899/",
		"tempDir/1850to1899/A.marc.xml",
		"tempDir/1850to1899/A.txt",
		"tempDir/alma.xlsx",
	}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("Expected %v, got %v", expected, names)
	}
}

func TestPackage(t *testing.T) {
	root := t.TempDir()
	p := &Packager{
		WorkDir:      filepath.Join(root, "tempDir"),
		OutDir:       filepath.Join(root, "out"),
		WorkbookName: "alma.xlsx",
	}

	if _, err := p.WriteLedger(sampleLedger()); err != nil {
		t.Fatalf("Failed to write ledger: %v", err)
	}
	writeFiles(t, p.WorkDir, "stale.zip", "1850to1899/11010200054A.txt")

	zipPath, err := p.Package(time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Failed to package: %v", err)
	}
	if zipPath != filepath.Join(root, "out", "DOD_OCR_korpus_20250307.zip") {
		t.Errorf("Unexpected archive path %s", zipPath)
	}
	if _, err := os.Stat(p.WorkDir); !os.IsNotExist(err) {
		t.Error("Expected work directory to be removed")
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer r.Close()

	found := map[string]bool{}
	for _, f := range r.File {
		found[f.Name] = true
	}
	for _, name := range []string{"tempDir/readme.txt", "tempDir/alma.xlsx", "tempDir/ledger.parquet", "tempDir/1850to1899/11010200054A.txt"} {
		if !found[name] {
			t.Errorf("Expected %s in archive", name)
		}
	}
	if found["tempDir/stale.zip"] {
		t.Error("Expected stale archive to be purged")
	}
}

func TestPackageKeepsWorkDir(t *testing.T) {
	root := t.TempDir()
	p := &Packager{
		WorkDir:     filepath.Join(root, "tempDir"),
		OutDir:      filepath.Join(root, "out"),
		Collection:  "DOD",
		KeepWorkDir: true,
	}
	writeFiles(t, p.WorkDir, "A.marc.xml")

	if _, err := p.Package(time.Now()); err != nil {
		t.Fatalf("Failed to package: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p.WorkDir, ReadmeFileName)); err != nil {
		t.Error("Expected work directory with readme to be kept")
	}
	if _, err := os.Stat(filepath.Join(p.WorkDir, "A.marc.xml")); !os.IsNotExist(err) {
		t.Error("Expected unsorted record to be purged in collection mode")
	}
}

type closeFailer struct {
	bytes.Buffer
	closed bool
}

func (c *closeFailer) Close() error {
	c.closed = true
	return errors.New("no space left on device")
}

func TestWriteArchiveReportsCloseError(t *testing.T) {
	workDir := filepath.Join(t.TempDir(), "tempDir")
	writeFiles(t, workDir, "11010200054A.txt")

	out := &closeFailer{}
	if _, err := writeArchive(out, workDir, ""); err == nil {
		t.Fatal("Expected close error to be returned")
	}
	if !out.closed {
		t.Error("Expected output to be closed")
	}
	if out.Len() == 0 {
		t.Error("Expected zip data to be written before closing")
	}
}
