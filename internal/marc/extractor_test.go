package marc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleRecord = `<?xml version="1.0" encoding="UTF-8"?>
<recordData xmlns="http://www.loc.gov/zing/srw/">
    <record xmlns="http://www.loc.gov/MARC21/slim">
        <leader>00000nam a2200000 a 4500</leader>
        <controlfield tag="008">740101s1875    dk            000 0 dan d</controlfield>
        <datafield tag="084" ind1=" " ind2=" ">
            <subfield code="a">61.3</subfield>
        </datafield>
        <datafield tag="100" ind1="1" ind2=" ">
            <subfield code="a">Andersen, H.C.</subfield>
        </datafield>
        <datafield tag="245" ind1="1" ind2="0">
            <subfield code="a">[Eventyr :] fortalte for børn /</subfield>
        </datafield>
        <datafield tag="260" ind1=" " ind2=" ">
            <subfield code="a">[Kjøbenhavn :]</subfield>
            <subfield code="b">Reitzel,</subfield>
        </datafield>
    </record>
</recordData>`

func recordWith008(value string) string {
	return `<record xmlns="http://www.loc.gov/MARC21/slim"><controlfield tag="008">` + value + `</controlfield></record>`
}

func parse(t *testing.T, xml string) *Record {
	t.Helper()
	record, err := Parse(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("Failed to parse record: %v", err)
	}
	return record
}

func TestFieldExtraction(t *testing.T) {
	record := parse(t, sampleRecord)

	tests := []struct {
		kind     Kind
		expected string
	}{
		{Year, "1875"},
		{Author, "Andersen, H.C."},
		{Title, "Eventyr  fortalte for børn "},
		{PublicationPlace, "Kjøbenhavn "},
		{Publisher, "Reitzel"},
		{Classification, "61.3"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, err := record.Field(tt.kind)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMissingFieldsFallBack(t *testing.T) {
	record := parse(t, recordWith008("740101s1875    dk"))

	for _, kind := range []Kind{Author, Title, PublicationPlace, Publisher, Classification} {
		got, err := record.Field(kind)
		if err != nil {
			t.Errorf("Expected no error for %s, got %v", kind, err)
		}
		if got != NotAvailable {
			t.Errorf("Expected %s for %s, got %q", NotAvailable, kind, got)
		}
	}
}

func TestPlaceAndPublisherFallBackTo264(t *testing.T) {
	record := parse(t, `<record>
<controlfield tag="008">740101s1875    dk</controlfield>
<datafield tag="264"><subfield code="a">Odense ;</subfield><subfield code="b">Hempel:</subfield></datafield>
</record>`)

	place, _ := record.Field(PublicationPlace)
	if place != "Odense " {
		t.Errorf("Expected place %q, got %q", "Odense ", place)
	}
	publisher, _ := record.Field(Publisher)
	if publisher != "Hempel" {
		t.Errorf("Expected publisher %q, got %q", "Hempel", publisher)
	}
}

func TestYearValidation(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		want    string
		wantErr bool
	}{
		{name: "valid year", field: "740101s1875    dk", want: "1875"},
		{name: "zero year", field: "740101s0000    dk", wantErr: true},
		{name: "unknown digits", field: "740101s18uu    dk", wantErr: true},
		{name: "too short", field: "740101s18", wantErr: true},
		{name: "blank", field: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parse(t, recordWith008(tt.field)).Year()
			if tt.wantErr {
				if !errors.Is(err, ErrNoYear) {
					t.Errorf("Expected ErrNoYear, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMissingControlFieldHasNoYear(t *testing.T) {
	_, err := parse(t, `<record><datafield tag="100"><subfield code="a">X</subfield></datafield></record>`).Year()
	if !errors.Is(err, ErrNoYear) {
		t.Errorf("Expected ErrNoYear, got %v", err)
	}
}

func TestExtractorReadsFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "11010200054A.marc.xml")
	if err := os.WriteFile(path, []byte(sampleRecord), 0644); err != nil {
		t.Fatalf("Failed to write record: %v", err)
	}

	extractor := NewExtractor()
	set, err := extractor.ExtractAll(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if set.Year != "1875" {
		t.Errorf("Expected year 1875, got %s", set.Year)
	}
	if set.Publisher != "Reitzel" {
		t.Errorf("Expected publisher Reitzel, got %s", set.Publisher)
	}

	empty := filepath.Join(dir, "empty.marc.xml")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatalf("Failed to write record: %v", err)
	}
	if _, err := extractor.Extract(empty, Year); !errors.Is(err, ErrNoYear) {
		t.Errorf("Expected ErrNoYear for empty record, got %v", err)
	}
	author, err := extractor.Extract(empty, Author)
	if err != nil || author != NotAvailable {
		t.Errorf("Expected %s without error, got %q (%v)", NotAvailable, author, err)
	}

	if _, err := extractor.Extract(filepath.Join(dir, "missing.marc.xml"), Year); !errors.Is(err, ErrNoYear) {
		t.Errorf("Expected ErrNoYear for missing record, got %v", err)
	}
}
