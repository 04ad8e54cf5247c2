package marc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
)

// NotAvailable is written for bibliographic fields missing from a record
const NotAvailable = "N/A"

// ErrNoYear is returned when the 008 control field carries no usable year
var ErrNoYear = errors.New("year of release was not found")

// Kind identifies one of the bibliographic fields extracted from a record
type Kind int

const (
	Year Kind = iota
	Author
	Title
	PublicationPlace
	Publisher
	Classification
)

func (k Kind) String() string {
	switch k {
	case Year:
		return "year"
	case Author:
		return "author"
	case Title:
		return "title"
	case PublicationPlace:
		return "publication_place"
	case Publisher:
		return "publisher"
	case Classification:
		return "classification"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FieldSet holds the fields extracted from one record in a single pass
type FieldSet struct {
	Year             string
	Author           string
	Title            string
	PublicationPlace string
	Publisher        string
	Classification   string
}

// field describes where a value lives in a MARCXML record and how it is
// cleaned up when present or replaced when absent.
type field struct {
	paths   []string
	present func(string) (string, error)
	absent  func() (string, error)
}

var yearPattern = regexp.MustCompile(`^[0-9]{4}$`)

var fields = map[Kind]field{
	Year: {
		paths:   []string{controlField("008")},
		present: releaseYear,
		absent:  noYear,
	},
	Author: {
		paths:   []string{subfield("100", "a")},
		present: passThrough,
		absent:  notAvailable,
	},
	Title: {
		paths:   []string{subfield("245", "a")},
		present: strip("[]:/"),
		absent:  notAvailable,
	},
	PublicationPlace: {
		paths:   []string{subfield("260", "a"), subfield("264", "a")},
		present: strip("[]:;,"),
		absent:  notAvailable,
	},
	Publisher: {
		paths:   []string{subfield("260", "b"), subfield("264", "b")},
		present: strip("[]:,"),
		absent:  notAvailable,
	},
	Classification: {
		paths:   []string{subfield("084", "a")},
		present: passThrough,
		absent:  notAvailable,
	},
}

func controlField(tag string) string {
	return fmt.Sprintf("//*[local-name()='controlfield'][@tag='%s']", tag)
}

func subfield(tag, code string) string {
	return fmt.Sprintf("//*[local-name()='datafield'][@tag='%s']/*[local-name()='subfield'][@code='%s']", tag, code)
}

// releaseYear reads positions 7-10 of the 008 field (Date 1)
func releaseYear(value string) (string, error) {
	runes := []rune(value)
	if len(runes) < 11 {
		return "", fmt.Errorf("%w: 008 field too short (%d characters)", ErrNoYear, len(runes))
	}
	year := string(runes[7:11])
	if !yearPattern.MatchString(year) || year == "0000" {
		return "", fmt.Errorf("%w: invalid year %q", ErrNoYear, year)
	}
	return year, nil
}

func noYear() (string, error) {
	return "", ErrNoYear
}

func passThrough(value string) (string, error) {
	return value, nil
}

func notAvailable() (string, error) {
	return NotAvailable, nil
}

func strip(chars string) func(string) (string, error) {
	return func(value string) (string, error) {
		return strings.Map(func(r rune) rune {
			if strings.ContainsRune(chars, r) {
				return -1
			}
			return r
		}, value), nil
	}
}

// Record is a parsed MARCXML record
type Record struct {
	doc *xmlquery.Node
}

// Parse reads a MARCXML record
func Parse(r io.Reader) (*Record, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MARC record: %w", err)
	}
	return &Record{doc: doc}, nil
}

// ReadFile parses the MARCXML record stored at path
func ReadFile(path string) (*Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MARC record: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Field extracts a single field. Only Year can fail; every other kind
// falls back to NotAvailable.
func (r *Record) Field(kind Kind) (string, error) {
	f, ok := fields[kind]
	if !ok {
		return "", fmt.Errorf("unknown field kind: %s", kind)
	}

	for _, path := range f.paths {
		node := xmlquery.FindOne(r.doc, path)
		if node == nil {
			continue
		}
		if value := node.InnerText(); strings.TrimSpace(value) != "" {
			return f.present(value)
		}
	}
	return f.absent()
}

// Year returns the release year of the record
func (r *Record) Year() (string, error) {
	return r.Field(Year)
}

// FieldSet extracts every field. A missing year aborts the extraction.
func (r *Record) FieldSet() (FieldSet, error) {
	year, err := r.Year()
	if err != nil {
		return FieldSet{}, err
	}

	set := FieldSet{Year: year}
	for kind, dst := range map[Kind]*string{
		Author:           &set.Author,
		Title:            &set.Title,
		PublicationPlace: &set.PublicationPlace,
		Publisher:        &set.Publisher,
		Classification:   &set.Classification,
	} {
		value, err := r.Field(kind)
		if err != nil {
			value = NotAvailable
		}
		*dst = value
	}
	return set, nil
}

// Extractor reads fields from record files on disk
type Extractor struct{}

// NewExtractor creates a new field extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads one field from the record file. An unreadable record counts
// as a record without a year.
func (e *Extractor) Extract(path string, kind Kind) (string, error) {
	record, err := ReadFile(path)
	if err != nil {
		if kind == Year {
			return "", fmt.Errorf("%w: %v", ErrNoYear, err)
		}
		return NotAvailable, nil
	}
	return record.Field(kind)
}

// ExtractAll reads every field from the record file
func (e *Extractor) ExtractAll(path string) (FieldSet, error) {
	record, err := ReadFile(path)
	if err != nil {
		return FieldSet{}, fmt.Errorf("%w: %v", ErrNoYear, err)
	}
	return record.FieldSet()
}
