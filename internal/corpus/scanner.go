package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/almaharvest/internal/alma"
)

// Item is one digitized book to harvest
type Item struct {
	Barcode    string `json:"barcode" yaml:"barcode"`
	SourceFile string `json:"source_file" yaml:"source_file"`
}

// Result is the outcome of a discovery pass. Diagnostic is set when the
// source directory holds nothing to process.
type Result struct {
	Items      []Item
	Diagnostic string
}

// CollectionClient pages through the records of an electronic collection
type CollectionClient interface {
	FetchCollectionPage(ctx context.Context, collection string, page int) ([]byte, error)
}

// Scanner discovers the items of a harvest run
type Scanner struct {
	sourceDir  string
	collection string
	client     CollectionClient
}

// secondary renditions of a scan that are never harvested themselves
var renditionMarkers = []string{"-bw", "_bw", "_color", "xml"}

// NewScanner creates a scanner. A non-empty collection switches to
// collection mode.
func NewScanner(sourceDir, collection string, client CollectionClient) *Scanner {
	return &Scanner{
		sourceDir:  sourceDir,
		collection: strings.TrimSpace(collection),
		client:     client,
	}
}

// CollectionMode reports whether items are discovered through Alma
func (s *Scanner) CollectionMode() bool {
	return s.collection != ""
}

// Discover returns the items to process in discovery order
func (s *Scanner) Discover(ctx context.Context) (*Result, error) {
	if s.CollectionMode() {
		return s.discoverCollection(ctx)
	}
	return s.discoverDirectory()
}

func (s *Scanner) discoverDirectory() (*Result, error) {
	entries, err := os.ReadDir(s.sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var pdfs []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pdf") {
			continue
		}
		pdfs = append(pdfs, entry.Name())
	}

	if len(pdfs) == 0 {
		abs, err := filepath.Abs(s.sourceDir)
		if err != nil {
			abs = s.sourceDir
		}
		slog.Warn("No PDF files found", "dir", abs)
		return &Result{
			Diagnostic: "No files to retrieve and get Alma metadata for in this directory: " + abs,
		}, nil
	}

	result := &Result{}
	for _, name := range pdfs {
		if isRendition(name) {
			slog.Debug("Skipping secondary rendition", "file", name)
			continue
		}
		barcode := BarcodeFromFile(name)
		if barcode == "" {
			continue
		}
		result.Items = append(result.Items, Item{Barcode: barcode, SourceFile: name})
	}

	slog.Info("Discovered items in directory", "dir", s.sourceDir, "items", len(result.Items))
	return result, nil
}

func (s *Scanner) discoverCollection(ctx context.Context) (*Result, error) {
	first, err := s.client.FetchCollectionPage(ctx, s.collection, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to count collection records: %w", err)
	}
	values, err := alma.ExtractFieldValues(first, alma.XPathNumberOfRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to count collection records: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("collection %s: response carries no numberOfRecords", s.collection)
	}
	count, err := strconv.Atoi(strings.TrimSpace(values[0]))
	if err != nil {
		return nil, fmt.Errorf("collection %s: invalid numberOfRecords %q: %w", s.collection, values[0], err)
	}

	slog.Info("Discovering collection", "collection", s.collection, "records", count)

	result := &Result{}
	for page := 1; page <= count; page++ {
		raw := first
		if page > 1 {
			raw, err = s.client.FetchCollectionPage(ctx, s.collection, page)
			if err != nil {
				slog.Warn("Failed to fetch collection record", "collection", s.collection, "page", page, "err", err)
				continue
			}
		}

		links, err := alma.ExtractFieldValues(raw, alma.XPathElectronicLink)
		if err != nil {
			slog.Warn("Failed to read collection record", "collection", s.collection, "page", page, "err", err)
			continue
		}
		for _, link := range links {
			fileName := FileFromLink(link)
			barcode := BarcodeFromLink(fileName)
			if barcode == "" {
				continue
			}
			result.Items = append(result.Items, Item{Barcode: barcode, SourceFile: fileName})
		}
	}

	slog.Info("Discovered items in collection", "collection", s.collection, "items", len(result.Items))
	return result, nil
}

func isRendition(name string) bool {
	for _, marker := range renditionMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// BarcodeFromFile derives the barcode of a scanned PDF from its file name
func BarcodeFromFile(name string) string {
	name = strings.TrimSuffix(name, "-color.pdf")
	name = strings.TrimSuffix(name, ".pdf")
	return strings.TrimSpace(name)
}

// FileFromLink returns the last path segment of an electronic link
func FileFromLink(link string) string {
	link = strings.TrimSpace(link)
	return link[strings.LastIndex(link, "/")+1:]
}

// BarcodeFromLink returns the part of a linked file name before the first dash
func BarcodeFromLink(fileName string) string {
	if i := strings.Index(fileName, "-"); i >= 0 {
		fileName = fileName[:i]
	}
	return strings.TrimSpace(fileName)
}
