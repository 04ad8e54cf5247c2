package classify

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Bucket is a 50 year window of publication years
type Bucket struct {
	Label   string
	Start   int
	End     int
	pattern *regexp.Regexp
}

// Matches reports whether a four digit year falls in the bucket
func (b Bucket) Matches(year string) bool {
	return b.pattern.MatchString(year)
}

// Buckets are the ten windows covering 1400 to 1899, in order
var Buckets = newBuckets(1400, 1900)

func newBuckets(from, to int) []Bucket {
	var buckets []Bucket
	for start := from; start < to; start += 50 {
		century := start / 100
		low := (start % 100) / 10
		buckets = append(buckets, Bucket{
			Label:   fmt.Sprintf("%dto%d", start, start+49),
			Start:   start,
			End:     start + 49,
			pattern: regexp.MustCompile(fmt.Sprintf(`^(%d)[%d-%d][0-9]$`, century, low, low+4)),
		})
	}
	return buckets
}

// BucketFor returns the bucket of a year
func BucketFor(year string) (Bucket, bool) {
	for _, b := range Buckets {
		if b.Matches(year) {
			return b, true
		}
	}
	return Bucket{}, false
}

// artifact suffixes moved together into a bucket
var artifactSuffixes = []string{".txt", ".marc.xml"}

// Sorter moves harvested artifacts into bucket directories
type Sorter struct {
	workDir string
}

// NewSorter creates a sorter for the given work directory
func NewSorter(workDir string) *Sorter {
	return &Sorter{workDir: workDir}
}

// Sort moves the text and record of every barcode into the directory of its
// bucket and returns the number of barcodes per bucket label. Years outside
// the buckets are left in place.
func (s *Sorter) Sort(years map[string]string) map[string]int {
	summary := make(map[string]int)

	barcodes := make([]string, 0, len(years))
	for barcode := range years {
		barcodes = append(barcodes, barcode)
	}
	sort.Strings(barcodes)

	for _, bucket := range Buckets {
		var selected []string
		for _, barcode := range barcodes {
			if bucket.Matches(years[barcode]) {
				selected = append(selected, barcode)
			}
		}
		if len(selected) == 0 {
			continue
		}

		dir := filepath.Join(s.workDir, bucket.Label)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create bucket directory", "dir", dir, "err", err)
			continue
		}

		for _, barcode := range selected {
			for _, suffix := range artifactSuffixes {
				name := barcode + suffix
				if err := os.Rename(filepath.Join(s.workDir, name), filepath.Join(dir, name)); err != nil {
					slog.Error("Failed to move file", "file", name, "bucket", bucket.Label, "err", err)
				}
			}
		}
		summary[bucket.Label] = len(selected)
		slog.Info("Sorted bucket", "bucket", bucket.Label, "items", len(selected))
	}

	return summary
}
