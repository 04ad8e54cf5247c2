package packager

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Archive zips srcDir recursively into zipPath. Entry names are rooted at the
// base name of srcDir.
func Archive(srcDir, zipPath string) error {
	absZip, err := filepath.Abs(zipPath)
	if err != nil {
		return fmt.Errorf("failed to resolve archive path: %w", err)
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	files, err := writeArchive(out, srcDir, absZip)
	if err != nil {
		return err
	}

	slog.Info("Created archive", "path", zipPath, "files", files)
	return nil
}

// writeArchive streams the zip of srcDir into out and closes it. The file at
// skip is left out. It returns the number of files written.
func writeArchive(out io.WriteCloser, srcDir, skip string) (int, error) {
	files, err := zipTree(out, srcDir, skip)
	if err != nil {
		_ = out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close archive: %w", err)
	}
	return files, nil
}

func zipTree(out io.Writer, srcDir, skip string) (int, error) {
	zw := zip.NewWriter(out)
	base := filepath.Base(filepath.Clean(srcDir))
	files := 0

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if abs, err := filepath.Abs(path); err == nil && abs == skip {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(base, rel))

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}

		if d.IsDir() {
			header.Name = name + "/"
			_, err := zw.CreateHeader(header)
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		header.Name = name
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		if err := copyFile(w, path); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		_ = zw.Close()
		return 0, fmt.Errorf("failed to archive %s: %w", srcDir, err)
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish archive: %w", err)
	}
	return files, nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// Purge removes transient files from the root of dir before archiving. In
// collection mode records that were never sorted into a bucket go as well.
func Purge(dir string, collectionMode bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read work directory: %w", err)
	}

	suffixes := []string{".zip", ".error"}
	if collectionMode {
		suffixes = append(suffixes, ".marc.xml")
	}

	for _, entry := range entries {
		if entry.IsDir() || !hasAnySuffix(entry.Name(), suffixes) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		slog.Debug("Removed transient file", "path", path)
	}
	return nil
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
