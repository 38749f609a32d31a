// Package pathutil locates data files (SMDX model documents, PICS
// snapshots, mbmap documents) across an ordered list of plain directories
// and zip archives, mirroring the SunSpec Python library's PathList.
package pathutil

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// NotFoundError distinguishes "no location had the file" from a plain I/O
// failure while reading one that did exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("pathutil: not found: %s", e.Name) }

// List is an ordered, search-path-like collection of directories and zip
// archives. The zero value is an empty list.
type List struct {
	mu      sync.Mutex
	entries []string
}

// NewList builds a List pre-populated with paths, searched in order.
func NewList(paths ...string) *List {
	return &List{entries: append([]string{}, paths...)}
}

// Add appends a search location. A location whose name ends in .zip is
// treated as a zip archive; anything else is treated as a plain directory.
func (l *List) Add(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, path)
}

// Read returns the contents of the first instance of filename found by
// searching entries in order. Directories are searched directly; zip
// archives are searched with '/' as the path separator regardless of the
// host OS.
func (l *List) Read(filename string) ([]byte, error) {
	l.mu.Lock()
	entries := append([]string{}, l.entries...)
	l.mu.Unlock()

	for _, entry := range entries {
		if strings.HasSuffix(entry, ".zip") {
			data, err := readZip(entry, filename)
			if err == nil {
				return data, nil
			}
			if _, notFound := err.(*NotFoundError); !notFound {
				return nil, err
			}
			continue
		}
		full := filepath.Join(entry, filename)
		data, err := os.ReadFile(full)
		if err == nil {
			return data, nil
		}
		if info, statErr := os.Stat(full); statErr == nil && !info.IsDir() {
			return nil, err
		}
	}
	return nil, &NotFoundError{Name: filename}
}

func readZip(archive, filename string) ([]byte, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		// An archive that cannot be opened holds no file for this search.
		return nil, &NotFoundError{Name: filename}
	}
	defer zr.Close()

	want := path.Clean(filepath.ToSlash(filename))
	for _, f := range zr.File {
		if path.Clean(f.Name) != want {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		buf := make([]byte, f.UncompressedSize64)
		if _, err := io.ReadFull(rc, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return nil, &NotFoundError{Name: filename}
}
