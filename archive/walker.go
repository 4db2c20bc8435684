// Package archive reads zip containers (EPUB books) entry by entry.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// WalkFunc is called for every file in archive visited by Walk. If an error
// is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Entry is archive file loaded in memory.
type Entry struct {
	Name     string
	Method   uint16
	Modified time.Time
	Data     []byte
}

// Walk calls walkFn for all files in the archive with names starting with
// prefix, in archive order. Entries with absolute paths or ".." components
// make Walk fail.
func Walk(archive, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, prefix) {
			if err := walkFn(archive, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads all files of the archive keeping their order and compression
// method. Directory entries are dropped.
func Load(archive string) ([]*Entry, error) {
	var entries []*Entry
	err := Walk(archive, "", func(_ string, f *zip.File) error {
		data, err := ReadFile(f)
		if err != nil {
			return err
		}
		entries = append(entries, &Entry{
			Name:     f.Name,
			Method:   f.Method,
			Modified: f.Modified,
			Data:     data,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadFile returns uncompressed content of archive file.
func ReadFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open zip entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("unable to read zip entry %q: %w", f.Name, err)
	}
	return data, nil
}

func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
