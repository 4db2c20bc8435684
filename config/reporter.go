package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/multierr"

	"pdx/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates empty report, temporary file is used when destination
// cannot be created.
func (conf *ReporterConfig) Prepare() (*Report, error) {
	f, err := os.Create(conf.Destination)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err != nil {
			return nil, fmt.Errorf("unable to create report: %w", err)
		}
	}
	return &Report{entries: make(map[string]reportEntry), file: f}, nil
}

// reportEntry is either path to file or directory collected on Close or data
// captured when stored.
type reportEntry struct {
	path  string
	data  []byte
	stamp time.Time
}

// Report collects logs, configuration, dictionary dumps and patched books
// into single zip archive for troubleshooting. All methods are no-op on nil
// report so callers do not have to check whether report was requested. Not
// safe for concurrent use.
type Report struct {
	entries map[string]reportEntry
	file    *os.File
}

// Name returns absolute name of the report archive.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	if n, err := filepath.Abs(r.file.Name()); err == nil {
		return n
	}
	return r.file.Name()
}

// Store remembers file or directory to be put into report under name. Files
// are read when report is closed so logs are complete.
func (r *Report) Store(name, path string) {
	if r == nil {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if old, exists := r.entries[name]; exists && old.path != path {
		panic(fmt.Sprintf("report entry %q already stores %s, now %s", name, old.path, path))
	}
	r.entries[name] = reportEntry{path: path}
}

// StoreData puts data into report under name.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}
	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("report entry %q already exists", name))
	}
	r.entries[name] = reportEntry{data: data, stamp: time.Now()}
}

// Close writes report archive. Stored paths which do not exist are skipped.
func (r *Report) Close() (err error) {
	if r == nil || r.file == nil {
		return nil
	}
	defer func() {
		err = multierr.Append(err, r.file.Close())
	}()

	arc := zip.NewWriter(r.file)
	defer func() {
		err = multierr.Append(err, arc.Close())
	}()

	now := time.Now()
	names := slices.Sorted(maps.Keys(r.entries))

	manifest := new(bytes.Buffer)
	for _, name := range names {
		e := r.entries[name]
		source := e.path
		if source == "" {
			source = fmt.Sprintf("<%d bytes>", len(e.data))
		}
		fmt.Fprintf(manifest, "%s\t%s\t%s\n", now.UTC().Format(time.RFC3339), name, source)
	}
	if err := addToArchive(arc, "MANIFEST", now, manifest); err != nil {
		return err
	}

	for _, name := range names {
		e := r.entries[name]
		if e.path == "" {
			if err := addToArchive(arc, name, e.stamp, bytes.NewReader(e.data)); err != nil {
				return err
			}
			continue
		}
		if err := addPath(arc, name, e.path); err != nil {
			return fmt.Errorf("unable to add %s to report: %w", e.path, err)
		}
	}
	return nil
}

func addToArchive(arc *zip.Writer, name string, t time.Time, src io.Reader) error {
	w, err := arc.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: t})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func addFile(arc *zip.Writer, name, path string, t time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return addToArchive(arc, name, t, f)
}

// addPath stores regular file or every regular file under directory.
func addPath(arc *zip.Writer, name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if info.Mode().IsRegular() {
		return addFile(arc, name, path, info.ModTime())
	}
	if !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return addFile(arc, filepath.ToSlash(filepath.Join(name, rel)), p, fi.ModTime())
	})
}
