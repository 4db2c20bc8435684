package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readReport(t *testing.T, name string) map[string]string {
	t.Helper()

	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer zr.Close()

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(data)
	}
	return files
}

func TestReport(t *testing.T) {
	dir := t.TempDir()

	conf := &ReporterConfig{Destination: filepath.Join(dir, "pdx-report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if r.Name() != conf.Destination {
		t.Errorf("Name() = %q, want %q", r.Name(), conf.Destination)
	}

	logFile := filepath.Join(dir, "pdx.log")
	if err := os.WriteFile(logFile, []byte("early"), 0644); err != nil {
		t.Fatal(err)
	}
	results := filepath.Join(dir, "results")
	if err := os.MkdirAll(filepath.Join(results, "kanto"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(results, "kanto", "book.epub"), []byte("epub"), 0644); err != nil {
		t.Fatal(err)
	}

	r.Store("final.log", logFile)
	r.Store("final.log", logFile) // same path again is fine
	r.Store("results", results)
	r.Store("missing", filepath.Join(dir, "missing.txt"))
	r.StoreData("dictionary.txt", []byte("Dictionary: 1 entities"))

	// content is read on close
	if err := os.WriteFile(logFile, []byte("complete log"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	files := readReport(t, conf.Destination)
	want := map[string]string{
		"final.log":               "complete log",
		"results/kanto/book.epub": "epub",
		"dictionary.txt":          "Dictionary: 1 entities",
	}
	for name, content := range want {
		if files[name] != content {
			t.Errorf("report entry %s = %q, want %q", name, files[name], content)
		}
	}
	if _, ok := files["missing"]; ok {
		t.Error("missing file must be skipped")
	}
	manifest := files["MANIFEST"]
	for _, name := range []string{"dictionary.txt", "final.log", "missing", "results"} {
		if !strings.Contains(manifest, "\t"+name+"\t") {
			t.Errorf("MANIFEST missing %s:\n%s", name, manifest)
		}
	}
}

func TestReport_Overwrite(t *testing.T) {
	tests := []struct {
		name  string
		store func(r *Report)
	}{
		{"path", func(r *Report) { r.Store("a", "one"); r.Store("a", "two") }},
		{"data", func(r *Report) { r.StoreData("a", nil); r.StoreData("a", nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic on overwrite")
				}
			}()
			tt.store(&Report{entries: make(map[string]reportEntry)})
		})
	}
}

func TestReport_Nil(t *testing.T) {
	var r *Report
	r.Store("a", "b")
	r.StoreData("c", []byte("d"))
	if r.Name() != "" {
		t.Error("nil report has no name")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() on nil report error = %v", err)
	}
	if err := (&Report{}).Close(); err != nil {
		t.Errorf("Close() without file error = %v", err)
	}
}
