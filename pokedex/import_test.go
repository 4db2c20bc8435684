package pokedex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(name, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestReadYAML(t *testing.T) {
	src := `
- number: 128
  name: Tauros
  description: |
    Tauros is a Normal-type Pokémon.
    It evolves from nothing.
  image: pokemon/tauros.png
- number: 122
  name: Mr. Mime
  image: /abs/mr. mime.png
  html_url: https://example.org/Mr._Mime
- number: 1010
  name: Future
  description: This article's contents will change once revealed.
`
	records, err := ReadYAML(strings.NewReader(src), "/data", setupTestLogger(t))
	if err != nil {
		t.Fatalf("ReadYAML() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ReadYAML() returned %d records, want 2", len(records))
	}
	if records[0].ImagePath != filepath.Join("/data", "pokemon/tauros.png") {
		t.Errorf("relative image path not resolved: %q", records[0].ImagePath)
	}
	if records[1].ImagePath != "/abs/mr. mime.png" {
		t.Errorf("absolute image path changed: %q", records[1].ImagePath)
	}
	if !strings.Contains(records[0].Description, "\n") {
		t.Error("multiline description should keep newlines")
	}
	if records[1].HTMLURL != "https://example.org/Mr._Mime" {
		t.Errorf("HTMLURL = %q", records[1].HTMLURL)
	}
}

func TestReadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", "- number: 1\n  name: Bulbasaur\n  color: green\n"},
		{"missing number", "- name: Bulbasaur\n"},
		{"not a list", "number: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadYAML(strings.NewReader(tt.src), "", setupTestLogger(t)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestReadYAML_Empty(t *testing.T) {
	records, err := ReadYAML(strings.NewReader(""), "", setupTestLogger(t))
	if err != nil {
		t.Fatalf("ReadYAML() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("ReadYAML() = %v, want nothing", records)
	}
}

func TestReadJSONDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "pokemon")

	writeFile(t, filepath.Join(dir, "vulpix.json"), `{"name": "Vulpix", "index": "#037", "description": "Vulpix is a Fire-type.",
		"img_filepath": "pokemon/vulpix.png", "html_url": "https://bulbapedia.bulbagarden.net/wiki/Vulpix_(Pok%C3%A9mon)",
		"img_url": "https://example.org/vulpix.png", "html_filepath": "pokemon/vulpix.html", "json_filepath": "pokemon/vulpix.json"}`)
	writeFile(t, filepath.Join(dir, "vulpix.png"), "png")
	writeFile(t, filepath.Join(dir, "tauros.json"), `{"name": "Tauros", "index": "#128", "img_filepath": "tauros.png"}`)
	writeFile(t, filepath.Join(dir, "future.json"), `{"name": "Future", "index": "#1010", "description": "This article's contents will change"}`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	records, err := ReadJSONDir(dir, setupTestLogger(t))
	if err != nil {
		t.Fatalf("ReadJSONDir() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ReadJSONDir() returned %d records, want 2", len(records))
	}

	byName := make(map[string]Record)
	for _, r := range records {
		byName[r.Name] = r
	}

	vulpix := byName["Vulpix"]
	if vulpix.Number != 37 {
		t.Errorf("Vulpix number = %d, want 37", vulpix.Number)
	}
	if vulpix.ImagePath != filepath.Join(dir, "vulpix.png") {
		t.Errorf("Vulpix image = %q, want path under cache parent", vulpix.ImagePath)
	}
	if vulpix.HTMLURL != "https://bulbapedia.bulbagarden.net/wiki/Vulpix_(Pok%C3%A9mon)" {
		t.Errorf("Vulpix html url = %q", vulpix.HTMLURL)
	}
	if got := byName["Tauros"].ImagePath; got != filepath.Join(dir, "tauros.png") {
		t.Errorf("Tauros image = %q", got)
	}
}

func TestReadJSONDir_BadIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.json"), `{"name": "X", "index": "unknown"}`)

	if _, err := ReadJSONDir(dir, setupTestLogger(t)); err == nil {
		t.Fatal("expected error for bad index")
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#037", 37},
		{"#1008", 1008},
		{" 25 ", 25},
	}
	for _, tt := range tests {
		got, err := parseIndex(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseIndex(%q) = %d, %v, want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestRecordEntity(t *testing.T) {
	r := Record{Number: 83, Name: "Farfetch'd", Description: "d", ImagePath: "f.png"}
	e := r.Entity()
	if e.Number != 83 || e.LinkID != "farfetchd" || e.ImagePath != "f.png" || e.Description != "d" {
		t.Errorf("Entity() = %+v", e)
	}
	if r.String() != "#083 Farfetch'd" {
		t.Errorf("String() = %q", r.String())
	}
	if r.Speculative() {
		t.Error("regular record is not speculative")
	}
}
