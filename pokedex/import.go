package pokedex

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"
)

// ReadYAML reads list of records. Relative image paths are resolved against
// baseDir. Speculative records are dropped.
func ReadYAML(r io.Reader, baseDir string, log *zap.Logger) ([]Record, error) {
	var records []Record

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to decode records: %w", err)
	}

	for i := range records {
		if err := records[i].validate(); err != nil {
			return nil, err
		}
		records[i].ImagePath = resolveImagePath(records[i].ImagePath, baseDir)
	}
	records, dropped := filterSpeculative(records)
	if dropped > 0 {
		log.Debug("Speculative records skipped", zap.Int("count", dropped))
	}
	return records, nil
}

// cached entry as produced by scraper, one file per entry
type jsonRecord struct {
	Name        string `json:"name"`
	Index       string `json:"index"`
	Description string `json:"description"`
	ImgFilepath string `json:"img_filepath"`
	HTMLURL     string `json:"html_url"`
	ImgURL      string `json:"img_url"`
}

// parseIndex converts national index like "#037" to number.
func parseIndex(index string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(index), "#"))
	if err != nil {
		return 0, fmt.Errorf("bad index %q: %w", index, err)
	}
	return n, nil
}

// ReadJSONDir reads all *.json files in dir. Image paths are resolved against
// dir and, failing that, its parent directory since cache usually stores paths
// relative to the directory scraper was started from.
func ReadJSONDir(dir string, log *zap.Logger) ([]Record, error) {
	names, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("unable to list %s: %w", dir, err)
	}
	sort.Sort(natural.StringSlice(names))

	records := make([]Record, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("unable to read %s: %w", name, err)
		}
		var jr jsonRecord
		if err := json.Unmarshal(data, &jr); err != nil {
			return nil, fmt.Errorf("unable to decode %s: %w", name, err)
		}
		number, err := parseIndex(jr.Index)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		imagePath := jr.ImgFilepath
		if imagePath != "" && !filepath.IsAbs(imagePath) {
			imagePath = resolveImagePath(imagePath, dir)
			if _, err := os.Stat(imagePath); err != nil {
				if alt := filepath.Join(filepath.Dir(dir), jr.ImgFilepath); fileExists(alt) {
					imagePath = alt
				}
			}
		}

		r := Record{
			Number:      number,
			Name:        jr.Name,
			Description: jr.Description,
			ImagePath:   imagePath,
			HTMLURL:     jr.HTMLURL,
			ImageURL:    jr.ImgURL,
		}
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		records = append(records, r)
		log.Debug("Record loaded", zap.String("file", name), zap.Stringer("record", &r))
	}

	records, dropped := filterSpeculative(records)
	if dropped > 0 {
		log.Debug("Speculative records skipped", zap.Int("count", dropped))
	}
	return records, nil
}

func resolveImagePath(p, baseDir string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
