package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"pdx/entity"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	StoreConfig struct {
		Path string `yaml:"path" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
	}

	AliasRuleConfig struct {
		Chunks    []string `yaml:"chunks,flow" validate:"required,min=1"`
		Canonical string   `yaml:"canonical" validate:"required"`
	}

	LinkingConfig struct {
		IDPrefix      string            `yaml:"id_prefix" validate:"required"`
		ParagraphTags []string          `yaml:"paragraph_tags,flow" validate:"required,min=1,dive,required"`
		SkipTags      []string          `yaml:"skip_tags,flow" validate:"dive,required"`
		Aliases       map[string]string `yaml:"aliases"`
		AliasRules    []AliasRuleConfig `yaml:"alias_rules" validate:"dive"`
	}

	IndexConfig struct {
		ID           string `yaml:"id" validate:"required"`
		FileName     string `yaml:"file_name" validate:"required"`
		Title        string `yaml:"title" validate:"required"`
		TOC          bool   `yaml:"toc"`
		MaxSentences int    `yaml:"max_sentences" validate:"gte=0"`
		ImagesDir    string `yaml:"images_dir" validate:"required"`
	}

	ImagesConfig struct {
		Placeholder           bool `yaml:"placeholder"`
		Optimize              bool `yaml:"optimize"`
		JPEGQuality           int  `yaml:"jpeg_quality_level" validate:"min=40,max=100"`
		MaxHeight             int  `yaml:"max_height" validate:"gte=0"`
		RemovePNGTransparency bool `yaml:"remove_png_transparency"`
	}

	DocumentConfig struct {
		FixZip                bool         `yaml:"fix_zip"`
		OutputNameTemplate    string       `yaml:"output_name_template"`
		FileNameTransliterate bool         `yaml:"file_name_transliterate"`
		Images                ImagesConfig `yaml:"images"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Store     StoreConfig    `yaml:"store"`
		Linking   LinkingConfig  `yaml:"linking"`
		Index     IndexConfig    `yaml:"index"`
		Document  DocumentConfig `yaml:"document"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

// Rules converts configured alias rules for dictionary construction.
func (conf *LinkingConfig) Rules() []entity.AliasRule {
	rules := make([]entity.AliasRule, 0, len(conf.AliasRules))
	for _, r := range conf.AliasRules {
		rules = append(rules, entity.AliasRule{Chunks: r.Chunks, Canonical: r.Canonical})
	}
	return rules
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
