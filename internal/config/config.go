package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RootKey is the top level key of the settings file
const RootKey = "provide-dod-info"

// Defaults for optional settings
const (
	DefaultTempDir           = "tempDir"
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultRequestsPerSecond = 5
	DefaultOCREngine         = "pdftotext"
	DefaultOCRCommand        = "pdftotext"
	DefaultGeminiModel       = "gemini-1.5-flash"
)

// OCRConfig selects the text extraction engine
type OCRConfig struct {
	Engine  string   `yaml:"engine"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Model   string   `yaml:"model"`
}

// HistoryConfig configures the optional MongoDB harvest history
type HistoryConfig struct {
	MongoURI   string `yaml:"mongo_uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Enabled reports whether a history sink is configured
func (h HistoryConfig) Enabled() bool {
	return h.MongoURI != ""
}

// PublishConfig configures the optional archive upload
type PublishConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
}

// Enabled reports whether archive upload is configured
func (p PublishConfig) Enabled() bool {
	return p.Endpoint != ""
}

// Config holds the harvest settings
type Config struct {
	CorpusOrigDir        string        `yaml:"corpus_orig_dir"`
	OutDir               string        `yaml:"out_dir"`
	CutYear              int           `yaml:"cut_year"`
	AlmaSRUSearch        string        `yaml:"alma_sru_search"`
	OutFileName          string        `yaml:"out_file_name"`
	ElectronicCollection string        `yaml:"electronic_collection"`
	TempDir              string        `yaml:"temp_dir"`
	KeepWorkDir          bool          `yaml:"keep_work_dir"`
	HTTPTimeout          time.Duration `yaml:"http_timeout"`
	RequestsPerSecond    float64       `yaml:"requests_per_second"`
	OCR                  OCRConfig     `yaml:"ocr"`
	History              HistoryConfig `yaml:"history"`
	Publish              PublishConfig `yaml:"publish"`
}

type file struct {
	Settings *Config `yaml:"provide-dod-info"`
}

// Load reads, expands and validates the settings file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with the environment value. Any other
// dollar sign is kept literally.
func expandEnv(data string) string {
	return envReference.ReplaceAllStringFunc(data, func(ref string) string {
		return os.Getenv(envReference.FindStringSubmatch(ref)[1])
	})
}

// Parse decodes settings from YAML. Environment references written as
// ${ALMA_SRU_SEARCH} are expanded first.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	var f file
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if f.Settings == nil {
		return nil, fmt.Errorf("config is missing the %q section", RootKey)
	}

	cfg := f.Settings
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.ElectronicCollection = strings.TrimSpace(c.ElectronicCollection)
	if c.TempDir == "" {
		c.TempDir = DefaultTempDir
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.OCR.Engine == "" {
		c.OCR.Engine = DefaultOCREngine
	}
	if c.OCR.Command == "" {
		c.OCR.Command = DefaultOCRCommand
	}
	if c.OCR.Model == "" {
		c.OCR.Model = DefaultGeminiModel
	}
}

// Validate returns an error naming the first missing required key
func (c *Config) Validate() error {
	required := []struct {
		key     string
		missing bool
	}{
		{"corpus_orig_dir", c.CorpusOrigDir == ""},
		{"out_dir", c.OutDir == ""},
		{"cut_year", c.CutYear == 0},
		{"alma_sru_search", c.AlmaSRUSearch == ""},
		{"out_file_name", c.OutFileName == ""},
	}
	for _, r := range required {
		if r.missing {
			return fmt.Errorf("missing required config key %s.%s", RootKey, r.key)
		}
	}
	if c.CutYear < 0 {
		return fmt.Errorf("invalid cut_year %d", c.CutYear)
	}
	if filepath.Ext(c.OutFileName) != ".xlsx" {
		return fmt.Errorf("out_file_name must end in .xlsx: %s", c.OutFileName)
	}
	if c.Publish.Enabled() && c.Publish.Bucket == "" {
		return fmt.Errorf("missing required config key %s.publish.bucket", RootKey)
	}
	return nil
}

// CollectionMode reports whether items are discovered through an electronic
// collection instead of the corpus directory
func (c *Config) CollectionMode() bool {
	return c.ElectronicCollection != ""
}

// PrepareDirs creates the corpus, output and work directories
func (c *Config) PrepareDirs() error {
	for _, dir := range []string{c.CorpusOrigDir, c.OutDir, c.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
