// CLAUDE:SUMMARY Collector configuration: YAML file parsing, defaults derived from the data directory, validation, conversion to fetch/extract settings.
// Package config handles baseline configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/baseline/dbopen"
	"github.com/hazyhaar/baseline/extract"
	"github.com/hazyhaar/baseline/fetch"
	"github.com/hazyhaar/baseline/ledger"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

// Config is the top-level configuration.
type Config struct {
	DataDir             string        `yaml:"data_dir"`
	Backend             string        `yaml:"backend"` // fs | sqlite
	BlobDB              string        `yaml:"blob_db"` // sqlite backend only
	LedgerPath          string        `yaml:"ledger_path"`
	LedgerDigest        string        `yaml:"ledger_digest"` // sha256 | blake2b-256
	TelemetryDB         string        `yaml:"telemetry_db"`
	UserAgent           string        `yaml:"user_agent"`
	AllowPrivate        bool          `yaml:"allow_private"` // disables the SSRF guard's private-range check
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	LogLevel            string        `yaml:"log_level"`
	Policy              PolicyConfig  `yaml:"policy"`
	Extract             ExtractConfig `yaml:"extract"`
	SQLite              SQLiteConfig  `yaml:"sqlite"`
	URLs                []string      `yaml:"urls"`
	Catalog             string        `yaml:"catalog"` // optional catalog file, used when urls is empty
}

// PolicyConfig mirrors fetch.Policy with YAML-friendly types. The counts
// are pointers so an explicit 0 is kept apart from an absent key.
type PolicyConfig struct {
	MaxRedirects        *int          `yaml:"max_redirects"`
	MaxBytes            *int64        `yaml:"max_bytes"`
	Timeout             time.Duration `yaml:"timeout"`
	AllowedContentTypes []string      `yaml:"allowed_content_types"`
}

// SQLiteConfig tunes the blob and telemetry databases. Zero values keep
// the dbopen defaults.
type SQLiteConfig struct {
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	Synchronous string        `yaml:"synchronous"` // OFF | NORMAL | FULL | EXTRA
}

// ExtractConfig selects the comparison text of HTML pages.
type ExtractConfig struct {
	Mode      string   `yaml:"mode"` // full | main | css
	Selectors []string `yaml:"selectors"`
	MinLen    int      `yaml:"min_len"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Backend == "" {
		c.Backend = BackendFS
	}
	if c.BlobDB == "" {
		c.BlobDB = filepath.Join(c.DataDir, "blobs.db")
	}
	if c.LedgerPath == "" {
		c.LedgerPath = filepath.Join(c.DataDir, "ledger", "ledger.jsonl")
	}
	if c.LedgerDigest == "" {
		c.LedgerDigest = ledger.SHA256.Name
	}
	if c.TelemetryDB == "" {
		c.TelemetryDB = filepath.Join(c.DataDir, "telemetry.db")
	}
	if c.UserAgent == "" {
		c.UserAgent = fetch.DefaultUserAgent
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.9
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Extract.Mode == "" {
		c.Extract.Mode = string(extract.ModeFull)
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend != BackendFS && c.Backend != BackendSQLite {
		errs = append(errs, fmt.Errorf("backend %q: want %s or %s", c.Backend, BackendFS, BackendSQLite))
	}
	if c.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity_threshold %v: must be in (0, 1]", c.SimilarityThreshold))
	}
	if _, err := ledger.DigestByName(c.LedgerDigest); err != nil {
		errs = append(errs, err)
	}
	if _, err := extract.ParseMode(c.Extract.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Extract.Mode == string(extract.ModeCSS) && len(c.Extract.Selectors) == 0 {
		errs = append(errs, errors.New("extract: css mode needs selectors"))
	}
	if _, err := c.Policy.Policy(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToUpper(c.SQLite.Synchronous) {
	case "", "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		errs = append(errs, fmt.Errorf("sqlite: synchronous %q: want OFF, NORMAL, FULL or EXTRA", c.SQLite.Synchronous))
	}
	if c.SQLite.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("sqlite: busy_timeout %v: must be >= 0", c.SQLite.BusyTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Policy compiles the fetch policy. Unset fields keep fetch defaults.
func (p PolicyConfig) Policy() (fetch.Policy, error) {
	out := fetch.DefaultPolicy()
	if p.MaxRedirects != nil {
		if *p.MaxRedirects < 0 {
			return fetch.Policy{}, fmt.Errorf("policy: max_redirects %d: must be >= 0", *p.MaxRedirects)
		}
		out.MaxRedirects = *p.MaxRedirects
	}
	if p.MaxBytes != nil {
		if *p.MaxBytes < 0 {
			return fetch.Policy{}, fmt.Errorf("policy: max_bytes %d: must be >= 0", *p.MaxBytes)
		}
		out.MaxBytes = *p.MaxBytes
	}
	if p.Timeout > 0 {
		out.Timeout = p.Timeout
	}
	if len(p.AllowedContentTypes) > 0 {
		res, err := fetch.ContentTypes(p.AllowedContentTypes...)
		if err != nil {
			return fetch.Policy{}, err
		}
		out.AllowedContentTypes = res
	}
	return out, nil
}

// Options converts to dbopen options.
func (s SQLiteConfig) Options() []dbopen.Option {
	var opts []dbopen.Option
	if s.BusyTimeout > 0 {
		opts = append(opts, dbopen.WithBusyTimeout(int(s.BusyTimeout.Milliseconds())))
	}
	if s.Synchronous != "" {
		opts = append(opts, dbopen.WithSynchronous(strings.ToUpper(s.Synchronous)))
	}
	return opts
}

// Options converts to extractor options.
func (e ExtractConfig) Options() extract.Options {
	mode, _ := extract.ParseMode(e.Mode)
	return extract.Options{Mode: mode, Selectors: e.Selectors, MinLen: e.MinLen}
}

// Digest resolves the configured ledger digest.
func (c *Config) Digest() ledger.Digest {
	d, err := ledger.DigestByName(c.LedgerDigest)
	if err != nil {
		return ledger.SHA256
	}
	return d
}

// WithDataDir returns a copy rooted at dir. Paths that were derived from
// the previous data directory move with it; explicitly configured ones stay.
func (c *Config) WithDataDir(dir string) *Config {
	out := *c
	old := c.DataDir
	out.DataDir = dir
	if c.BlobDB == filepath.Join(old, "blobs.db") {
		out.BlobDB = filepath.Join(dir, "blobs.db")
	}
	if c.LedgerPath == filepath.Join(old, "ledger", "ledger.jsonl") {
		out.LedgerPath = filepath.Join(dir, "ledger", "ledger.jsonl")
	}
	if c.TelemetryDB == filepath.Join(old, "telemetry.db") {
		out.TelemetryDB = filepath.Join(dir, "telemetry.db")
	}
	return &out
}
