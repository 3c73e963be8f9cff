package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vvka-141/pgload/pkg/pgload"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ConfigFileName is the file Load looks for in a directory.
const ConfigFileName = "pgload.yaml"

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// LoadSection mirrors the tuning knobs of pgload.LoadConfig. Durations use
// Go syntax ("5s", "10m").
type LoadSection struct {
	Source          string `yaml:"source"`
	Extension       string `yaml:"extension"`
	Mode            string `yaml:"mode"`
	ScanWorkers     int    `yaml:"scan_workers"`
	LoadWorkers     int    `yaml:"load_workers"`
	MaxAwaiting     int    `yaml:"max_awaiting"`
	Backoff         string `yaml:"backoff"`
	TimestampFormat string `yaml:"timestamp_format"`
	AtomicMerge     bool   `yaml:"atomic_merge"`
	Timeout         string `yaml:"timeout"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Load       LoadSection      `yaml:"load"`
	Schema     string           `yaml:"schema"`

	// dir is the directory the file was read from. Relative paths in the
	// file are resolved against it.
	dir string
}

// Load reads ConfigFileName from dir.
func Load(dir string) (*ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a project config from an explicit path.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, pgload.ErrInvalidConfig, err)
	}
	cfg.dir = filepath.Dir(path)
	return &cfg, nil
}

func (p *ProjectConfig) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || p.dir == "" {
		return path
	}
	return filepath.Join(p.dir, path)
}

// ApplyTo fills every zero-valued field of cfg from the file. Values already
// set (from flags) win. Relative source and schema paths are resolved
// against the config file's directory.
func (p *ProjectConfig) ApplyTo(cfg *pgload.LoadConfig, modeSet bool) error {
	var errs []error
	l := p.Load

	if cfg.SourcePath == "" {
		cfg.SourcePath = p.resolvePath(l.Source)
	}
	if cfg.SchemaPath == "" {
		cfg.SchemaPath = p.resolvePath(p.Schema)
	}
	if cfg.Extension == "" {
		cfg.Extension = l.Extension
	}
	if !modeSet && l.Mode != "" {
		mode, err := pgload.ParseLoadMode(l.Mode)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Mode = mode
	}
	if cfg.ScanWorkers == 0 {
		cfg.ScanWorkers = l.ScanWorkers
	}
	if cfg.LoadWorkers == 0 {
		cfg.LoadWorkers = l.LoadWorkers
	}
	if cfg.MaxAwaiting == 0 {
		cfg.MaxAwaiting = l.MaxAwaiting
	}
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = l.TimestampFormat
	}
	if l.AtomicMerge {
		cfg.AtomicMerge = true
	}
	if cfg.Backoff == 0 {
		d, err := parseDuration("load.backoff", l.Backoff)
		errs = append(errs, err)
		cfg.Backoff = d
	}
	if cfg.Timeout == 0 {
		d, err := parseDuration("load.timeout", l.Timeout)
		errs = append(errs, err)
		cfg.Timeout = d
	}

	return errors.Join(errs...)
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, pgload.ErrInvalidConfig)
	}
	return d, nil
}
