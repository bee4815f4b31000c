// Package config loads the fileguard configuration: a YAML file under
// ~/.fileguard, FILEGUARD_* environment overrides, and defaults that make
// the guard usable with no configuration at all. The hook path treats every
// configuration problem as non-fatal; only long-lived commands (serve)
// refuse to start on an invalid config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/carlrannaberg/claudekit-sub009/internal/logger"
	"github.com/carlrannaberg/claudekit-sub009/internal/types"
)

var cfgLog = logger.New("config")

// envPrefix namespaces the environment overrides: FILEGUARD_LOG_LEVEL,
// FILEGUARD_DB_KEY, and so on.
const envPrefix = "fileguard"

// Config is the fileguard configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Guard   GuardConfig   `yaml:"guard"`
	Audit   AuditConfig   `yaml:"audit"`
	Serve   ServeConfig   `yaml:"serve"`
}

// LoggingConfig holds log output settings. All logging goes to stderr;
// stdout is reserved for decision payloads and command output.
type LoggingConfig struct {
	Level   types.LogLevel `yaml:"level" validate:"loglevel"`
	NoColor bool           `yaml:"no_color"`
}

// GuardConfig holds decision-engine settings.
type GuardConfig struct {
	// ExtraIgnoreFiles are additional ignore-file basenames probed in each
	// project root after the built-in list. Basenames only: the files are
	// always read from the project root.
	ExtraIgnoreFiles []string `yaml:"extra_ignore_files" validate:"dive,required,basename"`
	// DisableHeuristics turns off the raw-command pipeline-shape checks.
	// Ignore rules still apply.
	DisableHeuristics bool `yaml:"disable_heuristics"`
}

// AuditConfig holds decision-trail settings.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	// DBPath is the SQLite database location. Empty means the default
	// ~/.fileguard/audit.db.
	DBPath string `yaml:"db_path"`
	// EncryptionKey enables SQLCipher encryption of the database. Prefer
	// the FILEGUARD_DB_KEY environment variable: flag and file values can
	// leak through process listings and dotfile backups.
	EncryptionKey string `yaml:"encryption_key" validate:"omitempty,min=16"`
	// RetentionDays is how long purge keeps decisions. 0 keeps forever.
	RetentionDays int `yaml:"retention_days" validate:"min=0,max=36500"`
}

// ServeConfig holds settings for the serve-mode inspection API.
type ServeConfig struct {
	// Addr is the listen address. The default binds loopback only: the
	// API exposes project pattern sets and decision history.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
	// ReloadOnChange rebuilds the pattern cache when ignore files change
	// on disk. Off by default: the cache is normally immutable for the
	// life of the process and changes surface as staleness warnings.
	ReloadOnChange bool `yaml:"reload_on_change"`
}

// envOverrides maps FILEGUARD_* variables onto config fields. Pointer
// fields distinguish "unset" from an explicit false/empty.
type envOverrides struct {
	LogLevel string `envconfig:"LOG_LEVEL"`
	NoColor  *bool  `envconfig:"NO_COLOR"`
	AuditDB  string `envconfig:"AUDIT_DB"`
	Addr     string `envconfig:"ADDR"`
}

// DefaultConfigPath returns ~/.fileguard/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".fileguard", "config.yaml")
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: types.LogLevelInfo,
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:7341",
		},
	}
}

// validate is the shared validator instance with fileguard's custom tags
// registered.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "loglevel", func(fl validator.FieldLevel) bool {
		return types.LogLevel(fl.Field().String()).Valid()
	})
	mustRegister(v, "basename", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.ContainsAny(s, `/\`) && s != "." && s != ".."
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %q validation: %v", tag, err))
	}
}

// Validate checks all fields and reports every problem at once. Call it
// after CLI and environment overrides have been applied, not during Load.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: value %q fails %q", yamlPath(fe.Namespace()), fmt.Sprint(fe.Value()), fe.Tag()))
	}
	return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
}

// yamlPath turns a validator namespace like Config.Logging.Level into the
// yaml-style logging.level users actually wrote.
func yamlPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		var sb strings.Builder
		for j := 0; j < len(p); j++ {
			c := p[j]
			if c >= 'A' && c <= 'Z' {
				if j > 0 && p[j-1] >= 'a' && p[j-1] <= 'z' {
					sb.WriteByte('_')
				}
				c += 'a' - 'A'
			}
			sb.WriteByte(c)
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, ".")
}

// isUnknownFieldError reports whether the error came from
// yaml.Decoder.KnownFields(true) rejecting an unrecognized key, e.g. a
// typo like "gaurd:".
func isUnknownFieldError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found in type")
}

// Load reads the configuration file at path. A missing file returns the
// defaults. Unknown fields produce a warning and a lenient re-parse so a
// config written for a newer build still loads. Load does not call
// Validate: callers apply their overrides first.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if !isUnknownFieldError(err) {
			return nil, fmt.Errorf("config parse error: %w", err)
		}
		cfgLog.Warn("config has unknown fields (ignored): %v", err)
		cfg = DefaultConfig()
		if err2 := yaml.Unmarshal(data, cfg); err2 != nil {
			return nil, fmt.Errorf("config parse error: %w", err2)
		}
	}

	return cfg, nil
}

// ApplyEnv overlays FILEGUARD_* environment variables onto the loaded
// config. The secret override (FILEGUARD_DB_KEY) lives in LoadSecrets, not
// here.
func (c *Config) ApplyEnv() error {
	var e envOverrides
	if err := envconfig.Process(envPrefix, &e); err != nil {
		return fmt.Errorf("reading environment overrides: %w", err)
	}
	if e.LogLevel != "" {
		c.Logging.Level = types.LogLevel(e.LogLevel)
	}
	if e.NoColor != nil {
		c.Logging.NoColor = *e.NoColor
	}
	if e.AuditDB != "" {
		c.Audit.DBPath = e.AuditDB
	}
	if e.Addr != "" {
		c.Serve.Addr = e.Addr
	}
	return nil
}
