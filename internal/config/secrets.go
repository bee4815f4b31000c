package config

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Secrets holds sensitive values loaded from environment variables.
// Environment variables are preferred over CLI flags and config files:
// flags show up in process listings (ps auxww) and config files end up in
// dotfile backups.
type Secrets struct {
	// DBKey is the SQLCipher encryption key for the audit database.
	// Env: FILEGUARD_DB_KEY
	DBKey string `envconfig:"DB_KEY"`
}

// LoadSecrets loads secrets from the environment.
func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return nil, fmt.Errorf("loading secrets from environment: %w", err)
	}
	return &s, nil
}

// LoadSecretsWithDefaults loads secrets, falling back to the provided
// values (typically from flags or the config file) when the environment
// variables are unset.
func LoadSecretsWithDefaults(dbKey string) (*Secrets, error) {
	s, err := LoadSecrets()
	if err != nil {
		return nil, err
	}
	if s.DBKey == "" {
		s.DBKey = dbKey
	}
	return s, nil
}

// ValidateDBKey checks the encryption key strength when one is set.
func (s *Secrets) ValidateDBKey() error {
	if s.DBKey != "" && len(s.DBKey) < 16 {
		return errors.New("database encryption key must be at least 16 characters")
	}
	return nil
}

// HasDBEncryption reports whether audit-database encryption is configured.
func (s *Secrets) HasDBEncryption() bool {
	return s.DBKey != ""
}

// MaskDBKey returns a masked form of the key, safe for logging.
func (s *Secrets) MaskDBKey() string {
	if s.DBKey == "" {
		return "(not set)"
	}
	if len(s.DBKey) <= 8 {
		return "****"
	}
	return s.DBKey[:2] + "****" + s.DBKey[len(s.DBKey)-2:]
}
