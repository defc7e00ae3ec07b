package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/fillbook/volume"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of a fillbook run.
type Config struct {
	Account     AccountConfig      `json:"account" yaml:"account"`
	Risk        RiskConfig         `json:"risk" yaml:"risk"`
	Instruments []InstrumentConfig `json:"instruments" yaml:"instruments"`
	Journal     JournalConfig      `json:"journal" yaml:"journal"`
	Log         LogConfig          `json:"log" yaml:"log"`
	Metrics     MetricsConfig      `json:"metrics" yaml:"metrics"`
}

type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// RiskConfig feeds the risk snapshot and the monitor policy.
type RiskConfig struct {
	Fraction           float64 `json:"fraction" yaml:"fraction"`
	MaxFloatingLossPct float64 `json:"max_floating_loss_pct,omitempty" yaml:"max_floating_loss_pct,omitempty"`
	MaxDrawdown        float64 `json:"max_drawdown,omitempty" yaml:"max_drawdown,omitempty"`
	MaxOpenVolume      float64 `json:"max_open_volume,omitempty" yaml:"max_open_volume,omitempty"`
	MaxOpenLegs        int     `json:"max_open_legs,omitempty" yaml:"max_open_legs,omitempty"`
}

// InstrumentConfig carries lot size rules. Hedge keeps fills as separate
// legs instead of netting them.
type InstrumentConfig struct {
	Name  string  `json:"name" yaml:"name"`
	Step  float64 `json:"step" yaml:"step"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Hedge bool    `json:"hedge,omitempty" yaml:"hedge,omitempty"`
}

func (ic InstrumentConfig) Constraints() volume.Constraints {
	return volume.NewConstraints(ic.Step, ic.Min, ic.Max)
}

type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	RealizedFile  string `json:"realized_file,omitempty" yaml:"realized_file,omitempty"`
	SnapshotsFile string `json:"snapshots_file,omitempty" yaml:"snapshots_file,omitempty"`
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"` // e.g. ":9102", empty disables
}

// LoadFromFile loads a YAML or JSON config file, applies a .env file if one
// is present and FILLBOOK_* environment overrides, then validates.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	_ = godotenv.Load()
	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overwrites fields from FILLBOOK_* variables that are set.
func ApplyEnv(cfg *Config) {
	setStr(&cfg.Account.ID, "FILLBOOK_ACCOUNT_ID")
	setFloat(&cfg.Account.Balance, "FILLBOOK_ACCOUNT_BALANCE")
	setFloat(&cfg.Risk.Fraction, "FILLBOOK_RISK_FRACTION")
	setStr(&cfg.Journal.Type, "FILLBOOK_JOURNAL_TYPE")
	setStr(&cfg.Journal.DBPath, "FILLBOOK_JOURNAL_DB")
	setStr(&cfg.Log.Level, "FILLBOOK_LOG_LEVEL")
	setStr(&cfg.Log.File, "FILLBOOK_LOG_FILE")
	setStr(&cfg.Metrics.Addr, "FILLBOOK_METRICS_ADDR")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Instrument looks up an instrument by name.
func (c *Config) Instrument(name string) (InstrumentConfig, bool) {
	for _, ic := range c.Instruments {
		if ic.Name == name {
			return ic, true
		}
	}
	return InstrumentConfig{}, false
}

func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Risk.Fraction <= 0 || c.Risk.Fraction > 1 {
		return fmt.Errorf("risk.fraction must be between 0 and 1")
	}
	if c.Risk.MaxOpenVolume < 0 {
		return fmt.Errorf("risk.max_open_volume must not be negative")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}

	seen := map[string]bool{}
	for i, ic := range c.Instruments {
		if ic.Name == "" {
			return fmt.Errorf("instruments[%d].name is required", i)
		}
		if seen[ic.Name] {
			return fmt.Errorf("duplicate instrument: %s", ic.Name)
		}
		seen[ic.Name] = true
		if err := ic.Constraints().Validate(); err != nil {
			return fmt.Errorf("instrument %s: %w", ic.Name, err)
		}
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.RealizedFile == "" || c.Journal.SnapshotsFile == "" {
			return fmt.Errorf("journal realized_file and snapshots_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "ACCT-001",
			Currency: "USD",
			Balance:  10000,
		},
		Risk: RiskConfig{
			Fraction:           0.0001,
			MaxFloatingLossPct: 5,
		},
		Instruments: []InstrumentConfig{
			{Name: "EUR_USD", Step: 0.01, Min: 0.01, Max: 100},
			{Name: "XAU_USD", Step: 0.01, Min: 0.01, Max: 50, Hedge: true},
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./fillbook.sqlite",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
