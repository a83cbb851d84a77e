package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the workspace configuration file.
const FileName = "cashflow.yaml"

// Environment overrides, read after an optional .env file.
const (
	EnvDatabase = "CASHFLOW_DB"
	EnvLogLevel = "CASHFLOW_LOG_LEVEL"
	EnvAddr     = "CASHFLOW_ADDR"
)

// Config represents the top-level cashflow.yaml configuration.
type Config struct {
	Business   BusinessConfig   `yaml:"business"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	Accounts   []AccountConfig  `yaml:"accounts"`
	CreditCard CreditCardConfig `yaml:"credit_card"`
	Rules      RulesConfig      `yaml:"rules"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Projection ProjectionConfig `yaml:"projection"`
	Git        GitConfig        `yaml:"git"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name string `yaml:"name"`
}

// DatabaseConfig locates the SQLite ledger.
type DatabaseConfig struct {
	Path string `yaml:"path"` // relative paths resolve against the workspace root
}

// LoggingConfig selects the log level ("debug" switches to console output).
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AccountConfig maps statement account names to a business role.
type AccountConfig struct {
	Name       string   `yaml:"name"`
	Role       string   `yaml:"role"`
	Type       string   `yaml:"type"`
	LastFour   string   `yaml:"last_four"`
	LedgerBase string   `yaml:"ledger_base"`
	Match      []string `yaml:"match,omitempty"`
}

// CreditCardConfig sets the statement cycle.
type CreditCardConfig struct {
	CutDay    int `yaml:"cut_day"`
	GraceDays int `yaml:"grace_days"`
}

// RulesConfig holds the classifier's pattern tables. All patterns are
// matched case-insensitively.
type RulesConfig struct {
	TransferToBillPay    []string `yaml:"transfer_to_bill_pay"`
	TransferToPayroll    []string `yaml:"transfer_to_payroll"`
	TaxKeywords          []string `yaml:"tax_keywords"`
	MerchantPatterns     []string `yaml:"merchant_patterns"`
	TransferTokenPattern string   `yaml:"transfer_token_pattern"`
}

// ThresholdsConfig sets the confidence bands used in run statistics.
type ThresholdsConfig struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// ProjectionConfig controls the cash-flow forecast.
type ProjectionConfig struct {
	DiscountFactor string `yaml:"discount_factor"` // decimal string, applied to inflows
	HorizonDays    int    `yaml:"horizon_days"`
}

// GitConfig controls git integration for workspaces.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a cashflow.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv loads envFile when it exists and lets CASHFLOW_* variables
// override the file settings.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	return nil
}

// Default returns a Config for the standard four-account setup: a revenue
// checking account feeding a bill-pay and a payroll account, plus a
// business credit card.
func Default(businessName string) *Config {
	return &Config{
		Business: BusinessConfig{Name: businessName},
		Database: DatabaseConfig{Path: "cashflow.db"},
		Logging:  LoggingConfig{Level: "info"},
		Server:   ServerConfig{Addr: ":8080"},
		Accounts: []AccountConfig{
			{Name: "Revenue 4717", Role: "revenue", Type: "checking", LastFour: "4717", LedgerBase: "4000", Match: []string{"Revenue 4717"}},
			{Name: "Bill Pay 5285", Role: "bill_pay", Type: "checking", LastFour: "5285", LedgerBase: "6000", Match: []string{"Bill Pay", "5285"}},
			{Name: "Payroll 4079", Role: "payroll", Type: "checking", LastFour: "4079", LedgerBase: "6200", Match: []string{"Payroll", "4079"}},
			{Name: "Capital One", Role: "credit_card", Type: "credit_card", LedgerBase: "6000", Match: []string{"Capital One"}},
		},
		CreditCard: CreditCardConfig{CutDay: 11, GraceDays: 25},
		Rules:      DefaultRules(),
		Thresholds: ThresholdsConfig{High: 0.85, Medium: 0.70},
		Projection: ProjectionConfig{DiscountFactor: "0.85", HorizonDays: 90},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Cashflow",
			AuthorEmail: "cashflow@cleared.dev",
		},
	}
}

// DefaultRules returns the built-in pattern tables. Merchant patterns are
// tried in order and the first usable capture wins.
func DefaultRules() RulesConfig {
	return RulesConfig{
		TransferToBillPay: []string{
			`Transfer.*CH x4717.*CH x5285`,
			`Transfer.*4717.*5285`,
			`Bill Pay`,
			`TMID:.*5285`,
		},
		TransferToPayroll: []string{
			`Transfer.*CH x4717.*CH x4079`,
			`Transfer.*4717.*4079`,
			`Payroll`,
			`Salary`,
			`Hourly`,
		},
		TaxKeywords: []string{"TAX", "IRS"},
		MerchantPatterns: []string{
			`\bACH\s+(?:PAYMENT|DEPOSIT|CREDIT|DEBIT)\s+(?:(?:FROM|TO)\s+)?([A-Z][A-Z&\.,' -]{2,40})`,
			`\bACH\b.*?([A-Z][A-Z\s&\.]{10,40}?)\s{2,}`,
			`Memo Credit\s*:\s*([A-Z][A-Z\s&\.]{10,40}?)\s{2,}`,
			`(?:Payment|Pmt|Bill Payment) to\s+([A-Z][A-Z0-9&\.,' -]{2,40})`,
			`Debit Card\s*([A-Z][A-Z\s&\.]{10,40})\s*\d`,
			`(?:POS|PURCHASE)\s+([A-Z][A-Z&\.' -]{2,40})`,
			`^([A-Z][A-Z0-9&\.' -]{2,40}?)\s*[*#]`,
		},
		TransferTokenPattern: `TMID:([a-f0-9-]{8,})`,
	}
}
