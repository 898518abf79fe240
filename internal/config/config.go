package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Configuration validation constants
const (
	MinPollingInterval = 60    // Minimum polling interval in seconds
	MinPort            = 1     // Minimum valid port number
	MaxPort            = 65535 // Maximum valid port number

	// Mandatory target account keys
	KeyTenantID        = "TenantId"
	KeySubscription    = "Subscription"
	KeyEnvironmentName = "EnvironmentName"

	// Default values
	DefaultPollingInterval = 3600 // 1 hour in seconds
	DefaultExporterPort    = 8080
	DefaultLogLevel        = "info"
	DefaultAPITimeout      = 30 // API timeout in seconds
)

// TargetAccount is one monitored Azure account: a free-form set of
// key/value pairs that becomes the metric's label schema. TenantId and
// Subscription are mandatory keys.
type TargetAccount map[string]string

// TenantID returns the account's TenantId value.
func (t TargetAccount) TenantID() string {
	return t[KeyTenantID]
}

// SubscriptionID returns the account's Subscription value.
func (t TargetAccount) SubscriptionID() string {
	return t[KeySubscription]
}

// Clone returns a copy of the account that can be mutated independently.
func (t TargetAccount) Clone() TargetAccount {
	out := make(TargetAccount, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Group describes one grouping dimension for cost queries
type Group struct {
	Type      string `yaml:"type"`
	Name      string `yaml:"name"`
	LabelName string `yaml:"label_name"`
}

// MergeMinorCost collapses grouped rows below Threshold into a single
// point tagged TagValue, bounding label cardinality
type MergeMinorCost struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
	TagValue  string  `yaml:"tag_value"`
}

// GroupByConfig represents the grouping configuration
type GroupByConfig struct {
	Enabled        bool           `yaml:"enabled"`
	Groups         []Group        `yaml:"groups"`
	MergeMinorCost MergeMinorCost `yaml:"merge_minor_cost"`
}

// Config represents the application configuration
type Config struct {
	TargetAccounts  []TargetAccount `yaml:"target_azure_accounts"`
	GroupBy         GroupByConfig   `yaml:"group_by"`
	PollingInterval int             `yaml:"polling_interval_seconds"`
	ExporterPort    int             `yaml:"exporter_port"`
	LogLevel        string          `yaml:"log_level"`
	APITimeout      int             `yaml:"api_timeout"` // Azure API timeout in seconds
}

// Load loads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 -- Config file path is provided by administrator via CLI flag, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv substitutes ${VAR} references in the raw YAML so secrets
// and IDs can be injected from the environment. Unset variables expand
// to the empty string and are caught by validation.
func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}

// applyDefaults sets default values for configuration
func applyDefaults(cfg *Config) {
	if cfg.PollingInterval == 0 {
		cfg.PollingInterval = DefaultPollingInterval
	}
	if cfg.ExporterPort == 0 {
		cfg.ExporterPort = DefaultExporterPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.APITimeout == 0 {
		cfg.APITimeout = DefaultAPITimeout
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("AZURE_COST_POLLING_INTERVAL"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid AZURE_COST_POLLING_INTERVAL: must be an integer, got %q", val)
		}
		cfg.PollingInterval = i
	}

	if val := os.Getenv("AZURE_COST_EXPORTER_PORT"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid AZURE_COST_EXPORTER_PORT: must be an integer, got %q", val)
		}
		cfg.ExporterPort = i
	}

	if val := os.Getenv("AZURE_COST_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}

	if val := os.Getenv("AZURE_COST_API_TIMEOUT"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid AZURE_COST_API_TIMEOUT: must be an integer, got %q", val)
		}
		cfg.APITimeout = i
	}

	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if len(cfg.TargetAccounts) == 0 {
		return fmt.Errorf("no target Azure accounts configured")
	}

	schema := accountKeys(cfg.TargetAccounts[0])

	for i, account := range cfg.TargetAccounts {
		if account.TenantID() == "" {
			return fmt.Errorf("target account at index %d is missing %s", i, KeyTenantID)
		}
		if account.SubscriptionID() == "" {
			return fmt.Errorf("target account at index %d is missing %s", i, KeySubscription)
		}
		// All accounts must share one key set: the keys define the
		// fixed label schema of the exposed metric.
		if keys := accountKeys(account); !equalKeys(schema, keys) {
			return fmt.Errorf("target account at index %d has keys %v, want %v (all accounts must share one key set)",
				i, keys, schema)
		}
	}

	if cfg.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval_seconds must be positive, got %d", cfg.PollingInterval)
	}

	if cfg.PollingInterval < MinPollingInterval {
		return fmt.Errorf("polling_interval_seconds must be at least %d seconds", MinPollingInterval)
	}

	if cfg.ExporterPort < MinPort || cfg.ExporterPort > MaxPort {
		return fmt.Errorf("exporter_port must be between %d and %d", MinPort, MaxPort)
	}

	if cfg.APITimeout <= 0 {
		return fmt.Errorf("api_timeout must be positive, got %d", cfg.APITimeout)
	}

	if cfg.APITimeout > 300 {
		return fmt.Errorf("api_timeout should not exceed 300 seconds (5 minutes), got %d", cfg.APITimeout)
	}

	if cfg.GroupBy.Enabled {
		if len(cfg.GroupBy.Groups) == 0 {
			return fmt.Errorf("group_by is enabled but no groups are configured")
		}
		for i, g := range cfg.GroupBy.Groups {
			if g.Type == "" || g.Name == "" || g.LabelName == "" {
				return fmt.Errorf("group at index %d must set type, name and label_name", i)
			}
		}
		if cfg.GroupBy.MergeMinorCost.Enabled {
			if cfg.GroupBy.MergeMinorCost.Threshold <= 0 {
				return fmt.Errorf("merge_minor_cost threshold must be positive, got %v", cfg.GroupBy.MergeMinorCost.Threshold)
			}
			if cfg.GroupBy.MergeMinorCost.TagValue == "" {
				return fmt.Errorf("merge_minor_cost tag_value must not be empty")
			}
		}
	}

	return nil
}

func accountKeys(account TargetAccount) []string {
	keys := make([]string, 0, len(account))
	for k := range account {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
