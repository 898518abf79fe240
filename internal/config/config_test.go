package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig_Success(t *testing.T) {
	configPath := writeConfigFile(t, `
target_azure_accounts:
  - TenantId: "tenant-a"
    Subscription: "sub-1"
    EnvironmentName: "production"
  - TenantId: "tenant-a"
    Subscription: "sub-2"
    EnvironmentName: "staging"

polling_interval_seconds: 3600
exporter_port: 8080
log_level: "info"

group_by:
  enabled: true
  groups:
    - type: TagKey
      name: team
      label_name: Team
  merge_minor_cost:
    enabled: true
    threshold: 5
    tag_value: other
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if len(cfg.TargetAccounts) != 2 {
		t.Errorf("Expected 2 target accounts, got %d", len(cfg.TargetAccounts))
	}
	if cfg.TargetAccounts[0].TenantID() != "tenant-a" {
		t.Errorf("TenantID = %v, want tenant-a", cfg.TargetAccounts[0].TenantID())
	}
	if cfg.TargetAccounts[1].SubscriptionID() != "sub-2" {
		t.Errorf("SubscriptionID = %v, want sub-2", cfg.TargetAccounts[1].SubscriptionID())
	}
	if cfg.PollingInterval != 3600 {
		t.Errorf("PollingInterval = %v, want 3600", cfg.PollingInterval)
	}
	if !cfg.GroupBy.Enabled || len(cfg.GroupBy.Groups) != 1 {
		t.Errorf("GroupBy = %+v, want enabled with 1 group", cfg.GroupBy)
	}
	if cfg.GroupBy.Groups[0].LabelName != "Team" {
		t.Errorf("Group label name = %v, want Team", cfg.GroupBy.Groups[0].LabelName)
	}
	if cfg.GroupBy.MergeMinorCost.Threshold != 5 {
		t.Errorf("Merge threshold = %v, want 5", cfg.GroupBy.MergeMinorCost.Threshold)
	}
}

func TestLoad_ApplyDefaults_Success(t *testing.T) {
	configPath := writeConfigFile(t, `
target_azure_accounts:
  - TenantId: "tenant-a"
    Subscription: "sub-1"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"PollingInterval", cfg.PollingInterval, DefaultPollingInterval},
		{"ExporterPort", cfg.ExporterPort, DefaultExporterPort},
		{"LogLevel", cfg.LogLevel, DefaultLogLevel},
		{"APITimeout", cfg.APITimeout, DefaultAPITimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides_Success(t *testing.T) {
	configPath := writeConfigFile(t, `
target_azure_accounts:
  - TenantId: "tenant-a"
    Subscription: "sub-1"
polling_interval_seconds: 3600
exporter_port: 8080
`)

	t.Setenv("AZURE_COST_POLLING_INTERVAL", "7200")
	t.Setenv("AZURE_COST_EXPORTER_PORT", "9090")
	t.Setenv("AZURE_COST_LOG_LEVEL", "debug")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.PollingInterval != 7200 {
		t.Errorf("PollingInterval = %v, want 7200 (env override)", cfg.PollingInterval)
	}
	if cfg.ExporterPort != 9090 {
		t.Errorf("ExporterPort = %v, want 9090 (env override)", cfg.ExporterPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug (env override)", cfg.LogLevel)
	}
}

func TestLoad_EnvExpansionInValues(t *testing.T) {
	t.Setenv("TEST_TENANT_ID", "tenant-from-env")

	configPath := writeConfigFile(t, `
target_azure_accounts:
  - TenantId: "${TEST_TENANT_ID}"
    Subscription: "sub-1"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.TargetAccounts[0].TenantID() != "tenant-from-env" {
		t.Errorf("TenantID = %v, want tenant-from-env", cfg.TargetAccounts[0].TenantID())
	}
}

func TestLoad_InvalidEnvOverride_Error(t *testing.T) {
	configPath := writeConfigFile(t, `
target_azure_accounts:
  - TenantId: "tenant-a"
    Subscription: "sub-1"
`)

	t.Setenv("AZURE_COST_POLLING_INTERVAL", "not-a-number")

	if _, err := Load(configPath); err == nil {
		t.Error("Load() error = nil, want error for non-integer env override")
	}
}

func TestValidate_NoTargets_Error(t *testing.T) {
	cfg := &Config{
		PollingInterval: 3600,
		ExporterPort:    8080,
		APITimeout:      30,
	}

	if err := validate(cfg); err == nil {
		t.Error("validate() error = nil, want error for empty target list")
	}
}

func TestValidate_MissingMandatoryKeys_Error(t *testing.T) {
	tests := []struct {
		name    string
		account TargetAccount
	}{
		{"missing TenantId", TargetAccount{"Subscription": "sub-1"}},
		{"missing Subscription", TargetAccount{"TenantId": "tenant-a"}},
		{"empty TenantId", TargetAccount{"TenantId": "", "Subscription": "sub-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				TargetAccounts:  []TargetAccount{tt.account},
				PollingInterval: 3600,
				ExporterPort:    8080,
				APITimeout:      30,
			}
			if err := validate(cfg); err == nil {
				t.Error("validate() error = nil, want error")
			}
		})
	}
}

func TestValidate_MismatchedKeySets_Error(t *testing.T) {
	cfg := &Config{
		TargetAccounts: []TargetAccount{
			{"TenantId": "tenant-a", "Subscription": "sub-1", "EnvironmentName": "prod"},
			{"TenantId": "tenant-b", "Subscription": "sub-2"},
		},
		PollingInterval: 3600,
		ExporterPort:    8080,
		APITimeout:      30,
	}

	if err := validate(cfg); err == nil {
		t.Error("validate() error = nil, want error for mismatched key sets")
	}
}

func TestValidate_PollingIntervalTooLow_Error(t *testing.T) {
	cfg := &Config{
		TargetAccounts: []TargetAccount{
			{"TenantId": "tenant-a", "Subscription": "sub-1"},
		},
		PollingInterval: 30, // Less than 60
		ExporterPort:    8080,
		APITimeout:      30,
	}

	if err := validate(cfg); err == nil {
		t.Error("validate() error = nil, want error for polling interval < 60")
	}
}

func TestValidate_InvalidPort_Error(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port too high", 70000},
		{"negative port", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				TargetAccounts: []TargetAccount{
					{"TenantId": "tenant-a", "Subscription": "sub-1"},
				},
				PollingInterval: 3600,
				ExporterPort:    tt.port,
				APITimeout:      30,
			}
			if err := validate(cfg); err == nil {
				t.Errorf("validate() error = nil, want error for port %d", tt.port)
			}
		})
	}
}

func TestValidate_GroupByWithoutGroups_Error(t *testing.T) {
	cfg := &Config{
		TargetAccounts: []TargetAccount{
			{"TenantId": "tenant-a", "Subscription": "sub-1"},
		},
		PollingInterval: 3600,
		ExporterPort:    8080,
		APITimeout:      30,
		GroupBy:         GroupByConfig{Enabled: true},
	}

	if err := validate(cfg); err == nil {
		t.Error("validate() error = nil, want error for enabled group_by without groups")
	}
}

func TestValidate_MergeMinorCost_Error(t *testing.T) {
	base := func() *Config {
		return &Config{
			TargetAccounts: []TargetAccount{
				{"TenantId": "tenant-a", "Subscription": "sub-1"},
			},
			PollingInterval: 3600,
			ExporterPort:    8080,
			APITimeout:      30,
			GroupBy: GroupByConfig{
				Enabled: true,
				Groups:  []Group{{Type: "TagKey", Name: "team", LabelName: "Team"}},
				MergeMinorCost: MergeMinorCost{
					Enabled:   true,
					Threshold: 5,
					TagValue:  "other",
				},
			},
		}
	}

	valid := base()
	if err := validate(valid); err != nil {
		t.Fatalf("validate() error = %v, want nil for valid merge config", err)
	}

	noThreshold := base()
	noThreshold.GroupBy.MergeMinorCost.Threshold = 0
	if err := validate(noThreshold); err == nil {
		t.Error("validate() error = nil, want error for zero threshold")
	}

	noTag := base()
	noTag.GroupBy.MergeMinorCost.TagValue = ""
	if err := validate(noTag); err == nil {
		t.Error("validate() error = nil, want error for empty tag_value")
	}
}

func TestLoad_MissingFile_Error(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}

func TestLoad_MalformedYAML_Error(t *testing.T) {
	configPath := writeConfigFile(t, `
target_azure_accounts:
  - TenantId: "tenant-a"
- this: is
  : malformed
    yaml: [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Load() error = nil, want error for malformed YAML")
	}
}
