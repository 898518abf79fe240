// Package config provides configuration management for the Azure Cost Exporter.
//
// Two files drive the exporter:
//
//   - the exporter config (target accounts, grouping, polling interval)
//   - the secret file (per-tenant client credentials)
//
// Both are YAML and both support ${VAR} environment expansion in their
// values, so client secrets can be injected from the environment
// instead of being committed to disk.
//
// Target accounts are free-form string maps; the key set of the first
// account defines the label schema of the exposed metric and every
// account must share it. TenantId and Subscription are mandatory keys.
//
// Supported environment variable overrides:
//   - AZURE_COST_POLLING_INTERVAL: polling interval in seconds (minimum: 60)
//   - AZURE_COST_EXPORTER_PORT: HTTP server port (1-65535)
//   - AZURE_COST_LOG_LEVEL: log level (debug, info, warn, error)
//   - AZURE_COST_API_TIMEOUT: Azure API timeout in seconds
//
// Example exporter config:
//
//	target_azure_accounts:
//	  - TenantId: "tenant-a"
//	    Subscription: "sub-1"
//	    EnvironmentName: "production"
//
//	polling_interval_seconds: 3600
//	exporter_port: 8080
//
//	group_by:
//	  enabled: true
//	  groups:
//	    - type: TagKey
//	      name: team
//	      label_name: Team
//	  merge_minor_cost:
//	    enabled: true
//	    threshold: 5
//	    tag_value: other
//
// Example secret file, keyed by tenant:
//
//	tenant-a:
//	  - SubscriptionId: "sub-1"
//	    client_id: "app-registration-id"
//	    client_secret: "${TENANT_A_CLIENT_SECRET}"
//
// When the secret file is missing, WriteSecretTemplate generates a
// skeleton from the configured targets so operators know what to fill in.
package config
