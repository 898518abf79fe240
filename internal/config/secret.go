package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrCredentialNotFound reports a (tenant, subscription) pair that has
// no credential record. Startup validation promises this cannot happen,
// so hitting it later is a configuration contract violation and is
// treated as fatal.
var ErrCredentialNotFound = errors.New("credentials not found")

// Placeholder values written into generated secret templates
const (
	PlaceholderClientID     = "PUT_CLIENT_ID_HERE"
	PlaceholderClientSecret = "PUT_CLIENT_SECRET_HERE"
)

// Credential holds the client credentials for one subscription.
type Credential struct {
	SubscriptionID string `yaml:"SubscriptionId"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
}

// Secrets maps a tenant ID to the ordered credential records for its
// subscriptions.
type Secrets map[string][]Credential

// Resolve returns the credential record for the given tenant and
// subscription. The tenant's records are searched in declaration order;
// a missing tenant or subscription yields ErrCredentialNotFound.
func (s Secrets) Resolve(tenantID, subscriptionID string) (Credential, error) {
	for _, cred := range s[tenantID] {
		if cred.SubscriptionID == subscriptionID {
			return cred, nil
		}
	}
	return Credential{}, fmt.Errorf("%w for tenant %s subscription %s", ErrCredentialNotFound, tenantID, subscriptionID)
}

// LoadSecrets loads per-tenant credentials from a YAML file.
func LoadSecrets(path string) (Secrets, error) {
	// #nosec G304 -- Secret file path is provided by administrator via CLI flag, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}

	var secrets Secrets
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secret file: %w", err)
	}

	return secrets, nil
}

// ValidateSecrets checks that every tenant appearing in the target
// accounts has at least one complete credential record, and that its
// own target subscription is covered. Runs at startup so that a missing
// pair is caught before the first fetch cycle.
func ValidateSecrets(cfg *Config, secrets Secrets) error {
	for _, account := range cfg.TargetAccounts {
		tenantID := account.TenantID()

		creds, ok := secrets[tenantID]
		if !ok || len(creds) == 0 {
			return fmt.Errorf("no credentials configured for tenant %s", tenantID)
		}

		for _, cred := range creds {
			if cred.SubscriptionID == "" || cred.ClientID == "" || cred.ClientSecret == "" {
				return fmt.Errorf("incomplete credential record under tenant %s (SubscriptionId, client_id and client_secret are required)", tenantID)
			}
		}

		if _, err := secrets.Resolve(tenantID, account.SubscriptionID()); err != nil {
			return fmt.Errorf("target subscription %s: %w", account.SubscriptionID(), err)
		}
	}

	return nil
}

// WriteSecretTemplate writes a skeleton secret file derived from the
// configured target accounts, one placeholder record per subscription,
// grouped by tenant.
func WriteSecretTemplate(path string, cfg *Config) error {
	template := make(Secrets)
	for _, account := range cfg.TargetAccounts {
		tenantID := account.TenantID()
		template[tenantID] = append(template[tenantID], Credential{
			SubscriptionID: account.SubscriptionID(),
			ClientID:       PlaceholderClientID,
			ClientSecret:   PlaceholderClientSecret,
		})
	}

	data, err := yaml.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal secret template: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write secret template: %w", err)
	}

	return nil
}
