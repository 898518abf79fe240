package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"

	"github.com/opscost/azure-cost-exporter/internal/config"
	"github.com/opscost/azure-cost-exporter/internal/exporter"
	"github.com/opscost/azure-cost-exporter/internal/logger"
)

// Client issues Cost Management queries using per-tenant client secret
// credentials. Query clients are cached per (tenant, client_id);
// credential construction does not validate the secret, so bad
// credentials surface as query errors.
//
// The polling loop is the Client's only caller, so the cache needs no
// locking.
type Client struct {
	cfg     *config.Config
	logger  *logger.Logger
	clients map[string]*armcostmanagement.QueryClient
}

// Verify that Client implements exporter.Querier
var _ exporter.Querier = (*Client)(nil)

// NewClient creates a new Azure Cost Management client
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		cfg:     cfg,
		logger:  log,
		clients: make(map[string]*armcostmanagement.QueryClient),
	}
}

// Query runs the daily cost query for one subscription and returns the
// raw positional rows: [cost, usageDate, groupValue...].
func (c *Client) Query(ctx context.Context, tenantID string, cred config.Credential, subscriptionID string, window exporter.Window) ([][]any, error) {
	client, err := c.queryClient(tenantID, cred)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.APITimeout)*time.Second)
	defer cancel()

	scope := fmt.Sprintf("/subscriptions/%s", subscriptionID)
	queryDef := BuildQuery(window, c.cfg.GroupBy)

	c.logger.Debug("Querying Azure Cost Management API",
		"subscription_id", subscriptionID,
		"start_date", window.Start.Format("2006-01-02"),
		"end_date", window.End.Format("2006-01-02"))

	resp, err := client.Usage(ctx, scope, queryDef, nil)
	if err != nil {
		return nil, fmt.Errorf("cost query failed for date range %s to %s: %w",
			window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"), err)
	}

	if resp.Properties == nil || resp.Properties.Rows == nil {
		return nil, nil
	}
	return resp.Properties.Rows, nil
}

// queryClient returns the cached query client for the tenant's
// credentials, creating it on first use.
func (c *Client) queryClient(tenantID string, cred config.Credential) (*armcostmanagement.QueryClient, error) {
	key := tenantID + "/" + cred.ClientID
	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	secret, err := azidentity.NewClientSecretCredential(tenantID, cred.ClientID, cred.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential for tenant %s: %w", tenantID, err)
	}

	client, err := armcostmanagement.NewQueryClient(secret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cost management client for tenant %s: %w", tenantID, err)
	}

	c.clients[key] = client
	return client, nil
}
