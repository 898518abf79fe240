package exporter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opscost/azure-cost-exporter/internal/clock"
	"github.com/opscost/azure-cost-exporter/internal/config"
	"github.com/opscost/azure-cost-exporter/internal/logger"
)

const (
	// LabelChargeType is the constant label added to every exposed point
	LabelChargeType = "ChargeType"

	// ChargeTypeActualCost is the only charge type currently exported
	ChargeTypeActualCost = "ActualCost"

	// DefaultEnvironmentName is used when a subscription appears in no
	// target account, or its account does not set EnvironmentName
	DefaultEnvironmentName = "DefaultEnv"

	dateLayout = "20060102"
)

// Window is the one-day query window for a fetch cycle, truncated to
// UTC midnight boundaries.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewDailyWindow returns the window ending today (UTC midnight) and
// starting one day prior.
func NewDailyWindow(now time.Time) Window {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: end.AddDate(0, 0, -1), End: end}
}

// EndDate returns the window end as YYYYMMDD digits, the format cost
// rows carry their usage date in.
func (w Window) EndDate() string {
	return w.End.Format(dateLayout)
}

// Querier issues a cost query for one subscription. Rows come back in
// positional form: row[0] is the cost, row[1] the usage date, and
// row[2+i] the value of the i-th configured group.
type Querier interface {
	Query(ctx context.Context, tenantID string, cred config.Credential, subscriptionID string, window Window) ([][]any, error)
}

// Engine drives the fetch cycle: it walks the configured target
// accounts, deduplicates tenants, queries every subscription under each
// tenant and writes the mapped results to the sink.
//
// One cycle is strictly sequential; the sink sees a single writer. The
// mutex only guards the state accessors read by the HTTP server.
type Engine struct {
	cfg     *config.Config
	secrets config.Secrets
	querier Querier
	sink    Sink
	metrics *OpsMetrics
	logger  *logger.Logger
	clock   clock.Clock

	// Subscription ID -> EnvironmentName, first match in target
	// declaration order. Targets are immutable for the process
	// lifetime, so this is computed once.
	environments map[string]string

	mu         sync.RWMutex
	ready      bool
	lastCycle  time.Time
	lastFailed int
	cycles     uint64
}

// New creates an Engine for the given configuration and collaborators.
func New(cfg *config.Config, secrets config.Secrets, querier Querier, sink Sink, metrics *OpsMetrics, log *logger.Logger) *Engine {
	return &Engine{
		cfg:          cfg,
		secrets:      secrets,
		querier:      querier,
		sink:         sink,
		metrics:      metrics,
		logger:       log,
		clock:        clock.RealClock{},
		environments: environmentIndex(cfg.TargetAccounts),
	}
}

// Run executes fetch cycles until ctx is cancelled, sleeping interval
// between cycles. Cycles never overlap. A credential resolution failure
// stops the loop; everything else is retried implicitly by the next
// cycle.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	for {
		if err := e.Fetch(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			e.logger.Info("Stopping polling loop")
			return nil
		case <-time.After(interval):
		}
	}
}

// Fetch runs one full cost collection cycle over all target accounts.
func (e *Engine) Fetch(ctx context.Context) error {
	start := time.Now()
	window := NewDailyWindow(e.clock.Now())

	processed := make(map[string]struct{}, len(e.cfg.TargetAccounts))
	failed := 0

	for _, account := range e.cfg.TargetAccounts {
		tenantID := account.TenantID()
		if _, done := processed[tenantID]; done {
			continue
		}

		e.logger.Info("Querying cost data for Azure tenant", "tenant_id", tenantID)

		records := e.secrets[tenantID]
		if len(records) == 0 {
			// Startup validation promises credentials for every tenant;
			// reaching this means the contract was violated. Fail loudly.
			return fmt.Errorf("%w for tenant %s", config.ErrCredentialNotFound, tenantID)
		}

		// All subscriptions under a tenant are fetched together, keyed
		// off the first target account seen for it.
		for _, record := range records {
			subscriptionID := record.SubscriptionID

			err := e.fetchSubscription(ctx, account, tenantID, subscriptionID, window)
			if err == nil {
				continue
			}
			if errors.Is(err, config.ErrCredentialNotFound) {
				return err
			}
			e.logger.Error("Cost query failed",
				"tenant_id", tenantID,
				"subscription_id", subscriptionID,
				"error", err)
			e.metrics.QueryFailures.WithLabelValues(subscriptionID).Inc()
			failed++
		}

		processed[tenantID] = struct{}{}
	}

	e.finishCycle(failed, time.Since(start))
	return nil
}

// fetchSubscription queries one subscription and exposes its rows.
// Billing API errors are returned for the caller to log and skip;
// credential errors abort the cycle.
func (e *Engine) fetchSubscription(ctx context.Context, account config.TargetAccount, tenantID, subscriptionID string, window Window) error {
	cred, err := e.secrets.Resolve(tenantID, subscriptionID)
	if err != nil {
		return err
	}

	current := account.Clone()
	current[config.KeySubscription] = subscriptionID
	if _, labeled := account[config.KeyEnvironmentName]; labeled {
		current[config.KeyEnvironmentName] = e.environmentFor(subscriptionID)
	}

	e.logger.Debug("Processing subscription",
		"subscription_id", subscriptionID,
		"start_date", window.Start.Format("2006-01-02"),
		"end_date", window.End.Format("2006-01-02"))

	rows, err := e.querier.Query(ctx, tenantID, cred, subscriptionID, window)
	if err != nil {
		return err
	}

	e.expose(current, rows, window)
	return nil
}

// expose maps the rows of one subscription fetch onto metric points.
// The minor-cost bucket lives here so merged values never cross
// subscription boundaries.
func (e *Engine) expose(account config.TargetAccount, rows [][]any, window Window) {
	endDate := window.EndDate()
	var minorTotal float64

	for _, row := range rows {
		// The API may return several dates per call; only the window
		// end date is consumed.
		if len(row) < 2 || usageDate(row[1]) != endDate {
			continue
		}
		e.exposeRow(account, row, &minorTotal)
	}

	if minorTotal > 0 {
		labels := e.baseLabels(account)
		for _, g := range e.cfg.GroupBy.Groups {
			labels[g.LabelName] = e.cfg.GroupBy.MergeMinorCost.TagValue
		}
		e.sink.Set(labels, minorTotal)
	}
}

// exposeRow handles a single cost row: emit it with its group labels,
// or fold it into the minor bucket when below the merge threshold.
func (e *Engine) exposeRow(account config.TargetAccount, row []any, minorTotal *float64) {
	cost := costValue(row[0])
	labels := e.baseLabels(account)

	if !e.cfg.GroupBy.Enabled {
		e.sink.Set(labels, cost)
		return
	}

	if len(row) < 2+len(e.cfg.GroupBy.Groups) {
		e.logger.Warn("Dropping cost row with missing group columns",
			"columns", len(row),
			"groups", len(e.cfg.GroupBy.Groups))
		return
	}

	merge := e.cfg.GroupBy.MergeMinorCost
	if merge.Enabled && cost < merge.Threshold {
		*minorTotal += cost
		return
	}

	for i, g := range e.cfg.GroupBy.Groups {
		labels[g.LabelName] = groupValue(row[2+i])
	}
	e.sink.Set(labels, cost)
}

// baseLabels builds the label set shared by every point of an account:
// the account's own key/value pairs plus the constant charge type.
func (e *Engine) baseLabels(account config.TargetAccount) map[string]string {
	labels := make(map[string]string, len(account)+1+len(e.cfg.GroupBy.Groups))
	for k, v := range account {
		labels[k] = v
	}
	labels[LabelChargeType] = ChargeTypeActualCost
	return labels
}

func (e *Engine) environmentFor(subscriptionID string) string {
	if env, ok := e.environments[subscriptionID]; ok {
		return env
	}
	return DefaultEnvironmentName
}

func (e *Engine) finishCycle(failed int, duration time.Duration) {
	e.metrics.CycleDuration.Set(duration.Seconds())
	e.metrics.CyclesTotal.Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = true
	e.lastCycle = e.clock.Now()
	e.lastFailed = failed
	e.cycles++

	e.logger.Info("Fetch cycle completed",
		"duration_seconds", duration.Seconds(),
		"failed_subscriptions", failed)
}

// IsReady reports whether at least one fetch cycle has completed.
func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// LastCycleTime returns when the last fetch cycle completed.
func (e *Engine) LastCycleTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastCycle
}

// LastCycleFailures returns how many subscription fetches failed in the
// last cycle.
func (e *Engine) LastCycleFailures() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastFailed
}

// CycleCount returns the number of completed fetch cycles.
func (e *Engine) CycleCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cycles
}

// environmentIndex precomputes subscription -> EnvironmentName; the
// first target declaring a subscription wins.
func environmentIndex(targets []config.TargetAccount) map[string]string {
	index := make(map[string]string, len(targets))
	for _, target := range targets {
		subscriptionID := target.SubscriptionID()
		if _, seen := index[subscriptionID]; seen {
			continue
		}
		if env := target[config.KeyEnvironmentName]; env != "" {
			index[subscriptionID] = env
		} else {
			index[subscriptionID] = DefaultEnvironmentName
		}
	}
	return index
}

// costValue extracts the cost from row[0] as a float64
func costValue(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0.0
	}
}

// usageDate normalizes a row's usage date column to YYYYMMDD digits
func usageDate(value any) string {
	var raw string
	switch v := value.(type) {
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	case string:
		raw = v
	default:
		raw = fmt.Sprintf("%v", v)
	}

	var digits strings.Builder
	for _, ch := range raw {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	return digits.String()
}

// groupValue stringifies a group column value
func groupValue(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}
