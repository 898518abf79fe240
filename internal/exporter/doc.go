// Package exporter implements the cost aggregation and exposition
// engine.
//
// The engine polls the Azure Cost Management API for every configured
// target account and writes the aggregated results to a Prometheus
// gauge. One fetch cycle:
//
//   - walks the target accounts in declaration order, processing each
//     tenant exactly once
//   - queries every subscription that has credentials under the tenant,
//     over a one-day window ending today (UTC)
//   - keeps only rows dated at the window end, maps each onto a label
//     set built from the account's keys, ChargeType and the configured
//     group labels, and writes it to the sink
//   - when merge-minor-cost is enabled, rows below the threshold are
//     summed per subscription and exposed as a single point whose group
//     labels all carry the configured tag value
//
// A failed billing query skips only that subscription; a missing
// credential record stops the loop, since startup validation guarantees
// one exists for every configured pair.
//
// The cycle is strictly sequential, so the sink has a single writer.
// The Querier and Sink interfaces decouple the engine from the Azure
// SDK and the Prometheus registry for testing.
package exporter
