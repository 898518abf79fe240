// Package azure provides the Azure Cost Management client used by the
// exporter engine.
//
// Each tenant authenticates with its own client secret credential,
// resolved from the secret file; query clients are cached per
// (tenant, client_id). Queries cover a one-day window at daily
// granularity, optionally grouped by the configured dimensions, and the
// raw positional result rows are handed to the engine unparsed.
//
// Credential construction does not validate the secret: invalid
// credentials fail at query time and are handled like any other
// provider-side error.
package azure
