// Package api hosts the HTTP server, middleware, and handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /trigger-scrape to queue a harvest run.
//   - GET /runs/{run_id} for run status and counters.
package api
