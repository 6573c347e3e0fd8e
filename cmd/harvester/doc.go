// Package main hosts the stock harvester service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and the
//     /trigger-scrape endpoint. A trigger mints a run ID, persists run
//     metadata via the RunStore, and enqueues the run; the caller gets
//     a 202 immediately while the scrape proceeds in the background.
//   - Runner & queue: runs flow through a bounded in-memory queue sized
//     by config.Runner.QueueDepth and are consumed by a fixed runner
//     pool sized by config.Runner.Concurrency. Context cancellation
//     stops runners cleanly on shutdown.
//   - Harvest pipeline: each run opens its own headless Chromedp session,
//     scrolls the target's virtualized table in small viewport steps to
//     trigger lazy rendering, extracts and deduplicates records by
//     display name, and terminates via the convergence detector (no-new
//     -record streak, stable-height probe, hard iteration cap).
//   - Delivery: the finalized dataset is appended to the CSV sink and
//     the full sink contents are emailed as an attachment over SMTP.
//     Persistence and notification failures are distinguishable so
//     captured data is never silently lost.
//   - Configuration & plumbing: Viper populates config from env/files
//     under the HARVESTER prefix; zap provides structured logging;
//     Prometheus metrics are exported via /metrics; godotenv loads SMTP
//     credentials in development.
//
// Quick checklist:
//   - Configure env vars: HARVESTER_SERVER_PORT, HARVESTER_TARGET_URL,
//     HARVESTER_SMTP_SENDER, HARVESTER_SMTP_PASSWORD,
//     HARVESTER_SMTP_RECIPIENT, HARVESTER_SINK_PATH.
//   - Run locally: go run ./cmd/harvester -config config.yaml (or rely
//     solely on env overrides).
//   - The process reacts to SIGTERM for graceful drain; in-flight runs
//     are canceled and recorded as such.
package main
