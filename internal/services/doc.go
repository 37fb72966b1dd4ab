// Package services defines shared utilities consumed by the workflow, the
// source adapters, and the job API.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, workflow steps, metadata sources, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (configuration vs transient vs invalid state) without string
//     matching.
//
// Use these helpers when wiring new workflow logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
