// Package logs reads the per-job log files the workflow writes.
//
// Job logs are JSON lines. Read decodes them into Entry values with bounded
// memory, supports a negative offset for "last N entries", and can wait for
// new entries so the API and CLI can follow a running job. Callers supply
// context deadlines so waiting stops cleanly.
package logs
