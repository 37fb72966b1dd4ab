// Package daemon coordinates the long-running shortbox server.
//
// It wires configuration, job storage, the workflow manager, and the HTTP
// API into a single lifecycle with flock-based locking to prevent two
// servers sharing one database. Start recovers jobs a previous process left
// mid-step before the API accepts requests.
//
// Keep orchestration logic here: workflow steps live in the workflow
// package while the daemon focuses on startup, shutdown, and status.
package daemon
