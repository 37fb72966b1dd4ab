// Package api exposes the job workflow over HTTP.
//
// Routes live under /api/v1 and map one-to-one onto workflow.Manager
// operations. Responses are the persisted job documents from jobstore, so
// a client that reconnects sees exactly the state the server holds.
//
// # Errors
//
// Failures are reported as ErrorResponse with the services error kind:
// not_found is 404, invalid_state is 409, validation and configuration are
// 422, and source failures (external, transient, timeout) are 502.
//
// # Watching
//
// GET /api/v1/jobs/:id/watch upgrades to a websocket and pushes a snapshot
// whenever the job's updated_at changes. Clients use it instead of polling
// while a background step (grouping, issue fetch, apply) runs.
//
// # Auth
//
// When paths.api_token is configured every route except /health requires
// "Authorization: Bearer <token>".
package api
