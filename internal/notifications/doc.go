// Package notifications delivers job milestone alerts.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Events cover the
// points where a person needs to act (a job is ready for file review) or wants
// to know the outcome (apply finished, a job failed).
package notifications
