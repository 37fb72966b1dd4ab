// Package sources defines the uniform contract shortbox uses to talk to
// external comic and manga metadata providers.
//
// Each provider lives in its own subpackage (comicvine, metron, gcd,
// mangadex) and implements Adapter. Callers never use a provider directly:
// providers.Build wraps every enabled adapter in Cached, which adds a search
// cache, a per-source rate limit, and retries for transient failures, then
// registers it in a Registry that carries the configured priority order.
//
// Adapters classify failures with the internal/services markers so callers
// can tell a credential problem (ErrConfiguration) from a flaky network
// (ErrTransient, ErrTimeout) or a malformed payload (ErrExternal). "No
// results" is never an error: Search returns an empty slice and FetchByID
// returns nil.
package sources
