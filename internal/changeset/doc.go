// Package changeset computes and edits the per-file set of proposed metadata
// changes a user reviews before anything is written.
//
// A FieldChange exists only when the normalized current and proposed values
// differ, so an empty-to-empty change is never surfaced. User overrides are
// a tagged Edit (unedited, cleared, or set to a value) so "clear this field"
// survives a JSON round trip distinct from "not edited". Rejecting a file
// hides all of its changes from apply without discarding the per-field
// decisions, which Restore brings back.
package changeset
