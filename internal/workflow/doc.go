// Package workflow drives matching jobs through their steps.
//
// A job moves options -> initializing -> series_approval <-> fetching_issues
// -> file_review -> applying -> complete. Steps that talk to metadata
// sources or write files run in the background, one at a time per job;
// everything else is a synchronous read-modify-write through the job store.
// Operations that do not fit the job's current step fail with
// services.ErrInvalidState and leave the job untouched.
//
// Network results are gathered outside the store lock and written back only
// if the job is still where the background run left it, so a cancel or an
// abandon racing a slow source never corrupts state.
package workflow
