// Package preflight provides readiness checks for the directories and
// metadata sources shortbox depends on.
//
// These checks run in two contexts:
//   - The server runs RunAll at startup and logs every failure, so a missing
//     credential shows up before the first job rather than halfway through it.
//   - The CLI "config validate" command renders the same results as a table.
//
// Disabled sources are skipped.
package preflight
