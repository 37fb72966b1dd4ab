// Package matching scores candidate series against a query and links a
// selected series to its counterparts in the other configured sources.
//
// Score is a pure function: identical inputs always produce bit-identical
// outputs, which lets cached results and re-scored candidates agree. The
// cross-source Matcher fans out to secondary sources with bounded
// parallelism and an independent timeout per source; one slow or failing
// source only degrades its own status.
package matching
