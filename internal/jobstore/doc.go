// Package jobstore persists matching jobs in SQLite so a job survives client
// disconnects and server restarts.
//
// Each job is stored as one JSON document with its step, counts, and
// timestamps mirrored into columns for listing. Every change goes through
// Mutate, which serializes writers per job id and performs a whole-record
// read-modify-write inside a transaction. Reads never write.
//
// The store also remembers which series each folder was matched to by
// successful applies, so later jobs over the same folder can be pre-approved.
//
// Schema changes bump schemaVersion; users delete the database to adopt the
// new schema.
package jobstore
