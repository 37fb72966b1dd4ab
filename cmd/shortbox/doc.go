// Command shortbox runs the comic metadata approval server and offers
// command-line helpers around it.
//
// "shortbox serve" starts the HTTP job API. The jobs subcommands talk to a
// running server through that API; scan, config, and sources work offline
// against the local configuration.
package main
