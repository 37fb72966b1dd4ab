// Package config loads, normalizes, and validates shortbox configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a neighbouring .env file, and honours
// environment fallbacks such as COMICVINE_API_KEY. The Config type centralizes
// every knob the job server and CLI need, allowing data directories, metadata
// source credentials, and matching thresholds to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical source names, and clear validation errors.
package config
