// Package config loads runtime configuration for the offsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend HTTP API
//	-d string   path of the local SQLite database file
//	-i int      periodic sync interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "10m" or integer nanoseconds:
//
//	{
//	  "server_addr": "http://127.0.0.1:8080",
//	  "database_dsn": "offsync.db",
//	  "sync_interval": "10m",
//	  "cycle_budget": "90s",
//	  "max_in_flight": 6
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
