package config

import "time"

// Config holds runtime settings for the offsync CLI.
//
// Fields:
//   - ServerAddr: base URL of the backend HTTP API.
//   - DatabaseDSN: path of the local SQLite replica.
//   - SyncInterval: how often the scheduler runs a periodic sync cycle.
//   - CycleBudget: wall-clock budget of one sync cycle.
//   - MaxInFlight: concurrent remote calls within a cycle phase.
//   - ConflictStrategies: per-kind overrides of the built-in conflict policy
//     (kind name to one of remote_wins, local_wins, merge, defer).
type Config struct {
	ServerAddr         string
	DatabaseDSN        string
	SyncInterval       time.Duration
	CycleBudget        time.Duration
	MaxInFlight        int
	ConflictStrategies map[string]string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8080"
	c.DatabaseDSN = "offsync.db"
	c.SyncInterval = 10 * time.Minute
	c.CycleBudget = 90 * time.Second
	c.MaxInFlight = 6
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
