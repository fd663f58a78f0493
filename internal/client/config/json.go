package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/vmartynov/offsync/internal/flagx"
	"github.com/vmartynov/offsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "10m"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerAddr         string            `json:"server_addr"`
	DatabaseDSN        string            `json:"database_dsn"`
	SyncInterval       timex.Duration    `json:"sync_interval"`
	CycleBudget        timex.Duration    `json:"cycle_budget"`
	MaxInFlight        int               `json:"max_in_flight"`
	ConflictStrategies map[string]string `json:"conflict_strategies"`
}

// parseJson overlays Config with values loaded from a JSON file selected via
// the -c or -config flags. An absent flag means no JSON is loaded; read or
// unmarshal errors panic (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerAddr != "" {
		cfg.ServerAddr = jc.ServerAddr
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.CycleBudget.Duration != 0 {
		cfg.CycleBudget = time.Duration(jc.CycleBudget.Duration)
	}
	if jc.MaxInFlight != 0 {
		cfg.MaxInFlight = jc.MaxInFlight
	}
	if len(jc.ConflictStrategies) > 0 {
		cfg.ConflictStrategies = jc.ConflictStrategies
	}
}
