// Package config provides defaults and configuration loading for geoquery.
package config

// Backend defaults.
const (
	DefaultDriver = "duckdb"
	DefaultDSN    = ""
)

// Table view defaults.
const (
	// DefaultMinChunk is the partition size lower bound for parallel streams.
	DefaultMinChunk int64 = 1000
	// DefaultWorkers of zero means one worker per available CPU.
	DefaultWorkers = 0
	// DefaultViewTTL of zero leaves views open until their owner closes them.
	DefaultViewTTL = "0s"
)

// Server defaults.
const (
	DefaultPort     = "8080"
	DefaultRowLimit = 1000
	MaxRowLimit     = 100000
)

// DefaultLogLevel is the zerolog level name used when none is configured.
const DefaultLogLevel = "info"

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GEOQUERY"

// Configuration keys.
const (
	KeyDriver   = "driver"
	KeyDSN      = "dsn"
	KeyPort     = "port"
	KeyMinChunk = "min_chunk"
	KeyWorkers  = "workers"
	KeyLogLevel = "log_level"
	KeyRowLimit = "row_limit"
	KeyViewTTL  = "view_ttl"
)
