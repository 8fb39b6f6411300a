package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
)

// Config holds all coordinator settings. Every field comes from an
// environment variable with a default; invalid values warn and keep the
// default rather than aborting startup.
type Config struct {
	// HTTP bind
	HostAddress string
	HostPort    int

	// Ledger
	DLTBaseURL string

	// KV backend
	RedisHost string
	RedisPort int
	RedisDB   int

	// Worker pool
	WorkerPoolSize int

	// Health supervisor
	HealthCheckInterval time.Duration
	GracePeriod         time.Duration
	ProbeTimeout        time.Duration

	// Hash ring and placement
	VirtualNodes       int
	RedundancyReplicas int
	FetchInterval      time.Duration

	// Node discovery
	BaselineInfra     bool
	BaselineNodesFile string

	// Federation: when set, queries are rewritten into SERVICE blocks and
	// forwarded to this endpoint instead of fanned out.
	SPARQLUpstreamURL string

	// Loop supervision
	RestartInterval time.Duration

	// Logging
	LogLevel log.Level
	LogJSON  bool
}

// Load reads the environment and returns the effective configuration.
func Load() *Config {
	cfg := &Config{
		HostAddress:         getString("HOST_ADDRESS", "0.0.0.0"),
		HostPort:            getInt("HOST_PORT", 5000),
		DLTBaseURL:          getString("DLT_BASE_URL", "http://dlt-booth:8085/api"),
		RedisHost:           getString("REDIS_HOST", "localhost"),
		RedisPort:           getInt("REDIS_PORT", 6379),
		RedisDB:             getInt("REDIS_DB", 0),
		WorkerPoolSize:      getInt("WORKER_POOL_SIZE", 10),
		HealthCheckInterval: getSeconds("NODE_HEALTH_CHECK_INTERVAL", 30),
		GracePeriod:         getSeconds("NODE_GRACE_PERIOD", 60),
		ProbeTimeout:        getSeconds("NODE_TIMEOUT", 10),
		VirtualNodes:        getInt("HASH_RING_VIRTUAL_NODES", 150),
		RedundancyReplicas:  getInt("REDUNDANCY_REPLICAS", 2),
		FetchInterval:       getSeconds("OFFERING_FETCH_INTERVAL", 60),
		BaselineInfra:       getBool("BASELINE_INFRA", false),
		BaselineNodesFile:   getString("BASELINE_NODES_FILE", "nodes.json"),
		SPARQLUpstreamURL:   getString("SPARQL_UPSTREAM_URL", ""),
		RestartInterval:     getSeconds("SUBPROCESS_HEALTH_CHECK_INTERVAL", 5),
		LogLevel:            log.Level(getString("LOG_LEVEL", "info")),
		LogJSON:             getBool("LOG_JSON", false),
	}
	cfg.validate()
	return cfg
}

func (c *Config) validate() {
	if c.WorkerPoolSize <= 0 {
		log.Logger.Warn().Int("size", c.WorkerPoolSize).Msg("invalid WORKER_POOL_SIZE, using 10")
		c.WorkerPoolSize = 10
	}
	if c.WorkerPoolSize > 100 {
		log.Logger.Warn().Int("size", c.WorkerPoolSize).Msg("WORKER_POOL_SIZE exceeds 100 workers")
	}
	if c.VirtualNodes <= 0 {
		log.Logger.Warn().Int("vnodes", c.VirtualNodes).Msg("invalid HASH_RING_VIRTUAL_NODES, using 150")
		c.VirtualNodes = 150
	}
	if c.RedundancyReplicas <= 0 {
		log.Logger.Warn().Int("replicas", c.RedundancyReplicas).Msg("invalid REDUNDANCY_REPLICAS, using 2")
		c.RedundancyReplicas = 2
	}
	for name, d := range map[string]*time.Duration{
		"NODE_HEALTH_CHECK_INTERVAL":       &c.HealthCheckInterval,
		"NODE_GRACE_PERIOD":                &c.GracePeriod,
		"NODE_TIMEOUT":                     &c.ProbeTimeout,
		"OFFERING_FETCH_INTERVAL":          &c.FetchInterval,
		"SUBPROCESS_HEALTH_CHECK_INTERVAL": &c.RestartInterval,
	} {
		if *d <= 0 {
			log.Logger.Warn().Str("var", name).Msg("non-positive interval, using 1s")
			*d = time.Second
		}
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Logger.Warn().Str("var", key).Str("value", v).Msg("not an integer, using default")
		return def
	}
	return n
}

func getSeconds(key string, def int) time.Duration {
	return time.Duration(getInt(key, def)) * time.Second
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Logger.Warn().Str("var", key).Str("value", v).Msg("not a boolean, using default")
		return def
	}
	return b
}
