package config

import (
	"testing"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})
}

// TestDefaults verifies the documented defaults.
func TestDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HostAddress != "0.0.0.0" || cfg.HostPort != 5000 {
		t.Errorf("bind = %s:%d", cfg.HostAddress, cfg.HostPort)
	}
	if cfg.DLTBaseURL != "http://dlt-booth:8085/api" {
		t.Errorf("DLTBaseURL = %q", cfg.DLTBaseURL)
	}
	if cfg.WorkerPoolSize != 10 {
		t.Errorf("WorkerPoolSize = %d", cfg.WorkerPoolSize)
	}
	if cfg.HealthCheckInterval != 30*time.Second || cfg.GracePeriod != 60*time.Second {
		t.Errorf("health timing = %v, %v", cfg.HealthCheckInterval, cfg.GracePeriod)
	}
	if cfg.VirtualNodes != 150 || cfg.RedundancyReplicas != 2 {
		t.Errorf("ring shape = %d vnodes, %d replicas", cfg.VirtualNodes, cfg.RedundancyReplicas)
	}
	if cfg.FetchInterval != 60*time.Second || cfg.RestartInterval != 5*time.Second {
		t.Errorf("intervals = %v, %v", cfg.FetchInterval, cfg.RestartInterval)
	}
	if cfg.BaselineInfra || cfg.SPARQLUpstreamURL != "" {
		t.Errorf("modes = %v, %q", cfg.BaselineInfra, cfg.SPARQLUpstreamURL)
	}
}

// TestOverrides verifies environment overrides are honoured.
func TestOverrides(t *testing.T) {
	t.Setenv("HOST_PORT", "8080")
	t.Setenv("WORKER_POOL_SIZE", "25")
	t.Setenv("NODE_GRACE_PERIOD", "90")
	t.Setenv("BASELINE_INFRA", "true")
	t.Setenv("SPARQL_UPSTREAM_URL", "http://fuseki:3030/ds/query")

	cfg := Load()
	if cfg.HostPort != 8080 || cfg.WorkerPoolSize != 25 {
		t.Errorf("overrides = %d, %d", cfg.HostPort, cfg.WorkerPoolSize)
	}
	if cfg.GracePeriod != 90*time.Second {
		t.Errorf("GracePeriod = %v", cfg.GracePeriod)
	}
	if !cfg.BaselineInfra || cfg.SPARQLUpstreamURL != "http://fuseki:3030/ds/query" {
		t.Errorf("modes = %v, %q", cfg.BaselineInfra, cfg.SPARQLUpstreamURL)
	}
}

// TestInvalidValuesKeepDefaults verifies bad input warns instead of aborting.
func TestInvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("WORKER_POOL_SIZE", "-3")
	t.Setenv("HOST_PORT", "not-a-number")
	t.Setenv("HASH_RING_VIRTUAL_NODES", "0")
	t.Setenv("NODE_TIMEOUT", "-1")
	t.Setenv("BASELINE_INFRA", "maybe")

	cfg := Load()
	if cfg.WorkerPoolSize != 10 {
		t.Errorf("WorkerPoolSize = %d, want default", cfg.WorkerPoolSize)
	}
	if cfg.HostPort != 5000 {
		t.Errorf("HostPort = %d, want default", cfg.HostPort)
	}
	if cfg.VirtualNodes != 150 {
		t.Errorf("VirtualNodes = %d, want default", cfg.VirtualNodes)
	}
	if cfg.ProbeTimeout != time.Second {
		t.Errorf("ProbeTimeout = %v, want clamped 1s", cfg.ProbeTimeout)
	}
	if cfg.BaselineInfra {
		t.Error("unparseable bool must keep default")
	}
}

// TestOversizedPoolAccepted verifies widths above 100 pass with a warning.
func TestOversizedPoolAccepted(t *testing.T) {
	t.Setenv("WORKER_POOL_SIZE", "250")
	if cfg := Load(); cfg.WorkerPoolSize != 250 {
		t.Errorf("WorkerPoolSize = %d, want 250", cfg.WorkerPoolSize)
	}
}
