package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dataspace/catalogue-coordinator/pkg/api"
	"github.com/dataspace/catalogue-coordinator/pkg/config"
	"github.com/dataspace/catalogue-coordinator/pkg/dlt"
	"github.com/dataspace/catalogue-coordinator/pkg/events"
	"github.com/dataspace/catalogue-coordinator/pkg/federation"
	"github.com/dataspace/catalogue-coordinator/pkg/health"
	"github.com/dataspace/catalogue-coordinator/pkg/kv"
	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/metrics"
	"github.com/dataspace/catalogue-coordinator/pkg/placement"
	"github.com/dataspace/catalogue-coordinator/pkg/registry"
	"github.com/dataspace/catalogue-coordinator/pkg/ring"
	"github.com/dataspace/catalogue-coordinator/pkg/supervise"
	"github.com/dataspace/catalogue-coordinator/pkg/worker"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator",
	Long: `Start every coordinator worker: the HTTP API, the health
supervisor and the offering poller, sharing one hash ring, worker pool
and KV store. Configuration comes from the environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg := config.Load()
	log.Init(log.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	logger := log.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := kv.Connect(ctx, kv.Options{
		Host: cfg.RedisHost,
		Port: cfg.RedisPort,
		DB:   cfg.RedisDB,
	})
	defer store.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	ledger := dlt.NewClient(cfg.DLTBaseURL)

	var reg *registry.Registry
	if cfg.BaselineInfra {
		logger.Info().Str("file", cfg.BaselineNodesFile).Msg("baseline infrastructure mode")
		reg = registry.NewBaseline(cfg.BaselineNodesFile, store)
	} else {
		reg = registry.New(ledger, store)
	}

	hashRing := ring.New(cfg.VirtualNodes, store)
	if nodes, err := reg.LoadAll(ctx); err == nil {
		// Warm boot: regenerate ring slots from the persisted node set.
		for _, node := range nodes {
			hashRing.Add(node)
		}
		logger.Info().Int("nodes", len(nodes)).Msg("hash ring rebuilt from stored nodes")
	}

	driver := placement.NewDriver(ledger, hashRing, store, broker, cfg.RedundancyReplicas)

	pool := worker.NewPool(cfg.WorkerPoolSize)
	pool.Start()

	supervisor := health.NewSupervisor(
		reg, hashRing, driver, broker,
		health.NewHTTPChecker(cfg.ProbeTimeout),
		cfg.HealthCheckInterval, cfg.GracePeriod,
	)

	collector := metrics.NewCollector(supervisor, hashRing, broker)
	collector.Start()
	defer collector.Stop()

	poller := placement.NewPoller(ledger, driver, pool, cfg.FetchInterval)

	engine := federation.NewEngine(hashRing)
	var forwarder api.QueryForwarder
	if cfg.SPARQLUpstreamURL != "" {
		logger.Info().Str("upstream", cfg.SPARQLUpstreamURL).Msg("rewrite-and-forward federation enabled")
		forwarder = federation.NewForwarder(cfg.SPARQLUpstreamURL, hashRing)
	}

	addr := fmt.Sprintf("%s:%d", cfg.HostAddress, cfg.HostPort)
	server := api.NewServer(addr, driver, poller, supervisor, engine, forwarder)

	loops := supervise.New(cfg.RestartInterval)
	loops.Go(ctx, "health-supervisor", supervisor)
	loops.Go(ctx, "offering-poller", poller)
	loops.Go(ctx, "http-server", supervise.RunnerFunc(func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	logger.Info().Str("addr", addr).Msg("coordinator started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	pool.Stop(true)
	loops.Wait()

	logger.Info().Msg("coordinator stopped")
	return nil
}
