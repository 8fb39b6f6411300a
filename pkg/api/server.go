package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dataspace/catalogue-coordinator/pkg/federation"
	"github.com/dataspace/catalogue-coordinator/pkg/kv"
	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/metrics"
	"github.com/dataspace/catalogue-coordinator/pkg/placement"
	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

const serviceName = "catalogue-coordinator"

// ClusterView reports the supervisor's view of node health.
type ClusterView interface {
	NodeSummary() *types.NodeSummary
}

// PlacementAPI is the slice of the placement driver the handlers use.
type PlacementAPI interface {
	Status(ctx context.Context, id string) (*types.PlacementStatus, error)
}

// Sweeper triggers a synchronous placement sweep.
type Sweeper interface {
	ProcessPending(ctx context.Context) (*placement.Summary, error)
}

// QueryEngine answers a federated query by fan-out and merge.
type QueryEngine interface {
	Query(ctx context.Context, query string) (*federation.Results, error)
}

// QueryForwarder answers a federated query via an upstream endpoint.
type QueryForwarder interface {
	Forward(ctx context.Context, query string) (*federation.Forwarded, error)
}

// Server is the coordinator's HTTP surface. The handlers are thin; all
// decisions live in the packages behind them.
type Server struct {
	router *gin.Engine
	http   *http.Server

	placements PlacementAPI
	sweeper    Sweeper
	cluster    ClusterView
	engine     QueryEngine
	// forwarder, when non-nil, takes priority over the fan-out engine.
	forwarder QueryForwarder
}

// NewServer builds the router. forwarder may be nil; queries then fan out.
func NewServer(addr string, placements PlacementAPI, sweeper Sweeper, cluster ClusterView, engine QueryEngine, forwarder QueryForwarder) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestMetrics())

	s := &Server{
		router:     router,
		placements: placements,
		sweeper:    sweeper,
		cluster:    cluster,
		engine:     engine,
		forwarder:  forwarder,
	}
	s.routes()
	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/offerings", s.handleOfferingLookup)
	s.router.POST("/offerings/process", s.handleProcess)
	s.router.GET("/offerings/status/:id", s.handleOfferingStatus)
	s.router.POST("/sparql", s.handleSPARQL)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// ListenAndServe blocks until the server exits.
func (s *Server) ListenAndServe() error {
	log.WithComponent("api").Info().Str("addr", s.http.Addr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests with a bounded deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestMetrics records per-request counters and latency.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, fmt.Sprintf("%d", c.Writer.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// notFound reports whether an error means "no such record".
func notFound(err error) bool {
	return kv.IsNotFound(err)
}
