package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coordinator_nodes_total",
			Help: "Total number of catalogue nodes by status",
		},
		[]string{"status"},
	)

	RingMembers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_ring_members",
			Help: "Number of nodes currently on the hash ring",
		},
	)

	// Placement metrics
	PlacementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_placements_total",
			Help: "Total number of offering placements by outcome",
		},
		[]string{"outcome"},
	)

	RedistributionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_redistributions_total",
			Help: "Total number of offerings redistributed after node death",
		},
	)

	PlacementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coordinator_placement_duration_seconds",
			Help:    "Time taken to place one offering in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Worker pool metrics
	PoolTasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coordinator_pool_tasks_total",
			Help: "Worker pool task records by status",
		},
		[]string{"status"},
	)

	// Federation metrics
	FederatedQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_federated_queries_total",
			Help: "Total number of federated SPARQL queries served",
		},
	)

	FederatedQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coordinator_federated_query_duration_seconds",
			Help:    "Federated query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coordinator_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(RingMembers)
	prometheus.MustRegister(PlacementsTotal)
	prometheus.MustRegister(RedistributionsTotal)
	prometheus.MustRegister(PlacementDuration)
	prometheus.MustRegister(PoolTasksTotal)
	prometheus.MustRegister(FederatedQueriesTotal)
	prometheus.MustRegister(FederatedQueryDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
