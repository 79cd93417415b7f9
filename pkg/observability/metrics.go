package observability

import (
	"net/http"
	"time"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels of solve requests.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeFailure = "failure"
)

// ProblemUnknown labels requests whose problem type did not parse.
const ProblemUnknown = "unknown"

// Metrics holds the collectors of one server.
type Metrics struct {
	registry *prometheus.Registry

	SolveRequests     *prometheus.CounterVec
	SolveDuration     *prometheus.HistogramVec
	Iterations        *prometheus.CounterVec
	IterationDuration *prometheus.HistogramVec
	MeshCells         *prometheus.GaugeVec
	FileRequests      *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SolveRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amrviz_solve_requests_total",
				Help: "Total number of solve requests by problem and outcome",
			},
			[]string{"problem", "outcome"},
		),
		SolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amrviz_solve_duration_seconds",
				Help:    "Duration of complete solve requests",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"problem"},
		),
		Iterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amrviz_iterations_total",
				Help: "Total number of solve-and-refine iterations",
			},
			[]string{"problem"},
		),
		IterationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amrviz_iteration_duration_seconds",
				Help:    "Duration of one solve-and-refine iteration",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"problem"},
		),
		MeshCells: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "amrviz_mesh_cells",
				Help: "Cell count of the most recently solved mesh",
			},
			[]string{"problem"},
		),
		FileRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amrviz_file_requests_total",
				Help: "Total number of file downloads by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		m.SolveRequests, m.SolveDuration, m.Iterations,
		m.IterationDuration, m.MeshCells, m.FileRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveIteration implements pipeline.Observer.
func (m *Metrics) ObserveIteration(problem domain.ProblemType, it domain.IterationSummary, elapsed time.Duration) {
	label := string(problem)
	m.Iterations.WithLabelValues(label).Inc()
	m.IterationDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	m.MeshCells.WithLabelValues(label).Set(float64(it.Cells))
}

// ObserveSolve records one finished solve request.
// Problems outside ProblemTypes share the "unknown" label.
func (m *Metrics) ObserveSolve(problem domain.ProblemType, outcome string, elapsed time.Duration) {
	label := ProblemUnknown
	if pt, err := domain.ParseProblemType(string(problem)); err == nil {
		label = string(pt)
	}
	m.SolveRequests.WithLabelValues(label, outcome).Inc()
	if outcome == OutcomeSuccess {
		m.SolveDuration.WithLabelValues(string(problem)).Observe(elapsed.Seconds())
	}
}

// ObserveFile records one file download.
func (m *Metrics) ObserveFile(found bool) {
	if found {
		m.FileRequests.WithLabelValues("found").Inc()
		return
	}
	m.FileRequests.WithLabelValues("missing").Inc()
}
