package workflow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the workflow engine.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	StageExecutions    *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	QualityScore       prometheus.Histogram
	ReflectIterations  prometheus.Histogram
	BranchImprovements prometheus.Counter
	ParseFallbacks     *prometheus.CounterVec
}

// NewMetrics registers the workflow metrics with the default registry once
// and returns the shared instance.
//
// Metrics:
//   - mindmap_runs_total{outcome} - completed and failed runs
//   - mindmap_stage_executions_total{stage,status} - stage executions
//   - mindmap_stage_duration_seconds{stage} - stage latency
//   - mindmap_quality_score - reflect scores
//   - mindmap_reflect_iterations - reflect executions per successful run
//   - mindmap_branch_improvements_total - improve passes that replaced branches
//   - mindmap_parse_fallbacks_total{stage,field} - unparsable LLM responses
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mindmap_runs_total",
				Help: "Total number of workflow runs by outcome",
			}, []string{"outcome"}),
			StageExecutions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mindmap_stage_executions_total",
				Help: "Total number of stage executions",
			}, []string{"stage", "status"}),
			StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "mindmap_stage_duration_seconds",
				Help:    "Duration of stage execution in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			}, []string{"stage"}),
			QualityScore: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "mindmap_quality_score",
				Help:    "Quality scores assigned by the reflect stage",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			}),
			ReflectIterations: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "mindmap_reflect_iterations",
				Help:    "Reflect executions per completed run",
				Buckets: []float64{1, 2, 3},
			}),
			BranchImprovements: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mindmap_branch_improvements_total",
				Help: "Improve passes that replaced the primary branches",
			}),
			ParseFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mindmap_parse_fallbacks_total",
				Help: "LLM responses that failed to parse",
			}, []string{"stage", "field"}),
		}
	})
	return globalMetrics
}

func (m *Metrics) parseFallback(stage Stage, field string) {
	m.ParseFallbacks.WithLabelValues(string(stage), field).Inc()
}

func (m *Metrics) observeScore(score float64) {
	m.QualityScore.Observe(score)
}

func (m *Metrics) observeStage(stage Stage, status StageStatus, d time.Duration) {
	m.StageExecutions.WithLabelValues(string(stage), string(status)).Inc()
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}
