package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediaferry"

// Transfer outcome label values.
const (
	OutcomeComplete   = "complete"
	OutcomeBadRequest = "bad_request"
	OutcomeException  = "exception"
	OutcomeAborted    = "aborted"
)

// Transfer direction label values.
const (
	DirectionDownload = "download"
	DirectionUpload   = "upload"
)

// TransferMetrics tracks websocket transfers.
type TransferMetrics struct {
	// Started counts accepted download_init and upload_init requests.
	Started *prometheus.CounterVec
	// Finished counts terminal outcomes by direction.
	Finished *prometheus.CounterVec
	// Bytes counts payload bytes by direction.
	Bytes *prometheus.CounterVec
}

// NewTransferMetrics creates transfer collectors and registers them with reg
// when it is non-nil.
func NewTransferMetrics(reg prometheus.Registerer) *TransferMetrics {
	m := &TransferMetrics{
		Started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "started_total",
			Help:      "Transfers that passed validation and began",
		}, []string{"direction"}),
		Finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "finished_total",
			Help:      "Transfers that reached a terminal outcome",
		}, []string{"direction", "outcome"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "bytes_total",
			Help:      "Payload bytes streamed to or from clients",
		}, []string{"direction"}),
	}
	if reg != nil {
		m.Started = registerOrReuse(reg, m.Started).(*prometheus.CounterVec)
		m.Finished = registerOrReuse(reg, m.Finished).(*prometheus.CounterVec)
		m.Bytes = registerOrReuse(reg, m.Bytes).(*prometheus.CounterVec)
	}
	return m
}

// RecordStart counts a transfer that began.
func (m *TransferMetrics) RecordStart(direction string) {
	if m == nil {
		return
	}
	m.Started.WithLabelValues(direction).Inc()
}

// RecordFinish counts a terminal outcome.
func (m *TransferMetrics) RecordFinish(direction, outcome string) {
	if m == nil {
		return
	}
	m.Finished.WithLabelValues(direction, outcome).Inc()
}

// AddBytes counts streamed payload bytes.
func (m *TransferMetrics) AddBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Bytes.WithLabelValues(direction).Add(float64(n))
}

// TaskMetrics tracks background task execution.
type TaskMetrics struct {
	// Runs counts handler invocations by kind and result.
	Runs *prometheus.CounterVec
	// Duration observes handler run time by kind.
	Duration *prometheus.HistogramVec
}

// NewTaskMetrics creates task collectors and registers them with reg when it
// is non-nil.
func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	m := &TaskMetrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "runs_total",
			Help:      "Task handler runs by kind and resulting status",
		}, []string{"kind", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "run_duration_seconds",
			Help:      "Task handler run time",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"kind"}),
	}
	if reg != nil {
		m.Runs = registerOrReuse(reg, m.Runs).(*prometheus.CounterVec)
		m.Duration = registerOrReuse(reg, m.Duration).(*prometheus.HistogramVec)
	}
	return m
}

// RecordRun counts one handler run and its duration.
func (m *TaskMetrics) RecordRun(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(kind, status).Inc()
	m.Duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RegisterGauge exposes a value computed on scrape, such as the number of
// open connections.
func RegisterGauge(reg prometheus.Registerer, subsystem, name, help string, fn func() float64) {
	if reg == nil {
		return
	}
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
	registerOrReuse(reg, gauge)
}

func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
