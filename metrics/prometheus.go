package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks per-directory run results for the textfile collector
type Metrics struct {
	registry *prometheus.Registry

	jobSuccess   *prometheus.GaugeVec
	jobDuration  *prometheus.GaugeVec
	lastBackup   *prometheus.GaugeVec
	batchFailed  prometheus.Gauge
	batchVisited prometheus.Gauge
}

// create new metrics struct on its own registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsbackup_last_run_success",
			Help: "Last run success status per directory (1=success, 0=failure)",
		}, []string{"directory", "command"}),
		jobDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsbackup_last_run_duration_seconds",
			Help: "Duration of the last run per directory in seconds",
		}, []string{"directory", "command"}),
		lastBackup: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsbackup_last_backup_timestamp_seconds",
			Help: "Unix time of the last recorded backup per directory",
		}, []string{"directory"}),
		batchFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsbackup_batch_failed_directories",
			Help: "Number of directories that failed in the last batch run",
		}),
		batchVisited: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsbackup_batch_directories",
			Help: "Number of directories visited in the last batch run",
		}),
	}

	m.registry.MustRegister(m.jobSuccess, m.jobDuration, m.lastBackup, m.batchFailed, m.batchVisited)
	return m
}

// records the outcome of one directory run
func (m *Metrics) SetRunMetrics(directory, command string, success bool, duration time.Duration) {
	if success {
		m.jobSuccess.WithLabelValues(directory, command).Set(1)
	} else {
		m.jobSuccess.WithLabelValues(directory, command).Set(0)
	}
	m.jobDuration.WithLabelValues(directory, command).Set(duration.Seconds())
}

func (m *Metrics) SetLastBackup(directory string, when time.Time) {
	m.lastBackup.WithLabelValues(directory).Set(float64(when.Unix()))
}

func (m *Metrics) SetBatchMetrics(visited, failed int) {
	m.batchVisited.Set(float64(visited))
	m.batchFailed.Set(float64(failed))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// writes all metrics in text exposition format for node_exporter
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
