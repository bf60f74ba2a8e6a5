package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "speciesexport"

// Metrics collects counters of one export run. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	records           *prometheus.CounterVec
	files             *prometheus.CounterVec
	commits           prometheus.Counter
	malformedLines    prometheus.Counter
	malformedRecords  prometheus.Counter
	unitsWithoutFiles prometheus.Counter
	resumed           prometheus.Gauge
	lastSequence      prometheus.Gauge
	duration          prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Records written to output files.",
		}, []string{"phase"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_opened_total",
			Help:      "Output files created or resumed.",
		}, []string{"phase"}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Checkpoints committed.",
		}),
		malformedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_index_lines_total",
			Help:      "Index lines skipped because they could not be parsed.",
		}),
		malformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Input record lines skipped because they could not be decoded.",
		}),
		unitsWithoutFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_without_files_total",
			Help:      "Species units whose file group resolved to no input files.",
		}),
		resumed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resumed",
			Help:      "1 if the run resumed from a checkpoint.",
		}),
		lastSequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sequence_id",
			Help:      "Last committed sequence id.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the export run.",
		}),
	}

	m.registry.MustRegister(
		m.records,
		m.files,
		m.commits,
		m.malformedLines,
		m.malformedRecords,
		m.unitsWithoutFiles,
		m.resumed,
		m.lastSequence,
		m.duration,
	)
	return m
}

func phase(negative bool) string {
	if negative {
		return "negative"
	}
	return "positive"
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordWritten(negative bool) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(phase(negative)).Inc()
}

func (m *Metrics) FileOpened(negative bool) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(phase(negative)).Inc()
}

func (m *Metrics) Committed(sequenceID int64) {
	if m == nil {
		return
	}
	m.commits.Inc()
	m.lastSequence.Set(float64(sequenceID))
}

// Skipped adds recoverable problems counted by the catalog and the record iterators.
func (m *Metrics) Skipped(malformedLines int, unitsWithoutFiles int, malformedRecords int) {
	if m == nil {
		return
	}
	m.malformedLines.Add(float64(malformedLines))
	m.unitsWithoutFiles.Add(float64(unitsWithoutFiles))
	m.malformedRecords.Add(float64(malformedRecords))
}

func (m *Metrics) Finished(resumed bool, seconds float64) {
	if m == nil {
		return
	}
	if resumed {
		m.resumed.Set(1)
	}
	m.duration.Set(seconds)
}

// WriteTextfile writes all metrics in the text exposition format, for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Join(errors.New("failed to write metrics textfile"), err)
	}
	return nil
}
