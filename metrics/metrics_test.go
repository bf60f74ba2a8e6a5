package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.RecordWritten(false)
	m.RecordWritten(false)
	m.RecordWritten(true)
	m.FileOpened(true)
	m.Committed(12)
	m.Committed(15)
	m.Skipped(2, 1, 3)
	m.Finished(true, 1.5)

	if got := testutil.ToFloat64(m.records.WithLabelValues("positive")); got != 2 {
		t.Errorf("expected 2 positive records, got %v", got)
	}
	if got := testutil.ToFloat64(m.records.WithLabelValues("negative")); got != 1 {
		t.Errorf("expected 1 negative record, got %v", got)
	}
	if got := testutil.ToFloat64(m.commits); got != 2 {
		t.Errorf("expected 2 commits, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastSequence); got != 15 {
		t.Errorf("expected last sequence 15, got %v", got)
	}
	if got := testutil.ToFloat64(m.malformedRecords); got != 3 {
		t.Errorf("expected 3 malformed records, got %v", got)
	}
	if got := testutil.ToFloat64(m.resumed); got != 1 {
		t.Errorf("expected resumed gauge 1, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordWritten(true)
	m.FileOpened(false)
	m.Committed(1)
	m.Skipped(1, 1, 1)
	m.Finished(false, 1)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("nil metrics must not fail, got %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordWritten(false)

	path := filepath.Join(t.TempDir(), "speciesexport.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatal(err.Error())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err.Error())
	}
	if !strings.Contains(string(data), `speciesexport_records_written_total{phase="positive"} 1`) {
		t.Errorf("textfile does not contain record counter:\n%s", data)
	}
}
