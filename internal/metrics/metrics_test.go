package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordQuestion(t *testing.T) {
	m := New()
	m.RecordQuestion("answered")
	m.RecordQuestion("answered")
	m.RecordQuestion("skipped")

	expected := `
		# HELP kgrag_questions_total Questions processed, by outcome
		# TYPE kgrag_questions_total counter
		kgrag_questions_total{status="answered"} 2
		kgrag_questions_total{status="skipped"} 1
	`
	if err := testutil.CollectAndCompare(m.QuestionsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestRecordStageAndContext(t *testing.T) {
	m := New()
	m.RecordStage(StageAssemble, 120*time.Millisecond)
	m.RecordStage(StageGenerate, 2*time.Second)
	m.RecordContext(1480)

	if count := testutil.CollectAndCount(m.StageDuration); count != 2 {
		t.Errorf("Expected 2 stage series, got %d", count)
	}
	if count := testutil.CollectAndCount(m.ContextChars); count != 1 {
		t.Errorf("Expected 1 context series, got %d", count)
	}
}

func TestRecordPersistError(t *testing.T) {
	m := New()
	m.RecordPersistError()
	if v := testutil.ToFloat64(m.PersistErrors); v != 1 {
		t.Errorf("Expected 1 persist error, got %v", v)
	}
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	m.RecordQuestion("failed")
	m.RecordStage(StageGenerate, time.Second)
	m.RecordContext(10)
	m.RecordPersistError()
	if m.Registry() != nil {
		t.Error("expected nil registry")
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordQuestion("answered")
	if v := testutil.ToFloat64(b.QuestionsTotal.WithLabelValues("answered")); v != 0 {
		t.Errorf("Expected separate registries, got %v", v)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordQuestion("failed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `kgrag_questions_total{status="failed"} 1`) {
		t.Errorf("Expected failed counter in output, got:\n%s", body)
	}
}
