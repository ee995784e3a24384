package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/consultation-extract/constants"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
)

func known(field string) bool { return field == "domain" || field == "country" }

func TestObserveRecord(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.ObserveRecord(entity.Record{
		Status: constants.JobStatusOK,
		Fallbacks: []entity.Fallback{
			{Field: "domain", Reason: "not_in_enum"},
			{Field: "country", Reason: "missing"},
			{Field: "made_up", Reason: "unknown_field"},
		},
	}, known, 3*time.Second)
	m.ObserveRecord(entity.Record{Status: constants.JobStatusFailed}, known, time.Second)
	m.ObserveRecord(entity.Record{Status: constants.JobStatusOK}, known, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues("OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("domain")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues(unknownFieldLabel)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))

	expected := `
# HELP consult_documents_total Documents processed, by outcome.
# TYPE consult_documents_total counter
consult_documents_total{status="FAILED"} 1
consult_documents_total{status="OK"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "consult_documents_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRecord(entity.Record{Status: constants.JobStatusOK}, nil, time.Second)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Push(context.Background(), "http://unused", "job", "run"))
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := New(nil)
	require.NoError(t, err)
	m.ObserveRecord(entity.Record{Status: constants.JobStatusOK}, nil, time.Second)

	require.NoError(t, m.Push(context.Background(), srv.URL, "consultation_extract", "run-1"))
	assert.Equal(t, "/metrics/job/consultation_extract/run_id/run-1", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, err := New(nil)
	require.NoError(t, err)
	assert.Error(t, m.Push(context.Background(), srv.URL, "job", ""))
}
