package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSuccess(t *testing.T) {
	initial := testutil.ToFloat64(DispatchesTotal.WithLabelValues("t1", "success"))

	RecordSuccess("t1")

	final := testutil.ToFloat64(DispatchesTotal.WithLabelValues("t1", "success"))
	assert.Equal(t, initial+1.0, final)
}

func TestRecordError(t *testing.T) {
	initialTotal := testutil.ToFloat64(DispatchesTotal.WithLabelValues("t2", "error"))
	initialKind := testutil.ToFloat64(DispatchErrorsTotal.WithLabelValues("t2", "RATE_LIMIT"))

	RecordError("t2", "RATE_LIMIT")

	assert.Equal(t, initialTotal+1.0, testutil.ToFloat64(DispatchesTotal.WithLabelValues("t2", "error")))
	assert.Equal(t, initialKind+1.0, testutil.ToFloat64(DispatchErrorsTotal.WithLabelValues("t2", "RATE_LIMIT")))
}

func TestRecorder_InFlight(t *testing.T) {
	initial := testutil.ToFloat64(DispatchInFlight)

	r := NewRecorder()
	r.InFlight(1)
	assert.Equal(t, initial+1.0, testutil.ToFloat64(DispatchInFlight))

	r.InFlight(-1)
	assert.Equal(t, initial, testutil.ToFloat64(DispatchInFlight))
}

func TestHandler_ServesPrometheusFormat(t *testing.T) {
	RecordSuccess("t3")

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
