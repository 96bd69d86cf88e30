package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObserveOperation(t *testing.T) {
	r := NewRecorder("college")
	r.ObserveOperation("students", "add", nil)
	r.ObserveOperation("students", "add", nil)
	r.ObserveOperation("courses", "create", errors.New("Professor ID does not exist"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("college", "students", "add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("college", "courses", "create", "error")))
}

func TestObservePersist(t *testing.T) {
	r := NewRecorder("hotel")
	r.ObservePersist(2*time.Millisecond, nil)
	r.ObservePersist(time.Millisecond, errors.New("disk full"))

	assert.Equal(t, 2, testutil.CollectAndCount(r.persist))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder("library")
	r.ObserveOperation("transactions", "complete", nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `keeper_operations_total{kind="transactions",op="complete",result="ok",system="library"} 1`)
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRecorder("school")
	r.ObserveOperation("students", "add", nil)

	addr, err := r.Serve(ctx, "127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "keeper_operations_total"))
}
