package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrometheus answers /api/v1/query with a single-sample vector whose
// value depends on the query text.
func fakePrometheus(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		query := r.Form.Get("query")

		if strings.Contains(query, "sum by (outcome)") {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[`+
				`{"metric":{"outcome":"generated"},"value":[1700000000,"4"]},`+
				`{"metric":{"outcome":"timed_out"},"value":[1700000000,"2"]}]}}`)
			return
		}

		value := "0"
		switch {
		case strings.Contains(query, `fallback="true"`):
			value = "3"
		case strings.Contains(query, "metagent_turns_total"):
			value = "12"
		case strings.Contains(query, `outcome="generated"`):
			value = "4"
		case strings.Contains(query, `outcome!="generated"`):
			value = "2"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,%q]}]}}`, value)
	}))
}

func TestGetPipelineMetrics(t *testing.T) {
	srv := fakePrometheus(t)
	defer srv.Close()

	q, err := NewQueryService(srv.URL)
	require.NoError(t, err)

	pm, err := q.GetPipelineMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), pm.Turns)
	assert.Equal(t, int64(3), pm.FallbackTurns)
	assert.Equal(t, int64(4), pm.GeneratedScrapers)
	assert.Equal(t, int64(2), pm.FailedGenerations)
	assert.InDelta(t, 0.25, pm.FallbackRate, 0.001)
}

func TestGetGenerationOutcomes(t *testing.T) {
	srv := fakePrometheus(t)
	defer srv.Close()

	q, err := NewQueryService(srv.URL)
	require.NoError(t, err)

	outcomes, err := q.GetGenerationOutcomes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"generated": 4, "timed_out": 2}, outcomes)
}

func TestGetPipelineMetricsServerDown(t *testing.T) {
	srv := fakePrometheus(t)
	srv.Close()

	q, err := NewQueryService(srv.URL)
	require.NoError(t, err)

	_, err = q.GetPipelineMetrics(context.Background())
	require.Error(t, err)
}
