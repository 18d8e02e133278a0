package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("ListModels", "success"))
	ObserveRequest("ListModels", "success", 120*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("ListModels", "success")))
	assert.Positive(t, testutil.CollectAndCount(RequestLatency))
}

func TestRecordTokens(t *testing.T) {
	in := TokenUsageTotal.WithLabelValues("test/model", "input")
	out := TokenUsageTotal.WithLabelValues("test/model", "output")
	beforeIn, beforeOut := testutil.ToFloat64(in), testutil.ToFloat64(out)

	RecordTokens("test/model", 12, 0)
	assert.Equal(t, beforeIn+12, testutil.ToFloat64(in))
	assert.Equal(t, beforeOut, testutil.ToFloat64(out))
}

func TestRecordCatalogLookup(t *testing.T) {
	ratioMu.Lock()
	totalHits, totalLookups = 0, 0
	ratioMu.Unlock()

	RecordCatalogLookup("api")
	RecordCatalogLookup("memory")
	RecordCatalogLookup("redis")
	RecordCatalogLookup("memory")

	assert.InDelta(t, 0.75, testutil.ToFloat64(CatalogHitRatio), 1e-9)
	assert.GreaterOrEqual(t, testutil.ToFloat64(CatalogLookupsTotal.WithLabelValues("memory")), 2.0)
}
