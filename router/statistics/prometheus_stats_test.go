package statistics

import (
	"testing"
	"time"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStoreOp(t *testing.T) {
	assert := assert.New(t)

	before := testutil.ToFloat64(storeErrors.WithLabelValues("stats-store", "commit", fderror.FDR_STORE_UNAVAILABLE))
	RecordStoreOp("stats-store", "commit", time.Now(), nil)
	RecordStoreOp("stats-store", "commit", time.Now(), fderror.New(fderror.FDR_STORE_UNAVAILABLE, "gone"))

	assert.Equal(before+1, testutil.ToFloat64(storeErrors.WithLabelValues("stats-store", "commit", fderror.FDR_STORE_UNAVAILABLE)))
	assert.GreaterOrEqual(testutil.CollectAndCount(storeDuration), 1)
}

func TestRecordCounters(t *testing.T) {
	assert := assert.New(t)

	RecordRouted("sales", "historic")
	RecordRouted("sales", "historic")
	assert.Equal(float64(2), testutil.ToFloat64(routedRecords.WithLabelValues("sales", "historic")))

	RecordRejected("sales", fderror.New(fderror.FDR_OUT_OF_RANGE, "2031"))
	assert.Equal(float64(1), testutil.ToFloat64(rejectedRecords.WithLabelValues("sales", fderror.FDR_OUT_OF_RANGE)))

	RecordPartial("credits", "query")
	assert.Equal(float64(1), testutil.ToFloat64(partialFederations.WithLabelValues("credits", "query")))
}
