package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpBeforeInit(t *testing.T) {
	// Before Init every recorder is a no-op, so library users that
	// never initialize metrics still work.
	RecordSaved()
	RecordDeleted()
	PageFetched()
	HarvestStarted()
	HarvestFinished(true)
	assert.EqualValues(t, 0, RecordRate())
}

func TestInitOnce(t *testing.T) {
	// Init must be safe to call repeatedly: the second call must not
	// re-register the Prometheus collectors, which would panic.
	Init()
	Init()

	RecordSaved()
	HarvestStarted()
	HarvestFinished(false)
}
