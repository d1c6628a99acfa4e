package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduledHarvestValidate(t *testing.T) {
	valid := ScheduledHarvest{
		BaseURL:        "http://example.org/oai",
		MetadataPrefix: "oai_dc",
		Interval:       time.Hour,
	}
	require.NoError(t, valid.validate())

	bad := valid
	bad.BaseURL = "not a url"
	assert.Error(t, bad.validate())

	// A well-formed URL on a non-HTTP scheme is still unusable.
	bad = valid
	bad.BaseURL = "ftp://example.org/oai"
	assert.Error(t, bad.validate())

	bad = valid
	bad.BaseURL = "example.org/oai"
	assert.Error(t, bad.validate())

	bad = valid
	bad.MetadataPrefix = ""
	assert.Error(t, bad.validate())

	bad = valid
	bad.Interval = 30 * time.Second
	assert.Error(t, bad.validate())

	bad = valid
	bad.RunAtTime = "25:99"
	assert.Error(t, bad.validate())

	bad = valid
	bad.RunAtTime = "03:30"
	assert.NoError(t, bad.validate())
}

func TestDirName(t *testing.T) {
	sh := ScheduledHarvest{
		BaseURL:        "http://www.example.org:8080/pmh/provider",
		MetadataPrefix: "oai_dc",
	}
	assert.Equal(t, "www-example-org-8080-pmh-provider-oai_dc", sh.DirName())

	sh.SetSpec = "geo.science"
	assert.Equal(t, "www-example-org-8080-pmh-provider-oai_dc-geo-science", sh.DirName())

	// The name is deterministic, so incremental harvests of the same
	// schedule always land in the same directory.
	assert.Equal(t, sh.DirName(), sh.DirName())
}

func TestAnchoredScheduleNext(t *testing.T) {
	anchor := time.Date(2024, 3, 7, 3, 30, 0, 0, time.UTC)
	s := &anchoredSchedule{anchor: anchor, every: time.Hour}

	// Before the anchor, the first fire is the anchor itself.
	assert.Equal(t, anchor, s.Next(anchor.Add(-10*time.Minute)))

	// After the anchor, fires follow the interval.
	assert.Equal(t, anchor.Add(time.Hour), s.Next(anchor))
	assert.Equal(t, anchor.Add(time.Hour), s.Next(anchor.Add(25*time.Minute)))
	assert.Equal(t, anchor.Add(3*time.Hour), s.Next(anchor.Add(2*time.Hour+5*time.Minute)))
}

func TestScheduleAnchorsInFuture(t *testing.T) {
	sh := ScheduledHarvest{
		BaseURL:        "http://example.org/oai",
		MetadataPrefix: "oai_dc",
		Interval:       24 * time.Hour,
		RunAtTime:      "03:30",
	}

	// Whatever the current time, the first fire is at least a minute
	// away and at the requested time of day.
	for _, now := range []time.Time{
		time.Date(2024, 3, 7, 1, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 7, 3, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC),
	} {
		next := sh.schedule(now).Next(now)
		assert.True(t, next.Sub(now) >= time.Minute, "next fire %s too close to %s", next, now)
		assert.Equal(t, 3, next.Hour())
		assert.Equal(t, 30, next.Minute())
	}
}
