package scheduler

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/robfig/cron/v3"
)

// ScheduledHarvest describes a harvest that runs on a recurring
// schedule.
type ScheduledHarvest struct {
	// UID uniquely identifies this schedule.
	UID string `json:"uid"`

	// RepositoryName is a human-readable label for the provider.
	RepositoryName string `json:"repositoryName"`

	BaseURL        string `json:"baseURL"`
	MetadataPrefix string `json:"metadataPrefix"`
	SetSpec        string `json:"setSpec,omitempty"`

	// Interval is the time between harvests.
	Interval time.Duration `json:"interval"`

	// RunAtTime optionally anchors the schedule to a time of day, in
	// "15:04" form. When set, the first run happens at that time and
	// subsequent runs follow Interval from there.
	RunAtTime string `json:"runAtTime,omitempty"`

	// SplitBySet writes records into one subdirectory per set.
	SplitBySet bool `json:"splitBySet"`

	// Enabled schedules are registered with the timer; disabled ones
	// are kept but only run via HarvestNow.
	Enabled bool `json:"enabled"`

	// LastHarvestTime is the start time of the last successful
	// harvest, used as the from date of the next incremental one.
	// Zero means no successful harvest yet.
	LastHarvestTime time.Time `json:"lastHarvestTime"`
}

func (sh *ScheduledHarvest) validate() error {
	if !strings.HasPrefix(sh.BaseURL, "http://") && !strings.HasPrefix(sh.BaseURL, "https://") {
		return fmt.Errorf("the baseURL must start with http:// or https://: %s", sh.BaseURL)
	}
	if !govalidator.IsURL(sh.BaseURL) {
		return fmt.Errorf("the baseURL is missing or invalid: %s", sh.BaseURL)
	}
	if sh.MetadataPrefix == "" {
		return fmt.Errorf("a metadataPrefix is required")
	}
	if sh.Interval < time.Minute {
		return fmt.Errorf("the harvesting interval must be at least one minute")
	}
	if sh.RunAtTime != "" {
		if _, err := time.Parse("15:04", sh.RunAtTime); err != nil {
			return fmt.Errorf("invalid runAtTime %q, expected HH:MM", sh.RunAtTime)
		}
	}
	return nil
}

// DirName returns the deterministic directory name harvests of this
// schedule are written to: the provider's host joined with the
// metadata prefix and set, with characters unsafe in file names
// replaced by dashes. The name is stable across runs so incremental
// harvests land in the same place.
func (sh *ScheduledHarvest) DirName() string {
	host := sh.BaseURL
	if u, err := url.Parse(sh.BaseURL); err == nil && u.Host != "" {
		host = u.Host
		if u.Path != "" && u.Path != "/" {
			host += u.Path
		}
	}

	name := host + "-" + sh.MetadataPrefix
	if sh.SetSpec != "" {
		name += "-" + sh.SetSpec
	}

	r := strings.NewReplacer(":", "-", ".", "-", "/", "-", "?", "-", "&", "-", "=", "-")
	return r.Replace(name)
}

// schedule returns the cron schedule for this harvest: either a plain
// interval, or an interval anchored at the next occurrence of
// RunAtTime.
func (sh *ScheduledHarvest) schedule(now time.Time) cron.Schedule {
	if sh.RunAtTime == "" {
		return cron.Every(sh.Interval)
	}

	at, _ := time.Parse("15:04", sh.RunAtTime)
	anchor := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())

	// Never anchor in the past or the immediate present: give the
	// scheduler at least a minute of headroom.
	for !anchor.After(now.Add(time.Minute)) {
		anchor = anchor.Add(24 * time.Hour)
	}

	return &anchoredSchedule{anchor: anchor, every: sh.Interval}
}

// anchoredSchedule fires first at anchor, then every interval after.
type anchoredSchedule struct {
	anchor time.Time
	every  time.Duration
}

func (s *anchoredSchedule) Next(t time.Time) time.Time {
	if t.Before(s.anchor) {
		return s.anchor
	}
	elapsed := t.Sub(s.anchor)
	steps := elapsed/s.every + 1
	return s.anchor.Add(steps * s.every)
}
