package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/philippgille/gokv"

	"github.com/dlsciences/oaih/internal/pkg/log"
)

// LogStatus is the lifecycle status of a harvest log entry.
type LogStatus string

const (
	StatusInProgress            LogStatus = "inprogress"
	StatusCompletedOK           LogStatus = "completedOK"
	StatusCompletedOAIError     LogStatus = "completedOAIError"
	StatusCompletedSeriousError LogStatus = "completedSeriousError"
)

// LogEntry records one harvest attempt, scheduled or one-time.
type LogEntry struct {
	ID             string    `json:"id"`
	ScheduleUID    string    `json:"scheduleUID,omitempty"`
	RepositoryName string    `json:"repositoryName,omitempty"`
	BaseURL        string    `json:"baseURL"`
	MetadataPrefix string    `json:"metadataPrefix"`
	SetSpec        string    `json:"setSpec,omitempty"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime,omitempty"`
	RecordCount    int       `json:"recordCount"`
	DeletedCount   int       `json:"deletedCount"`
	PageCount      int       `json:"pageCount"`
	Status         LogStatus `json:"status"`
	Message        string    `json:"message,omitempty"`
	HarvestDir     string    `json:"harvestDir,omitempty"`
	ZipPath        string    `json:"zipPath,omitempty"`
}

const (
	logEntryPrefix = "entry:"
	logIndexKey    = "index"
)

// HarvestLog is a persistent log of harvest attempts. The backing
// key-value store offers no iteration, so an index entry tracks the
// known IDs.
type HarvestLog struct {
	mu     sync.Mutex
	store  gokv.Store
	ids    []string
	logger *log.FieldedLogger
}

// OpenHarvestLog opens the harvest log on the given store and repairs
// entries interrupted by a crash: anything still marked in progress
// from a previous process is rewritten as a serious error, since its
// harvest can no longer complete.
func OpenHarvestLog(store gokv.Store) (*HarvestLog, error) {
	hl := &HarvestLog{
		store: store,
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "harvestlog",
		}),
	}

	found, err := store.Get(logIndexKey, &hl.ids)
	if err != nil {
		return nil, fmt.Errorf("unable to read the harvest log index: %w", err)
	}
	if !found {
		hl.ids = nil
	}

	for _, id := range hl.ids {
		var entry LogEntry
		found, err := store.Get(logEntryPrefix+id, &entry)
		if err != nil {
			return nil, fmt.Errorf("unable to read harvest log entry %s: %w", id, err)
		}
		if !found || entry.Status != StatusInProgress {
			continue
		}

		entry.Status = StatusCompletedSeriousError
		entry.Message = "the harvest was interrupted by a shutdown or crash before completing"
		if err := store.Set(logEntryPrefix+id, entry); err != nil {
			return nil, fmt.Errorf("unable to repair harvest log entry %s: %w", id, err)
		}
		hl.logger.Warn("marked an interrupted harvest as failed", "entry", id)
	}

	return hl, nil
}

// Write persists an entry, creating or replacing it.
func (hl *HarvestLog) Write(entry *LogEntry) error {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if err := hl.store.Set(logEntryPrefix+entry.ID, entry); err != nil {
		return fmt.Errorf("unable to write harvest log entry %s: %w", entry.ID, err)
	}

	for _, id := range hl.ids {
		if id == entry.ID {
			return nil
		}
	}
	hl.ids = append(hl.ids, entry.ID)
	if err := hl.store.Set(logIndexKey, hl.ids); err != nil {
		return fmt.Errorf("unable to update the harvest log index: %w", err)
	}
	return nil
}

// Get returns the entry with the given ID, or found=false.
func (hl *HarvestLog) Get(id string) (*LogEntry, bool, error) {
	var entry LogEntry
	found, err := hl.store.Get(logEntryPrefix+id, &entry)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Query returns all entries, newest first. A non-empty scheduleUID
// restricts the result to that schedule's harvests.
func (hl *HarvestLog) Query(scheduleUID string) ([]*LogEntry, error) {
	hl.mu.Lock()
	ids := make([]string, len(hl.ids))
	copy(ids, hl.ids)
	hl.mu.Unlock()

	var entries []*LogEntry
	for _, id := range ids {
		var entry LogEntry
		found, err := hl.store.Get(logEntryPrefix+id, &entry)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if scheduleUID != "" && entry.ScheduleUID != scheduleUID {
			continue
		}
		entries = append(entries, &entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartTime.After(entries[j].StartTime)
	})
	return entries, nil
}
