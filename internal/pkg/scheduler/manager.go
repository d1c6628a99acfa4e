// Package scheduler runs harvests on recurring schedules. It keeps
// the schedules and a log of every harvest attempt in a persistent
// key-value store, enforces one running harvest per schedule, and
// maintains rotating zip backups of each schedule's records.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/gokv"
	"github.com/philippgille/gokv/leveldb"
	"github.com/robfig/cron/v3"

	"github.com/dlsciences/oaih/internal/pkg/config"
	"github.com/dlsciences/oaih/internal/pkg/harvester"
	"github.com/dlsciences/oaih/internal/pkg/log"
	"github.com/dlsciences/oaih/internal/pkg/oai"
)

const (
	scheduleKeyPrefix = "sh:"
	scheduleIndexKey  = "index"
)

var ErrUnknownSchedule = errors.New("no scheduled harvest with that UID")

// Manager owns the scheduled harvests: their persistence, their
// timers, and the harvesters they spawn.
type Manager struct {
	cfg        *config.Config
	client     *oai.Client
	store      gokv.Store
	logStore   gokv.Store
	harvestLog *HarvestLog
	cron       *cron.Cron
	logger     *log.FieldedLogger

	mu        sync.Mutex
	schedules map[string]*ScheduledHarvest
	entries   map[string]cron.EntryID
	running   map[string]*harvester.Harvester

	wg sync.WaitGroup
}

// NewManager opens the schedule and harvest-log stores under the
// configured data directory, repairs log entries interrupted by a
// crash, and registers a timer for every enabled schedule. Timers do
// not fire until Start is called.
func NewManager(cfg *config.Config) (*Manager, error) {
	store, err := leveldb.NewStore(leveldb.Options{Path: filepath.Join(cfg.DataDir, "schedules")})
	if err != nil {
		return nil, fmt.Errorf("unable to open the schedule store: %w", err)
	}

	logStore, err := leveldb.NewStore(leveldb.Options{Path: filepath.Join(cfg.DataDir, "harvestlog")})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("unable to open the harvest log store: %w", err)
	}

	harvestLog, err := OpenHarvestLog(logStore)
	if err != nil {
		store.Close()
		logStore.Close()
		return nil, err
	}

	m := &Manager{
		cfg:        cfg,
		client:     oai.NewClient(cfg.HTTPTimeout),
		store:      store,
		logStore:   logStore,
		harvestLog: harvestLog,
		cron:       cron.New(),
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "scheduler",
		}),
		schedules: make(map[string]*ScheduledHarvest),
		entries:   make(map[string]cron.EntryID),
		running:   make(map[string]*harvester.Harvester),
	}

	if err := m.loadSchedules(); err != nil {
		store.Close()
		logStore.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadSchedules() error {
	var uids []string
	if _, err := m.store.Get(scheduleIndexKey, &uids); err != nil {
		return fmt.Errorf("unable to read the schedule index: %w", err)
	}

	for _, uid := range uids {
		var sh ScheduledHarvest
		found, err := m.store.Get(scheduleKeyPrefix+uid, &sh)
		if err != nil {
			return fmt.Errorf("unable to read schedule %s: %w", uid, err)
		}
		if !found {
			continue
		}
		m.schedules[uid] = &sh
		if sh.Enabled {
			m.registerTimer(&sh)
		}
	}

	m.logger.Info("loaded scheduled harvests", "count", len(m.schedules))
	return nil
}

// registerTimer must be called with m.mu held or before the manager
// is shared.
func (m *Manager) registerTimer(sh *ScheduledHarvest) {
	uid := sh.UID
	id := m.cron.Schedule(sh.schedule(time.Now()), cron.FuncJob(func() {
		m.harvestByUID(uid)
	}))
	m.entries[uid] = id
}

func (m *Manager) unregisterTimer(uid string) {
	if id, ok := m.entries[uid]; ok {
		m.cron.Remove(id)
		delete(m.entries, uid)
	}
}

// Start makes the timers live.
func (m *Manager) Start() {
	m.cron.Start()
}

// Add stores a scheduled harvest and, if enabled, registers its
// timer. A harvest with an existing UID replaces the stored one; a
// harvest without a UID gets a fresh one.
func (m *Manager) Add(sh *ScheduledHarvest) error {
	if err := sh.validate(); err != nil {
		return err
	}
	if sh.UID == "" {
		sh.UID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.schedules[sh.UID]; ok {
		// Keep the watermark across edits so the next run stays
		// incremental.
		if sh.LastHarvestTime.IsZero() {
			sh.LastHarvestTime = prev.LastHarvestTime
		}
		m.unregisterTimer(sh.UID)
	}

	if err := m.persistSchedule(sh); err != nil {
		return err
	}

	m.schedules[sh.UID] = sh
	if sh.Enabled {
		m.registerTimer(sh)
	}

	m.logger.Info("scheduled harvest stored", "uid", sh.UID, "repository", sh.RepositoryName, "interval", sh.Interval.String())
	return nil
}

// persistSchedule must be called with m.mu held.
func (m *Manager) persistSchedule(sh *ScheduledHarvest) error {
	if err := m.store.Set(scheduleKeyPrefix+sh.UID, sh); err != nil {
		return fmt.Errorf("unable to store schedule %s: %w", sh.UID, err)
	}

	if _, ok := m.schedules[sh.UID]; !ok {
		uids := make([]string, 0, len(m.schedules)+1)
		for uid := range m.schedules {
			uids = append(uids, uid)
		}
		uids = append(uids, sh.UID)
		sort.Strings(uids)
		if err := m.store.Set(scheduleIndexKey, uids); err != nil {
			return fmt.Errorf("unable to update the schedule index: %w", err)
		}
	}
	return nil
}

// Remove deletes a scheduled harvest, killing its harvest first if
// one is running. With deleteFiles set, the schedule's harvest
// directory and its zip backups are deleted as well.
func (m *Manager) Remove(uid string, deleteFiles bool) error {
	m.mu.Lock()
	sh, ok := m.schedules[uid]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownSchedule
	}
	dirName := sh.DirName()

	m.unregisterTimer(uid)
	if h, ok := m.running[uid]; ok {
		h.Kill()
	}
	delete(m.schedules, uid)

	uids := make([]string, 0, len(m.schedules))
	for u := range m.schedules {
		uids = append(uids, u)
	}
	sort.Strings(uids)
	m.mu.Unlock()

	if err := m.store.Delete(scheduleKeyPrefix + uid); err != nil {
		return fmt.Errorf("unable to delete schedule %s: %w", uid, err)
	}
	if err := m.store.Set(scheduleIndexKey, uids); err != nil {
		return fmt.Errorf("unable to update the schedule index: %w", err)
	}

	if deleteFiles {
		dir := filepath.Join(m.cfg.HarvestDir, dirName)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("unable to delete the harvest directory %s: %w", dir, err)
		}
		for _, suffix := range backupSuffixes {
			zip := filepath.Join(m.cfg.ZipDir, dirName+suffix)
			if err := os.Remove(zip); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("unable to delete the zip backup %s: %w", zip, err)
			}
		}
	}

	m.logger.Info("scheduled harvest removed", "uid", uid, "deleteFiles", deleteFiles)
	return nil
}

// Get returns the scheduled harvest with the given UID.
func (m *Manager) Get(uid string) (*ScheduledHarvest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.schedules[uid]
	if !ok {
		return nil, false
	}
	cp := *sh
	return &cp, true
}

// List returns all scheduled harvests, sorted by repository name.
func (m *Manager) List() []*ScheduledHarvest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ScheduledHarvest, 0, len(m.schedules))
	for _, sh := range m.schedules {
		cp := *sh
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RepositoryName != out[j].RepositoryName {
			return out[i].RepositoryName < out[j].RepositoryName
		}
		return out[i].UID < out[j].UID
	})
	return out
}

// Log returns the harvest log.
func (m *Manager) Log() *HarvestLog {
	return m.harvestLog
}

// IsRunning reports whether the schedule's harvest is in progress.
func (m *Manager) IsRunning(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[uid]
	return ok
}

// HarvestNow starts the schedule's harvest immediately, in the
// background. harvestAll forces a full harvest regardless of the
// watermark; harvestAllIfNoDeletedRecord upgrades to a full harvest
// when the provider declares no deleted-record support. If a harvest
// for this schedule is already running the call is a no-op.
func (m *Manager) HarvestNow(uid string, harvestAll, harvestAllIfNoDeletedRecord bool) error {
	m.mu.Lock()
	_, known := m.schedules[uid]
	m.mu.Unlock()
	if !known {
		return ErrUnknownSchedule
	}

	h, sh, ok := m.acquire(uid)
	if !ok {
		return nil
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release(uid)
		m.runHarvest(h, sh, harvestAll, harvestAllIfNoDeletedRecord)
	}()
	return nil
}

// Wait blocks until every background harvest started via HarvestNow
// or OneTimeHarvest has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// StopAll stops the timers, kills every running harvest and waits for
// them to wind down, then closes the stores.
func (m *Manager) StopAll() {
	ctx := m.cron.Stop()

	m.mu.Lock()
	for _, h := range m.running {
		h.Kill()
	}
	m.mu.Unlock()

	<-ctx.Done()
	m.wg.Wait()

	m.store.Close()
	m.logStore.Close()
	m.logger.Info("scheduler stopped")
}

// harvestByUID runs one harvest cycle for a schedule, skipping the
// cycle if one is already in progress.
func (m *Manager) harvestByUID(uid string) {
	h, sh, ok := m.acquire(uid)
	if !ok {
		return
	}
	defer m.release(uid)

	m.runHarvest(h, sh, false, true)
}

// acquire reserves the schedule's running slot and returns a fresh
// harvester for it. At most one harvest per schedule runs at a time:
// if the slot is taken, or the schedule is gone, acquire reports
// false.
func (m *Manager) acquire(uid string) (*harvester.Harvester, *ScheduledHarvest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sh, ok := m.schedules[uid]
	if !ok {
		return nil, nil, false
	}
	if _, busy := m.running[uid]; busy {
		m.logger.Info("harvest already in progress, skipping this cycle", "uid", uid)
		return nil, nil, false
	}

	cp := *sh
	h := harvester.New(m.client, harvester.NewLogMessageHandler(uid), nil)
	m.running[uid] = h
	return h, &cp, true
}

func (m *Manager) release(uid string) {
	m.mu.Lock()
	delete(m.running, uid)
	m.mu.Unlock()
}

func (m *Manager) runHarvest(h *harvester.Harvester, sh *ScheduledHarvest, harvestAll, harvestAllIfNoDeletedRecord bool) {
	start := time.Now()
	dir := filepath.Join(m.cfg.HarvestDir, sh.DirName())

	entry := &LogEntry{
		ID:             h.ID(),
		ScheduleUID:    sh.UID,
		RepositoryName: sh.RepositoryName,
		BaseURL:        sh.BaseURL,
		MetadataPrefix: sh.MetadataPrefix,
		SetSpec:        sh.SetSpec,
		StartTime:      start,
		Status:         StatusInProgress,
		HarvestDir:     dir,
	}
	if err := m.harvestLog.Write(entry); err != nil {
		m.logger.Error("unable to write the harvest log entry", "uid", sh.UID, "err", err.Error())
		return
	}

	req := &harvester.Request{
		BaseURL:                     sh.BaseURL,
		MetadataPrefix:              sh.MetadataPrefix,
		SetSpec:                     sh.SetSpec,
		From:                        sh.LastHarvestTime,
		OutputDir:                   dir,
		HarvestAll:                  harvestAll || sh.LastHarvestTime.IsZero(),
		HarvestAllIfNoDeletedRecord: harvestAllIfNoDeletedRecord,
		SplitBySet:                  sh.SplitBySet,
		WriteHeaders:                m.cfg.WriteHeaders,
		ZipOnCompletion:             true,
		ZipDir:                      m.cfg.ZipDir,
		NotifyEvery:                 m.cfg.NotifyEvery,
	}

	result, err := h.Run(context.Background(), req)
	entry.EndTime = time.Now()

	if err != nil {
		var oaiErr *oai.Error
		if errors.As(err, &oaiErr) {
			entry.Status = StatusCompletedOAIError
		} else {
			entry.Status = StatusCompletedSeriousError
		}
		entry.Message = err.Error()
	} else {
		entry.Status = StatusCompletedOK
		entry.RecordCount = result.RecordCount
		entry.DeletedCount = result.DeletedCount
		entry.PageCount = result.PageCount

		if result.ZipPath != "" {
			if zipPath, rerr := rotateBackups(m.cfg.ZipDir, sh.DirName(), result.ZipPath); rerr != nil {
				m.logger.Error("unable to rotate zip backups", "uid", sh.UID, "err", rerr.Error())
			} else {
				entry.ZipPath = zipPath
			}
		}

		// The watermark is the run's start time, not its end: records
		// changed while the harvest ran must be picked up next cycle.
		m.mu.Lock()
		if cur, ok := m.schedules[sh.UID]; ok {
			cur.LastHarvestTime = start
			if perr := m.store.Set(scheduleKeyPrefix+cur.UID, cur); perr != nil {
				m.logger.Error("unable to persist the harvest watermark", "uid", sh.UID, "err", perr.Error())
			}
		}
		m.mu.Unlock()
	}

	if err := m.harvestLog.Write(entry); err != nil {
		m.logger.Error("unable to finalize the harvest log entry", "uid", sh.UID, "err", err.Error())
	}
}

// OneTimeHarvest runs an ad-hoc harvest in the background, logged but
// not tied to any schedule. It returns the harvest ID, which is also
// the log entry ID.
func (m *Manager) OneTimeHarvest(req *harvester.Request, repositoryName string) (string, error) {
	h := harvester.New(m.client, harvester.NewLogMessageHandler(repositoryName), nil)

	entry := &LogEntry{
		ID:             h.ID(),
		RepositoryName: repositoryName,
		BaseURL:        req.BaseURL,
		MetadataPrefix: req.MetadataPrefix,
		SetSpec:        req.SetSpec,
		StartTime:      time.Now(),
		Status:         StatusInProgress,
		HarvestDir:     req.OutputDir,
	}
	if err := m.harvestLog.Write(entry); err != nil {
		return "", err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		result, err := h.Run(context.Background(), req)
		entry.EndTime = time.Now()
		if err != nil {
			var oaiErr *oai.Error
			if errors.As(err, &oaiErr) {
				entry.Status = StatusCompletedOAIError
			} else {
				entry.Status = StatusCompletedSeriousError
			}
			entry.Message = err.Error()
		} else {
			entry.Status = StatusCompletedOK
			entry.RecordCount = result.RecordCount
			entry.DeletedCount = result.DeletedCount
			entry.PageCount = result.PageCount
			entry.ZipPath = result.ZipPath
		}
		if werr := m.harvestLog.Write(entry); werr != nil {
			m.logger.Error("unable to finalize the harvest log entry", "entry", entry.ID, "err", werr.Error())
		}
	}()

	return h.ID(), nil
}
