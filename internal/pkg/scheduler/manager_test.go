package scheduler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlsciences/oaih/internal/pkg/config"
	"github.com/dlsciences/oaih/internal/pkg/harvester"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DataDir:    dir,
		HarvestDir: filepath.Join(dir, "harvests"),
		ZipDir:     filepath.Join(dir, "zips"),
	}
}

// testProvider answers Identify and serves a fixed single-page
// ListRecords response, or an OAI error when oaiError is set. An
// optional gate channel blocks ListRecords until released.
type testProvider struct {
	records  string
	oaiError string
	fail     bool
	gate     chan struct{}

	mu       sync.Mutex
	requests []string
}

func (p *testProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r.URL.RawQuery)
	p.mu.Unlock()

	if p.fail {
		http.Error(w, "down for maintenance", http.StatusInternalServerError)
		return
	}

	switch r.URL.Query().Get("verb") {
	case "Identify":
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH>
  <responseDate>2024-03-07T00:00:00Z</responseDate>
  <Identify>
    <repositoryName>Test</repositoryName>
    <baseURL>http://test</baseURL>
    <protocolVersion>2.0</protocolVersion>
    <earliestDatestamp>2000-01-01</earliestDatestamp>
    <deletedRecord>persistent</deletedRecord>
    <granularity>YYYY-MM-DDThh:mm:ssZ</granularity>
  </Identify>
</OAI-PMH>`)
	case "ListRecords":
		if p.gate != nil {
			<-p.gate
		}
		if p.oaiError != "" {
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH>
  <responseDate>2024-03-07T00:00:00Z</responseDate>
  <error code="%s">reported by the provider</error>
</OAI-PMH>`, p.oaiError)
			return
		}
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH>
  <responseDate>2024-03-07T00:00:00Z</responseDate>
  <ListRecords>
%s  </ListRecords>
</OAI-PMH>`, p.records)
	}
}

func (p *testProvider) listRecordsRequests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for _, q := range p.requests {
		if strings.Contains(q, "verb=ListRecords") {
			out = append(out, q)
		}
	}
	return out
}

const oneRecord = `    <record>
      <header><identifier>oai:x:1</identifier><datestamp>2024-03-01</datestamp></header>
      <metadata><dc>one</dc></metadata>
    </record>
`

func TestManagerSchedulePersistence(t *testing.T) {
	cfg := testConfig(t)

	m, err := NewManager(cfg)
	require.NoError(t, err)

	a := &ScheduledHarvest{
		RepositoryName: "Alpha",
		BaseURL:        "http://example.org/oai",
		MetadataPrefix: "oai_dc",
		Interval:       time.Hour,
	}
	b := &ScheduledHarvest{
		RepositoryName: "Beta",
		BaseURL:        "http://example.com/oai",
		MetadataPrefix: "oai_dc",
		Interval:       2 * time.Hour,
		Enabled:        true,
	}
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	require.NotEmpty(t, a.UID)
	require.NotEqual(t, a.UID, b.UID)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].RepositoryName)
	assert.Equal(t, "Beta", list[1].RepositoryName)

	m.StopAll()

	// Schedules survive a restart.
	m2, err := NewManager(cfg)
	require.NoError(t, err)
	defer m2.StopAll()

	got, ok := m2.Get(b.UID)
	require.True(t, ok)
	assert.Equal(t, "Beta", got.RepositoryName)
	assert.Equal(t, 2*time.Hour, got.Interval)
	assert.True(t, got.Enabled)

	require.NoError(t, m2.Remove(a.UID, false))
	_, ok = m2.Get(a.UID)
	assert.False(t, ok)

	assert.ErrorIs(t, m2.Remove("nope", false), ErrUnknownSchedule)
	assert.ErrorIs(t, m2.HarvestNow("nope", false, true), ErrUnknownSchedule)
}

func TestManagerHarvestNow(t *testing.T) {
	provider := &testProvider{records: oneRecord}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.StopAll()

	sh := &ScheduledHarvest{
		RepositoryName: "Test",
		BaseURL:        srv.URL,
		MetadataPrefix: "oai_dc",
		Interval:       time.Hour,
	}
	require.NoError(t, m.Add(sh))

	before := time.Now()
	require.NoError(t, m.HarvestNow(sh.UID, false, true))
	m.Wait()

	entries, err := m.Log().Query(sh.UID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusCompletedOK, entries[0].Status)
	assert.Equal(t, 1, entries[0].RecordCount)

	// The watermark is the start time of the successful run.
	got, ok := m.Get(sh.UID)
	require.True(t, ok)
	assert.False(t, got.LastHarvestTime.IsZero())
	assert.WithinDuration(t, before, got.LastHarvestTime, 10*time.Second)

	// The zip backup rotation installed the newest backup.
	assert.FileExists(t, filepath.Join(cfg.ZipDir, sh.DirName()+"_BackupOne.zip"))
	assert.Equal(t, filepath.Join(cfg.ZipDir, sh.DirName()+"_BackupOne.zip"), entries[0].ZipPath)
}

func TestManagerHarvestFailureLogged(t *testing.T) {
	provider := &testProvider{fail: true}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.StopAll()

	sh := &ScheduledHarvest{
		BaseURL:        srv.URL,
		MetadataPrefix: "oai_dc",
		Interval:       time.Hour,
	}
	require.NoError(t, m.Add(sh))

	require.NoError(t, m.HarvestNow(sh.UID, false, true))
	m.Wait()

	entries, err := m.Log().Query(sh.UID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusCompletedSeriousError, entries[0].Status)
	assert.NotEmpty(t, entries[0].Message)

	// A failed run must not advance the watermark.
	got, ok := m.Get(sh.UID)
	require.True(t, ok)
	assert.True(t, got.LastHarvestTime.IsZero())
}

func TestManagerNoRecordsMatchLogged(t *testing.T) {
	provider := &testProvider{oaiError: "noRecordsMatch"}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.StopAll()

	sh := &ScheduledHarvest{
		BaseURL:        srv.URL,
		MetadataPrefix: "oai_dc",
		Interval:       time.Hour,
	}
	require.NoError(t, m.Add(sh))

	require.NoError(t, m.HarvestNow(sh.UID, false, true))
	m.Wait()

	// An empty match is a provider-reported condition: the run is
	// logged as an OAI error, not as a success.
	entries, err := m.Log().Query(sh.UID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusCompletedOAIError, entries[0].Status)
	assert.Contains(t, entries[0].Message, "noRecordsMatch")

	// And the watermark must not advance.
	got, ok := m.Get(sh.UID)
	require.True(t, ok)
	assert.True(t, got.LastHarvestTime.IsZero())
}

func TestManagerHarvestNowFull(t *testing.T) {
	provider := &testProvider{records: oneRecord}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.StopAll()

	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sh := &ScheduledHarvest{
		BaseURL:         srv.URL,
		MetadataPrefix:  "oai_dc",
		Interval:        time.Hour,
		LastHarvestTime: watermark,
	}
	require.NoError(t, m.Add(sh))

	// A forced full harvest ignores the watermark.
	require.NoError(t, m.HarvestNow(sh.UID, true, false))
	m.Wait()

	reqs := provider.listRecordsRequests()
	require.Len(t, reqs, 1)
	assert.NotContains(t, reqs[0], "from=")

	// Without the flag the next run is incremental again.
	require.NoError(t, m.HarvestNow(sh.UID, false, true))
	m.Wait()

	reqs = provider.listRecordsRequests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1], "from=")
}

func TestManagerRemoveDeleteFiles(t *testing.T) {
	provider := &testProvider{records: oneRecord}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.StopAll()

	kept := &ScheduledHarvest{
		BaseURL:        srv.URL,
		MetadataPrefix: "oai_dc",
		Interval:       time.Hour,
	}
	wiped := &ScheduledHarvest{
		BaseURL:        srv.URL,
		MetadataPrefix: "nsdl_dc",
		Interval:       time.Hour,
	}
	require.NoError(t, m.Add(kept))
	require.NoError(t, m.Add(wiped))

	require.NoError(t, m.HarvestNow(kept.UID, false, true))
	require.NoError(t, m.HarvestNow(wiped.UID, false, true))
	m.Wait()

	keptDir := filepath.Join(cfg.HarvestDir, kept.DirName())
	wipedDir := filepath.Join(cfg.HarvestDir, wiped.DirName())
	keptZip := filepath.Join(cfg.ZipDir, kept.DirName()+"_BackupOne.zip")
	wipedZip := filepath.Join(cfg.ZipDir, wiped.DirName()+"_BackupOne.zip")
	require.DirExists(t, wipedDir)
	require.FileExists(t, wipedZip)

	require.NoError(t, m.Remove(wiped.UID, true))
	assert.NoDirExists(t, wipedDir)
	assert.NoFileExists(t, wipedZip)

	// Removing without deleteFiles leaves the records alone.
	require.NoError(t, m.Remove(kept.UID, false))
	assert.DirExists(t, keptDir)
	assert.FileExists(t, keptZip)
}

func TestManagerOneHarvestPerSchedule(t *testing.T) {
	provider := &testProvider{records: oneRecord, gate: make(chan struct{})}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.StopAll()

	sh := &ScheduledHarvest{
		BaseURL:        srv.URL,
		MetadataPrefix: "oai_dc",
		Interval:       time.Hour,
	}
	require.NoError(t, m.Add(sh))

	require.NoError(t, m.HarvestNow(sh.UID, false, true))
	require.Eventually(t, func() bool { return m.IsRunning(sh.UID) },
		5*time.Second, 10*time.Millisecond)

	// While the first harvest is blocked mid-page, a second request
	// for the same schedule is a no-op.
	require.NoError(t, m.HarvestNow(sh.UID, false, true))

	close(provider.gate)
	m.Wait()

	entries, err := m.Log().Query(sh.UID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.False(t, m.IsRunning(sh.UID))
}

func TestManagerOneTimeHarvest(t *testing.T) {
	provider := &testProvider{records: oneRecord}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.StopAll()

	id, err := m.OneTimeHarvest(&harvester.Request{
		BaseURL:        srv.URL,
		MetadataPrefix: "oai_dc",
		OutputDir:      filepath.Join(cfg.HarvestDir, "adhoc"),
	}, "Ad hoc")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m.Wait()

	entry, found, err := m.Log().Get(id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusCompletedOK, entry.Status)
	assert.Equal(t, 1, entry.RecordCount)
	assert.Empty(t, entry.ScheduleUID)
}
