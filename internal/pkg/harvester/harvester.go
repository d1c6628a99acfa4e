// Package harvester implements the OAI-PMH harvest engine: it walks a
// data provider's ListRecords pages, persists each record to disk, and
// reports progress and outcome through pluggable handlers.
package harvester

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlsciences/oaih/internal/pkg/log"
	"github.com/dlsciences/oaih/internal/pkg/oai"
	"github.com/dlsciences/oaih/internal/pkg/stats"
	"github.com/dlsciences/oaih/internal/utils"
)

var harvestCounter atomic.Int64

// newHarvestID returns an identifier unique within this process, made
// of the creation time in milliseconds and a monotonic counter.
func newHarvestID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), harvestCounter.Add(1))
}

// Harvester performs a single harvest. Instances are single use: once
// Run has been called, subsequent calls return ErrAlreadyHarvested.
type Harvester struct {
	id       string
	client   *oai.Client
	handler  MessageHandler
	listener ChangeListener
	logger   *log.FieldedLogger

	mu     sync.Mutex
	hasRun bool

	running *utils.TAtomBool
	killed  *utils.TAtomBool

	// memory accumulates records for in-memory harvests (no output
	// directory). Only touched from the harvesting goroutine.
	memory []MemoryRecord
}

// New returns a Harvester using the given client. A nil handler or
// listener is replaced with a no-op implementation.
func New(client *oai.Client, handler MessageHandler, listener ChangeListener) *Harvester {
	id := newHarvestID()
	if handler == nil {
		handler = NopMessageHandler{}
	}
	if listener == nil {
		listener = NopChangeListener{}
	}
	return &Harvester{
		id:       id,
		client:   client,
		handler:  handler,
		listener: listener,
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "harvester",
			"harvest":   id,
		}),
		running: new(utils.TAtomBool),
		killed:  new(utils.TAtomBool),
	}
}

// ID returns the harvest identifier.
func (h *Harvester) ID() string {
	return h.id
}

// IsRunning reports whether the harvest is currently in progress.
func (h *Harvester) IsRunning() bool {
	return h.running.Get()
}

// Kill asks a running harvest to stop. The harvest stops before the
// next page fetch or record, whichever comes first, and Run returns
// ErrKilled.
func (h *Harvester) Kill() {
	h.killed.Set(true)
}

// Run performs the harvest described by req. It blocks until the
// harvest completes, fails or is killed, and delivers exactly one
// terminal notification to the message handler before returning.
func (h *Harvester) Run(ctx context.Context, req *Request) (*Result, error) {
	h.mu.Lock()
	if h.hasRun {
		h.mu.Unlock()
		return nil, ErrAlreadyHarvested
	}
	h.hasRun = true
	h.mu.Unlock()

	h.running.Set(true)
	defer h.running.Set(false)

	stats.HarvestStarted()

	result, err := h.harvest(ctx, req)
	stats.HarvestFinished(err == nil)
	if err != nil {
		var oaiErr *oai.Error
		if errors.As(err, &oaiErr) {
			h.handler.OAIErrorMessage(oaiErr)
		} else {
			h.handler.ErrorMessage(err)
		}
		return nil, err
	}

	h.handler.CompletedMessage(result)
	return result, nil
}

func (h *Harvester) harvest(ctx context.Context, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	result := &Result{
		HarvestID: h.id,
		StartTime: time.Now(),
		OutputDir: req.OutputDir,
	}

	h.handler.StatusMessage("contacting the data provider at " + req.BaseURL)
	caps, err := h.client.Identify(ctx, req.BaseURL)
	if err != nil {
		return nil, err
	}

	harvestAll := req.HarvestAll
	if req.HarvestAllIfNoDeletedRecord && caps.DeletedRecordSupport == oai.DeletedRecordNo {
		h.logger.Info("provider does not support deleted records, harvesting all records")
		harvestAll = true
	}

	from, until := req.From, req.Until
	if harvestAll {
		from, until = time.Time{}, time.Time{}
		if req.OutputDir != "" {
			if err := os.RemoveAll(req.OutputDir); err != nil {
				return nil, newStorageError(req.OutputDir, err)
			}
		}
	}

	if req.OutputDir != "" {
		if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
			return nil, newStorageError(req.OutputDir, err)
		}
	}

	prefixes := []string{req.MetadataPrefix}
	if req.MetadataPrefix == "" {
		// No prefix means every format the provider offers.
		formats, err := h.client.ListMetadataFormats(ctx, req.BaseURL, "")
		if err != nil {
			return nil, err
		}
		if len(formats) == 0 {
			return nil, &oai.ProtocolError{Reason: "the provider offers no metadata formats"}
		}
		prefixes = prefixes[:0]
		for _, f := range formats {
			prefixes = append(prefixes, f.Prefix)
		}
	}

	h.handler.StatusMessage("harvesting records")
	for _, prefix := range prefixes {
		if err := h.harvestPrefix(ctx, req, caps, from, until, prefix, result); err != nil {
			return nil, err
		}
	}

	result.Records = h.memory

	if req.ZipOnCompletion {
		zipPath, err := h.zipOutput(req, result.StartTime)
		if err != nil {
			return nil, err
		}
		result.ZipPath = zipPath
	}

	result.EndTime = time.Now()
	return result, nil
}

// harvestPrefix walks the ListRecords pages for one metadata prefix.
// Pages are fetched strictly in order because every resumption token
// depends on the previous response.
func (h *Harvester) harvestPrefix(ctx context.Context, req *Request, caps *oai.Capabilities, from, until time.Time, prefix string, result *Result) error {
	pageURL := oai.ListRecordsURL(req.BaseURL, prefix, req.SetSpec, from, until, caps.Granularity)

	for page := 0; ; page++ {
		if h.killed.Get() {
			return ErrKilled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := h.client.GetDoc(ctx, pageURL)
		if err != nil {
			return err
		}
		stats.PageFetched()
		result.PageCount++

		records, token, err := h.extractPage(doc, page)
		if err != nil {
			// Every provider-reported error propagates, including
			// noRecordsMatch: the caller decides what an empty match
			// means for its run.
			return err
		}

		for i := range records {
			if h.killed.Get() {
				return ErrKilled
			}

			saved, deleted, err := h.processRecord(req, &records[i])
			if err != nil {
				return err
			}
			if deleted {
				result.DeletedCount++
				stats.RecordDeleted()
			} else if saved {
				result.RecordCount++
				stats.RecordSaved()
				if req.NotifyEvery > 0 && result.RecordCount%req.NotifyEvery == 0 {
					h.handler.ProgressMessage(result.RecordCount)
				}
			}
		}

		if token == "" {
			return nil
		}
		pageURL = oai.ResumptionURL(req.BaseURL, token)
	}
}

// extractPage pulls the records and resumption token out of a
// ListRecords response, accommodating protocol 1.x providers that put
// records at the envelope root or answer a no-match query with nothing
// but the request URL.
func (h *Harvester) extractPage(doc *oai.Response, page int) ([]oai.Record, string, error) {
	if err := doc.Err(); err != nil {
		return nil, "", err
	}

	if doc.ListRecords != nil {
		token := strings.TrimSpace(doc.ListRecords.ResumptionToken)
		if len(doc.ListRecords.Records) == 0 && token == "" && page == 0 {
			return nil, "", &oai.ProtocolError{Reason: "the ListRecords response contains no records and no error code"}
		}
		return doc.ListRecords.Records, token, nil
	}

	if len(doc.Records) > 0 {
		return doc.Records, "", nil
	}
	if doc.RequestURL != "" {
		// A 1.x provider signaling no matches.
		return nil, "", nil
	}

	return nil, "", &oai.ProtocolError{Reason: "the response contains no ListRecords element"}
}

func (h *Harvester) zipOutput(req *Request, start time.Time) (string, error) {
	zipDir := req.ZipDir
	if zipDir == "" {
		zipDir = filepath.Dir(req.OutputDir)
	}
	if err := os.MkdirAll(zipDir, 0755); err != nil {
		return "", newStorageError(zipDir, err)
	}

	name := fmt.Sprintf("%s-%s.zip", filepath.Base(req.OutputDir), zipTimestamp(start))
	zipPath := filepath.Join(zipDir, name)

	h.handler.StatusMessage("zipping harvested records to " + zipPath)
	if err := zipDirectory(req.OutputDir, zipPath); err != nil {
		return "", err
	}
	return zipPath, nil
}
