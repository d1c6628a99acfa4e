package harvester

import (
	"time"

	"github.com/dlsciences/oaih/internal/pkg/log"
	"github.com/dlsciences/oaih/internal/pkg/oai"
)

// MemoryRecord is one harvested record of an in-memory harvest.
// Content is empty for deleted records.
type MemoryRecord struct {
	ID      string
	Content string
	Deleted bool
}

// Result summarizes a finished harvest. Records is populated only for
// in-memory harvests, in provider order.
type Result struct {
	HarvestID    string
	RecordCount  int
	DeletedCount int
	PageCount    int
	StartTime    time.Time
	EndTime      time.Time
	OutputDir    string
	ZipPath      string
	Records      []MemoryRecord
}

// MessageHandler receives lifecycle notifications from a running
// harvest. Exactly one of CompletedMessage, ErrorMessage or
// OAIErrorMessage is delivered per harvest, as the terminal event.
type MessageHandler interface {
	// StatusMessage reports informational progress milestones.
	StatusMessage(msg string)

	// ProgressMessage reports the running record count.
	ProgressMessage(recordCount int)

	// ErrorMessage reports a fatal internal error: transport,
	// parsing, storage or configuration.
	ErrorMessage(err error)

	// OAIErrorMessage reports a fatal protocol error sent by the data
	// provider itself.
	OAIErrorMessage(oaiErr *oai.Error)

	// CompletedMessage reports successful completion.
	CompletedMessage(result *Result)
}

// LogMessageHandler is a MessageHandler that writes every notification
// to the log, tagged with the harvest ID.
type LogMessageHandler struct {
	logger *log.FieldedLogger
}

// NewLogMessageHandler returns a LogMessageHandler whose entries are
// tagged with the given label, typically a schedule UID or repository
// name.
func NewLogMessageHandler(label string) *LogMessageHandler {
	return &LogMessageHandler{
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "harvester",
			"harvest":   label,
		}),
	}
}

func (h *LogMessageHandler) StatusMessage(msg string) {
	h.logger.Info(msg)
}

func (h *LogMessageHandler) ProgressMessage(recordCount int) {
	h.logger.Info("harvest in progress", "records", recordCount)
}

func (h *LogMessageHandler) ErrorMessage(err error) {
	h.logger.Error("harvest failed", "err", err.Error())
}

func (h *LogMessageHandler) OAIErrorMessage(oaiErr *oai.Error) {
	h.logger.Error("harvest failed with an OAI error", "code", oaiErr.Code, "message", oaiErr.Message)
}

func (h *LogMessageHandler) CompletedMessage(result *Result) {
	h.logger.Info("harvest completed",
		"records", result.RecordCount,
		"deleted", result.DeletedCount,
		"pages", result.PageCount,
		"duration", result.EndTime.Sub(result.StartTime).String())
}

// NopMessageHandler discards all notifications.
type NopMessageHandler struct{}

func (NopMessageHandler) StatusMessage(string)       {}
func (NopMessageHandler) ProgressMessage(int)        {}
func (NopMessageHandler) ErrorMessage(error)         {}
func (NopMessageHandler) OAIErrorMessage(*oai.Error) {}
func (NopMessageHandler) CompletedMessage(*Result)   {}
