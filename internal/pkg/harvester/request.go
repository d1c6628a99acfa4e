package harvester

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
)

// Request describes a single harvest.
type Request struct {
	// BaseURL is the data provider's OAI-PMH base URL.
	BaseURL string

	// MetadataPrefix selects the metadata format to harvest. Empty
	// means every format the provider offers, discovered via
	// ListMetadataFormats and harvested sequentially.
	MetadataPrefix string

	// SetSpec optionally restricts the harvest to one set.
	SetSpec string

	// From and Until optionally bound the harvest by datestamp. Zero
	// values are omitted from the request.
	From  time.Time
	Until time.Time

	// OutputDir is where harvested records are written. Empty means
	// the harvest runs in memory only, with records reported solely
	// through the ChangeListener.
	OutputDir string

	// HarvestAll requests a full harvest: From and Until are cleared
	// and OutputDir is deleted before harvesting so that records
	// removed upstream do not linger.
	HarvestAll bool

	// HarvestAllIfNoDeletedRecord upgrades the harvest to a full one
	// when the provider declares no deleted-record support. Without
	// deletion signaling, an incremental harvest can never learn that
	// a record went away.
	HarvestAllIfNoDeletedRecord bool

	// SplitBySet writes each record into one subdirectory per setSpec
	// it belongs to. Records without a setSpec go into a subdirectory
	// for the empty set.
	SplitBySet bool

	// WriteHeaders additionally writes each record's OAI header to a
	// sibling file.
	WriteHeaders bool

	// ZipOnCompletion zips OutputDir into ZipDir once the harvest
	// completes successfully.
	ZipOnCompletion bool
	ZipDir          string

	// NotifyEvery controls how often progress messages are emitted,
	// in records. Zero or negative disables progress messages.
	NotifyEvery int
}

func (r *Request) validate() error {
	if !strings.HasPrefix(r.BaseURL, "http://") && !strings.HasPrefix(r.BaseURL, "https://") {
		return &ConfigError{Reason: "the baseURL must start with http:// or https://: " + r.BaseURL}
	}
	if !govalidator.IsURL(r.BaseURL) {
		return &ConfigError{Reason: "the baseURL is missing or invalid: " + r.BaseURL}
	}
	if !r.From.IsZero() && !r.Until.IsZero() && r.Until.Before(r.From) {
		return &ConfigError{Reason: "the until date must not precede the from date"}
	}
	if r.ZipOnCompletion && r.OutputDir == "" {
		return &ConfigError{Reason: "zip on completion requires an output directory"}
	}
	return nil
}
