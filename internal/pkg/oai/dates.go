package oai

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the datestamp granularity supported by a data
// provider, discovered via Identify.
type Granularity int

const (
	GranularityDay Granularity = iota + 1
	GranularitySecond
)

const (
	dayLayout    = "2006-01-02"
	secondLayout = "2006-01-02T15:04:05Z"
)

// ParseGranularity parses the <granularity> element of an Identify
// response. Only the two values of the OAI protocol are accepted.
func ParseGranularity(s string) (Granularity, error) {
	switch {
	case s == "YYYY-MM-DD":
		return GranularityDay, nil
	case strings.EqualFold(s, "yyyy-mm-ddthh:mm:ssz"):
		return GranularitySecond, nil
	default:
		return 0, &ProtocolError{Reason: fmt.Sprintf("provider supports an invalid granularity according to the OAI protocol. Invalid response: %s", s)}
	}
}

func (g Granularity) String() string {
	switch g {
	case GranularityDay:
		return "days"
	case GranularitySecond:
		return "seconds"
	default:
		return ""
	}
}

// FormatTime formats a timestamp as specified in section 3.3 of the
// OAI protocol, honoring the provider's granularity. Second
// granularity is always expressed in UTC.
func (g Granularity) FormatTime(t time.Time) string {
	if g == GranularitySecond {
		return t.UTC().Format(secondLayout)
	}
	return t.Format(dayLayout)
}

// ParseTime parses an OAI datestamp in either granularity. A value
// containing ":" is assumed to carry seconds.
func ParseTime(s string) (time.Time, error) {
	if strings.Contains(s, ":") {
		return time.Parse(secondLayout, strings.ToUpper(s))
	}
	return time.Parse(dayLayout, s)
}

// DeletedRecordSupport is the level of deleted-record support declared
// by a data provider.
type DeletedRecordSupport int

const (
	DeletedRecordNo DeletedRecordSupport = iota + 1
	DeletedRecordTransient
	DeletedRecordPersistent
)

// ParseDeletedRecordSupport parses the <deletedRecord> element of an
// Identify response.
func ParseDeletedRecordSupport(s string) (DeletedRecordSupport, error) {
	switch strings.ToLower(s) {
	case "no":
		return DeletedRecordNo, nil
	case "transient":
		return DeletedRecordTransient, nil
	case "persistent":
		return DeletedRecordPersistent, nil
	default:
		return 0, &ProtocolError{Reason: fmt.Sprintf("provider shows an invalid deleted record support according to the OAI protocol. Invalid response: %s", s)}
	}
}

func (d DeletedRecordSupport) String() string {
	switch d {
	case DeletedRecordNo:
		return "no"
	case DeletedRecordTransient:
		return "transient"
	case DeletedRecordPersistent:
		return "persistent"
	default:
		return ""
	}
}

// Capabilities are the provider properties a harvest needs to know
// before issuing any ListRecords request.
type Capabilities struct {
	Granularity          Granularity
	DeletedRecordSupport DeletedRecordSupport
}
