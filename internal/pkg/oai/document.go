package oai

import (
	"fmt"
	"strings"
)

// Response is the OAI-PMH response envelope. Exactly one of the verb
// payloads is set on a well-formed 2.0 response; the extra root-level
// fields capture the places where 1.x providers put things.
type Response struct {
	ResponseDate string `xml:"responseDate"`

	Error               []ResponseError      `xml:"error"`
	Identify            *Identify            `xml:"Identify"`
	ListMetadataFormats *ListMetadataFormats `xml:"ListMetadataFormats"`
	ListRecords         *ListRecords         `xml:"ListRecords"`

	// Protocol 1.x providers report the version at the envelope root
	// and may answer a no-match ListRecords with nothing but the
	// request URL.
	ProtocolVersion string   `xml:"protocolVersion"`
	RequestURL      string   `xml:"requestURL"`
	Records         []Record `xml:"record"`
}

// ResponseError is an <error> element of the envelope.
type ResponseError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// Err converts the envelope's error elements, if any, into an *Error.
// Multiple error elements are folded into one message.
func (r *Response) Err() error {
	if len(r.Error) == 0 {
		return nil
	}
	if len(r.Error) == 1 {
		return &Error{Code: r.Error[0].Code, Message: strings.TrimSpace(r.Error[0].Message)}
	}

	var msgs []string
	for _, e := range r.Error {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Code, strings.TrimSpace(e.Message)))
	}
	return &Error{Code: r.Error[0].Code, Message: strings.Join(msgs, "; ")}
}

// Identify is the payload of an Identify response.
type Identify struct {
	RepositoryName    string   `xml:"repositoryName"`
	BaseURL           string   `xml:"baseURL"`
	ProtocolVersion   string   `xml:"protocolVersion"`
	AdminEmail        []string `xml:"adminEmail"`
	EarliestDatestamp string   `xml:"earliestDatestamp"`
	DeletedRecord     string   `xml:"deletedRecord"`
	Granularity       string   `xml:"granularity"`
	Compression       []string `xml:"compression"`
}

// ListMetadataFormats is the payload of a ListMetadataFormats response.
type ListMetadataFormats struct {
	Formats []MetadataFormat `xml:"metadataFormat"`
}

// MetadataFormat describes one metadata format offered by a provider.
type MetadataFormat struct {
	Prefix    string `xml:"metadataPrefix"`
	Schema    string `xml:"schema"`
	Namespace string `xml:"metadataNamespace"`
}

// ListRecords is the payload of a ListRecords response. The
// resumption token carries flow control: a non-empty value means more
// pages follow.
type ListRecords struct {
	Records         []Record `xml:"record"`
	ResumptionToken string   `xml:"resumptionToken"`
}

// Record is one <record> element. Metadata is kept verbatim so the
// provider's payload reaches disk byte for byte.
type Record struct {
	Header   RecordHeader `xml:"header"`
	Metadata *Metadata    `xml:"metadata"`
	About    []Metadata   `xml:"about"`
}

// RecordHeader is the <header> of a record. Raw holds the header's
// inner XML verbatim for header-file output.
type RecordHeader struct {
	Status     string   `xml:"status,attr"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpec    []string `xml:"setSpec"`
	Raw        string   `xml:",innerxml"`
}

// Deleted reports whether the record carries a deleted status.
func (h *RecordHeader) Deleted() bool {
	return strings.EqualFold(h.Status, "deleted")
}

// XML rebuilds the full <header> element, including the status
// attribute, around the verbatim inner content.
func (h *RecordHeader) XML() string {
	if h.Status != "" {
		return fmt.Sprintf("<header status=%q>%s</header>", h.Status, h.Raw)
	}
	return fmt.Sprintf("<header>%s</header>", h.Raw)
}

// Metadata is the verbatim content of a <metadata> or <about> element.
type Metadata struct {
	Raw string `xml:",innerxml"`
}

// Content returns the metadata payload with surrounding whitespace
// stripped, ready to be written to disk.
func (m *Metadata) Content() string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.Raw)
}
