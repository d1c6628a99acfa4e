package oai

import "fmt"

// Error is an OAI-PMH protocol-level error reported by the data
// provider inside a valid response (e.g. noRecordsMatch,
// badResumptionToken). It is distinct from transport and parsing
// failures so that callers can tell "the provider said no" from "we
// could not talk to the provider".
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("OAI error (%s): %s", e.Code, e.Message)
}

// ProtocolError indicates a structurally invalid response from the
// data provider: missing required elements, unrecognized enum values,
// or XML that does not parse.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return e.Reason
}

// TransportError indicates a network-level failure reaching the data
// provider, including non-200 HTTP responses.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request for %q failed: %s", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError indicates the data provider did not answer within the
// configured timeout. Kept separate from TransportError because it is
// commonly transient and worth retrying on the next scheduled cycle.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request for %q timed out: %s", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
