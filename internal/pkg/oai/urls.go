package oai

import (
	"net/url"
	"time"
)

// IdentifyURL builds the Identify request URL for a base URL.
func IdentifyURL(baseURL string) string {
	return buildURL(baseURL, url.Values{"verb": {"Identify"}})
}

// ListMetadataFormatsURL builds the ListMetadataFormats request URL.
// If identifier is non-empty the formats available for that item are
// requested instead of the repository-wide list.
func ListMetadataFormatsURL(baseURL, identifier string) string {
	v := url.Values{"verb": {"ListMetadataFormats"}}
	if identifier != "" {
		v.Set("identifier", identifier)
	}
	return buildURL(baseURL, v)
}

// ListRecordsURL builds the initial ListRecords request URL. Zero
// from/until times are omitted; set may be empty for a full harvest.
func ListRecordsURL(baseURL, prefix, set string, from, until time.Time, g Granularity) string {
	v := url.Values{
		"verb":           {"ListRecords"},
		"metadataPrefix": {prefix},
	}
	if set != "" {
		v.Set("set", set)
	}
	if !from.IsZero() {
		v.Set("from", g.FormatTime(from))
	}
	if !until.IsZero() {
		v.Set("until", g.FormatTime(until))
	}
	return buildURL(baseURL, v)
}

// ResumptionURL builds the follow-up ListRecords request for a
// resumption token. Per the protocol the token is an exclusive
// argument, so nothing else is carried over.
func ResumptionURL(baseURL, token string) string {
	return buildURL(baseURL, url.Values{
		"verb":            {"ListRecords"},
		"resumptionToken": {token},
	})
}

func buildURL(baseURL string, v url.Values) string {
	return baseURL + "?" + v.Encode()
}
