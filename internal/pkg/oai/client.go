// Package oai implements the data-consumer side of the OAI-PMH
// protocol: request URL construction, response parsing, and the
// protocol's datestamp and deleted-record vocabularies. It supports
// providers speaking protocol 2.0 as well as the 1.x quirks still
// found in the wild.
package oai

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
)

const userAgent = "oaih (OAI-PMH harvester)"

// Client issues OAI-PMH requests and decodes the responses.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a Client whose requests time out after the given
// duration. A zero timeout means no timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetDoc fetches rawURL and decodes the OAI-PMH envelope. Protocol
// errors reported by the provider are NOT turned into Go errors here;
// callers inspect Response.Err() once they have looked at the parts of
// the envelope they need.
func (c *Client) GetDoc(ctx context.Context, rawURL string) (*Response, error) {
	if !govalidator.IsURL(rawURL) {
		return nil, &ProtocolError{Reason: fmt.Sprintf("invalid request URL: %s", rawURL)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: rawURL, Err: err}
		}
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{URL: rawURL, Err: fmt.Errorf("server returned status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: rawURL, Err: err}
		}
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	var doc Response
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("unable to parse response from %s: %s", rawURL, err)}
	}

	return &doc, nil
}

// Identify fetches and validates the Identify response of a provider,
// returning its harvesting-relevant capabilities. Providers reporting
// a 1.x protocol version at the envelope root are accepted with day
// granularity and no deleted-record support, since those protocol
// versions declared neither.
func (c *Client) Identify(ctx context.Context, baseURL string) (*Capabilities, error) {
	doc, err := c.GetDoc(ctx, IdentifyURL(baseURL))
	if err != nil {
		return nil, err
	}
	if err := doc.Err(); err != nil {
		return nil, err
	}

	if doc.Identify == nil {
		if doc.ProtocolVersion != "" {
			return &Capabilities{
				Granularity:          GranularityDay,
				DeletedRecordSupport: DeletedRecordNo,
			}, nil
		}
		return nil, &ProtocolError{Reason: fmt.Sprintf("Identify response from %s has no Identify element", baseURL)}
	}

	caps := &Capabilities{}
	caps.Granularity, err = ParseGranularity(doc.Identify.Granularity)
	if err != nil {
		return nil, err
	}
	caps.DeletedRecordSupport, err = ParseDeletedRecordSupport(doc.Identify.DeletedRecord)
	if err != nil {
		return nil, err
	}
	return caps, nil
}

// ListMetadataFormats fetches the metadata formats offered by a
// provider. Prefixes containing ":" are normalized to "/", matching
// how 1.x providers spelled nested prefixes.
func (c *Client) ListMetadataFormats(ctx context.Context, baseURL, identifier string) ([]MetadataFormat, error) {
	doc, err := c.GetDoc(ctx, ListMetadataFormatsURL(baseURL, identifier))
	if err != nil {
		return nil, err
	}
	if err := doc.Err(); err != nil {
		return nil, err
	}
	if doc.ListMetadataFormats == nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("ListMetadataFormats response from %s has no formats element", baseURL)}
	}

	formats := doc.ListMetadataFormats.Formats
	for i := range formats {
		formats[i].Prefix = normalizePrefix(formats[i].Prefix)
	}
	return formats, nil
}

func normalizePrefix(prefix string) string {
	out := make([]byte, len(prefix))
	for i := 0; i < len(prefix); i++ {
		if prefix[i] == ':' {
			out[i] = '/'
		} else {
			out[i] = prefix[i]
		}
	}
	return string(out)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
