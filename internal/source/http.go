package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/roach88/sift/internal/ir"
)

// DefaultTimeout bounds one upstream fetch when the caller supplies no
// client of its own.
const DefaultTimeout = 10 * time.Second

// HTTP fetches candidate records from a JSON endpoint.
//
// The response may be either a bare array of records or an object with an
// `items` array (the common listings-API envelope). Anything else fails
// the fetch; the upstream wire format beyond this envelope is not modeled
// here.
type HTTP struct {
	URL    string
	Params url.Values // Optional query parameters (search text, salary, ...)
	Map    MapFunc

	HTTPClient *http.Client
}

type itemsEnvelope struct {
	Items []map[string]any `json:"items"`
}

// Fetch performs one bounded-time GET and maps the decoded records.
func (h HTTP) Fetch(ctx context.Context) ([]ir.Fact, error) {
	if h.URL == "" {
		return nil, fmt.Errorf("http source: URL required")
	}

	target := h.URL
	if len(h.Params) > 0 {
		u, err := url.Parse(h.URL)
		if err != nil {
			return nil, fmt.Errorf("http source: parse URL: %w", err)
		}
		q := u.Query()
		for k, vs := range h.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http source: unexpected status %s", resp.Status)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("http source: decode body: %w", err)
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}

	out := make([]ir.Fact, 0, len(records))
	for i, rec := range records {
		fact, err := h.Map(rec)
		if err != nil {
			return nil, fmt.Errorf("http source: record %d: %w", i, err)
		}
		out = append(out, fact)
	}
	return out, nil
}

func decodeRecords(raw json.RawMessage) ([]map[string]any, error) {
	trimmed := []byte(raw)
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\n' || trimmed[0] == '\t' || trimmed[0] == '\r') {
		trimmed = trimmed[1:]
	}
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	// UseNumber keeps integers exact; plain decoding would hand the fact
	// layer float64s, which it rejects.
	switch trimmed[0] {
	case '[':
		var records []map[string]any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode record array: %w", err)
		}
		return records, nil
	case '{':
		var env itemsEnvelope
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&env); err != nil {
			return nil, fmt.Errorf("decode items envelope: %w", err)
		}
		return env.Items, nil
	default:
		return nil, fmt.Errorf("response is neither array nor object")
	}
}

func (h HTTP) httpClient() *http.Client {
	if h.HTTPClient != nil {
		return h.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}
