// Package manifest fetches the remote token list and looks tokens up by
// symbol.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is the public TIP-3 token list maintained by Broxus.
const DefaultURL = "https://raw.githubusercontent.com/broxus/ton-assets/master/manifest.json"

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 8 << 20
)

var (
	// ErrFetch covers transport failures, non-2xx answers and bodies that
	// are not JSON.
	ErrFetch = errors.New("manifest fetch failed")
	// ErrMalformed covers JSON documents that do not follow the manifest
	// schema.
	ErrMalformed = errors.New("malformed manifest")
)

// Entry is one token of the manifest. Only Symbol is required; the
// pointer fields are nil when absent from the document.
type Entry struct {
	Name     string  `json:"name,omitempty"`
	ChainID  *int64  `json:"chainId,omitempty"`
	Symbol   string  `json:"symbol"`
	Decimals *int    `json:"decimals,omitempty"`
	Address  *string `json:"address,omitempty"`
	LogoURI  string  `json:"logoURI,omitempty"`
	Version  *int    `json:"version,omitempty"`
	Verified *bool   `json:"verified,omitempty"`
	Vendor   string  `json:"vendor,omitempty"`
}

// Manifest is the decoded token list. Entries stay raw until Lookup
// matches one, so a malformed entry only fails lookups of its own symbol.
type Manifest struct {
	Name   string            `json:"name,omitempty"`
	Tokens []json.RawMessage `json:"tokens"`
}

// Lookup returns the first entry whose symbol equals symbol exactly.
// Entries without a string symbol are skipped. The matched entry must
// follow the schema, otherwise ErrMalformed is returned.
func (m *Manifest) Lookup(symbol string) (Entry, bool, error) {
	for i, raw := range m.Tokens {
		var head struct {
			Symbol json.RawMessage `json:"symbol"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			continue
		}
		var got string
		if err := json.Unmarshal(head.Symbol, &got); err != nil || got != symbol {
			continue
		}

		e, err := decodeEntry(raw)
		if err != nil {
			return Entry{}, true, fmt.Errorf("%w: tokens[%d] (%s): %v", ErrMalformed, i, symbol, err)
		}
		return e, true, nil
	}
	return Entry{}, false, nil
}

// decodeEntry reads a matched entry. Decimals and address must have the
// schema types; the descriptive fields are kept only when well-typed.
func decodeEntry(raw json.RawMessage) (Entry, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Entry{}, err
	}

	var e Entry
	_ = json.Unmarshal(fields["symbol"], &e.Symbol)
	if v, ok := fields["decimals"]; ok && string(v) != "null" {
		var d int
		if err := json.Unmarshal(v, &d); err != nil {
			return Entry{}, fmt.Errorf("field \"decimals\": expected integer, got %s", v)
		}
		e.Decimals = &d
	}
	if v, ok := fields["address"]; ok && string(v) != "null" {
		var a string
		if err := json.Unmarshal(v, &a); err != nil {
			return Entry{}, fmt.Errorf("field \"address\": expected string, got %s", v)
		}
		e.Address = &a
	}

	if v := optional[string](fields["name"]); v != nil {
		e.Name = *v
	}
	if v := optional[string](fields["logoURI"]); v != nil {
		e.LogoURI = *v
	}
	if v := optional[string](fields["vendor"]); v != nil {
		e.Vendor = *v
	}
	e.ChainID = optional[int64](fields["chainId"])
	e.Version = optional[int](fields["version"])
	e.Verified = optional[bool](fields["verified"])
	return e, nil
}

// optional decodes v, returning nil when it is absent, null or mistyped.
func optional[T any](v json.RawMessage) *T {
	if len(v) == 0 || string(v) == "null" {
		return nil
	}
	var out T
	if err := json.Unmarshal(v, &out); err != nil {
		return nil
	}
	return &out
}

// Client downloads manifests over HTTP.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient returns a client for url, falling back to DefaultURL.
func NewClient(url string, timeout time.Duration) *Client {
	url = strings.TrimSpace(url)
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads and decodes the manifest. Nothing is cached.
func (c *Client) Fetch(ctx context.Context) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, c.URL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, c.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrFetch, c.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: http %d", ErrFetch, c.URL, resp.StatusCode)
	}

	m, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.URL, err)
	}
	return m, nil
}

// Decode parses a manifest document and checks its outer shape. Token
// entries are validated by Lookup.
func Decode(body []byte) (*Manifest, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrFetch)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrMalformed)
	}
	rawTokens, ok := doc["tokens"]
	if !ok || string(rawTokens) == "null" {
		return nil, fmt.Errorf("%w: missing tokens array", ErrMalformed)
	}

	var m Manifest
	if err := json.Unmarshal(rawTokens, &m.Tokens); err != nil {
		return nil, fmt.Errorf("%w: tokens is not an array", ErrMalformed)
	}
	if rawName, ok := doc["name"]; ok {
		// The list name is informational only.
		_ = json.Unmarshal(rawName, &m.Name)
	}
	return &m, nil
}
