package raffle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/matrixise/tip3-raffle/internal/blockchain"
)

// ErrMalformedInput is returned for scan requests that do not follow the
// request schema.
var ErrMalformedInput = errors.New("malformed input")

const maxRequestSize = 16 << 20

// Filter selects the token and the inclusive balance threshold.
type Filter struct {
	Symbol      string          `json:"symbol,omitempty" validate:"required_without=RootAddress"`
	RootAddress string          `json:"rootAddress,omitempty" validate:"omitempty,ever_addr"`
	Balance     decimal.Decimal `json:"balance"`
}

// Request is one raffle: a token filter and the ordered addresses to
// scan. Duplicates are kept and scanned independently.
type Request struct {
	Filter Filter   `json:"filter"`
	List   []string `json:"list" validate:"required,dive,ever_addr"`
}

// TokenIdentifier is the symbol when set, the root address otherwise.
func (r Request) TokenIdentifier() string {
	if r.Filter.Symbol != "" {
		return r.Filter.Symbol
	}
	return r.Filter.RootAddress
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("ever_addr", func(fl validator.FieldLevel) bool {
		return blockchain.IsAddress(fl.Field().String())
	})
	return v
}

// Validate checks field presence and address syntax.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return nil
}

type wireRequest struct {
	Filter *struct {
		Symbol      *string         `json:"symbol"`
		RootAddress *string         `json:"rootAddress"`
		Balance     json.RawMessage `json:"balance"`
	} `json:"filter"`
	List []string `json:"list"`
}

// DecodeRequest parses and validates a JSON scan request of the form
// {"filter": {"symbol"|"rootAddress", "balance"}, "list": [...]}.
func DecodeRequest(r io.Reader) (Request, error) {
	var w wireRequest
	dec := json.NewDecoder(io.LimitReader(r, maxRequestSize))
	if err := dec.Decode(&w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Request{}, fmt.Errorf("%w: field %q: expected %s, got %s", ErrMalformedInput, typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if w.Filter == nil {
		return Request{}, fmt.Errorf("%w: missing filter", ErrMalformedInput)
	}

	threshold, err := parseThreshold(w.Filter.Balance)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		Filter: Filter{Balance: threshold},
		List:   w.List,
	}
	if w.Filter.Symbol != nil {
		req.Filter.Symbol = *w.Filter.Symbol
	}
	if w.Filter.RootAddress != nil {
		req.Filter.RootAddress = *w.Filter.RootAddress
	}

	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// parseThreshold accepts only JSON numbers, not numeric strings.
func parseThreshold(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Decimal{}, fmt.Errorf("%w: missing filter.balance", ErrMalformedInput)
	}
	if raw[0] == '"' {
		return decimal.Decimal{}, fmt.Errorf("%w: filter.balance must be a number", ErrMalformedInput)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: filter.balance must be a number", ErrMalformedInput)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: filter.balance: %v", ErrMalformedInput, err)
	}
	return d, nil
}

// LoadRequest reads a request from a file path, "-" for stdin, or an
// http(s) URL.
func LoadRequest(ctx context.Context, source string, client *http.Client) (Request, error) {
	var body io.ReadCloser

	switch {
	case source == "":
		return Request{}, fmt.Errorf("no scan request given")
	case source == "-":
		body = io.NopCloser(os.Stdin)
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		if client == nil {
			client = &http.Client{Timeout: 30 * time.Second}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return Request{}, fmt.Errorf("load request %s: %w", source, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return Request{}, fmt.Errorf("load request %s: %w", source, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return Request{}, fmt.Errorf("load request %s: http %d", source, resp.StatusCode)
		}
		body = resp.Body
	default:
		f, err := os.Open(source)
		if err != nil {
			return Request{}, fmt.Errorf("load request: %w", err)
		}
		body = f
	}
	defer body.Close()

	req, err := DecodeRequest(body)
	if err != nil {
		return Request{}, fmt.Errorf("%s: %w", source, err)
	}
	return req, nil
}
