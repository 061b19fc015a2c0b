package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds a single feed request.
const DefaultHTTPTimeout = 5 * time.Second

// NewHTTPClient returns a client whose requests give up after timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPOracle fetches quotes from a JSON rate endpoint accepting `from` and
// `to` query parameters and answering {"rate": "<decimal>", "timestamp": <unix>}.
type HTTPOracle struct {
	name     string
	client   HTTPDoer
	endpoint string
	apiKey   string
}

// NewHTTPOracle constructs an HTTP feed adapter. When the client is nil a
// client bounded by DefaultHTTPTimeout is used.
func NewHTTPOracle(name string, client HTTPDoer, endpoint, apiKey string) (*HTTPOracle, error) {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		return nil, fmt.Errorf("http oracle: endpoint required")
	}
	if client == nil {
		client = NewHTTPClient(DefaultHTTPTimeout)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "http"
	}
	return &HTTPOracle{name: name, client: client, endpoint: ep, apiKey: strings.TrimSpace(apiKey)}, nil
}

func (o *HTTPOracle) GetRate(base, quote string) (PriceQuote, error) {
	if o == nil {
		return PriceQuote{}, fmt.Errorf("http oracle not configured")
	}
	req, err := http.NewRequest(http.MethodGet, o.endpoint, nil)
	if err != nil {
		return PriceQuote{}, err
	}
	values := url.Values{}
	values.Set("from", normaliseSymbol(base))
	values.Set("to", normaliseSymbol(quote))
	req.URL.RawQuery = values.Encode()
	if o.apiKey != "" {
		req.Header.Set("x-api-key", o.apiKey)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return PriceQuote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PriceQuote{}, fmt.Errorf("%s oracle: status %d: %s", o.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Rate      string `json:"rate"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PriceQuote{}, fmt.Errorf("%s oracle: decode: %w", o.name, err)
	}
	rat, ok := new(big.Rat).SetString(strings.TrimSpace(payload.Rate))
	if !ok || rat.Sign() <= 0 {
		return PriceQuote{}, fmt.Errorf("%s oracle: invalid rate %q", o.name, payload.Rate)
	}
	return PriceQuote{Rate: rat, Timestamp: time.Unix(payload.Timestamp, 0), Source: o.name}, nil
}
