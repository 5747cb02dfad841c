// Package ticker resolves company names to exchange ticker symbols.
package ticker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound means the search returned no usable symbol.
	ErrNotFound = errors.New("ticker not found")

	// ErrUnavailable means the search API could not be reached or answered
	// with an error.
	ErrUnavailable = errors.New("ticker search unavailable")
)

type Resolver interface {
	Resolve(ctx context.Context, companyName string) (string, error)
}

type HTTPClient struct {
	searchURL  string
	suffix     string
	altSuffix  string
	httpClient *http.Client
}

// NewHTTPClient creates a resolver against a Yahoo-style search endpoint.
// Symbols are mapped onto suffix (for example ".NS"); symbols listed on the
// alternate exchange (for example ".BO") are rewritten to it.
func NewHTTPClient(searchURL, suffix, altSuffix string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		searchURL:  searchURL,
		suffix:     suffix,
		altSuffix:  altSuffix,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		Exchange  string `json:"exchange"`
	} `json:"quotes"`
}

func (c *HTTPClient) Resolve(ctx context.Context, companyName string) (string, error) {
	name := strings.TrimSpace(companyName)
	if name == "" {
		return "", fmt.Errorf("%w: empty company name", ErrNotFound)
	}

	u := c.searchURL + "?q=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: %d %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
	}

	for _, q := range sr.Quotes {
		if q.Symbol == "" {
			continue
		}
		return Normalize(q.Symbol, c.suffix, c.altSuffix), nil
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Normalize maps a search symbol onto the primary exchange suffix.
func Normalize(symbol, suffix, altSuffix string) string {
	if suffix == "" {
		return symbol
	}
	switch {
	case strings.HasSuffix(symbol, suffix):
		return symbol
	case altSuffix != "" && strings.HasSuffix(symbol, altSuffix):
		return strings.TrimSuffix(symbol, altSuffix) + suffix
	default:
		return symbol + suffix
	}
}
