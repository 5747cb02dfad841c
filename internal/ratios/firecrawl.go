package ratios

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

// IndicatorRowSelector restricts a Firecrawl scrape to the ratio table rows.
const IndicatorRowSelector = ".indicators-table_row__Q16TJ"

// FirecrawlFetcher scrapes the ratios page through the Firecrawl API, which
// returns the selected rows as a markdown table.
type FirecrawlFetcher struct {
	baseURL     string
	apiKey      string
	urlTemplate string
	httpClient  *http.Client
	markdown    goldmark.Markdown
}

func NewFirecrawlFetcher(baseURL, apiKey, urlTemplate string, timeout time.Duration) *FirecrawlFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FirecrawlFetcher{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		urlTemplate: urlTemplate,
		httpClient:  &http.Client{Timeout: timeout},
		markdown:    goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

func (f *FirecrawlFetcher) Name() string { return "firecrawl" }

type scrapeRequest struct {
	URL         string   `json:"url"`
	Formats     []string `json:"formats"`
	IncludeTags []string `json:"includeTags"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

func (f *FirecrawlFetcher) FetchRatios(ctx context.Context, c Company) (scoring.Record, error) {
	pageURL := PageURL(f.urlTemplate, c)
	payload, err := json.Marshal(scrapeRequest{
		URL:         pageURL,
		Formats:     []string{"markdown"},
		IncludeTags: []string{IndicatorRowSelector},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", f.baseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: firecrawl: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: firecrawl: %d %s", ErrSourceUnavailable, resp.StatusCode, string(body))
	}

	var sr scrapeResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: firecrawl: decode: %w", ErrSourceUnavailable, err)
	}
	if !sr.Success {
		return nil, fmt.Errorf("%w: firecrawl: %s", ErrSourceUnavailable, sr.Error)
	}

	rec, err := f.parseMarkdown(sr.Data.Markdown)
	if err != nil {
		return nil, fmt.Errorf("%w: firecrawl: %w", ErrSourceUnavailable, err)
	}
	if len(rec) == 0 {
		return nil, fmt.Errorf("%w: no ratio rows on %s", ErrCompanyNotFound, pageURL)
	}
	return rec, nil
}

// parseMarkdown renders the markdown table rows to HTML and reads them like
// a scraped page.
func (f *FirecrawlFetcher) parseMarkdown(md string) (scoring.Record, error) {
	var html bytes.Buffer
	if err := f.markdown.Convert([]byte(tableMarkdown(md)), &html); err != nil {
		return nil, err
	}
	return parseRatioRows(&html)
}

// tableMarkdown keeps the pipe-table lines of md. Selected rows arrive
// without a header, so one is added when the delimiter row is missing.
func tableMarkdown(md string) string {
	var rows []string
	hasDelimiter := false
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		if isDelimiterRow(line) {
			hasDelimiter = true
		}
		rows = append(rows, line)
	}
	if len(rows) == 0 {
		return ""
	}
	if !hasDelimiter {
		cols := strings.Count(strings.Trim(rows[0], "|"), "|") + 1
		header := "|" + strings.Repeat(" col |", cols)
		delim := "|" + strings.Repeat(" --- |", cols)
		rows = append([]string{header, delim}, rows...)
	}
	return strings.Join(rows, "\n") + "\n"
}

func isDelimiterRow(line string) bool {
	trimmed := strings.Trim(line, "| ")
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		switch r {
		case '-', ':', '|', ' ':
		default:
			return false
		}
	}
	return true
}
