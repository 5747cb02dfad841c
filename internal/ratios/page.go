package ratios

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

// PageFetcher scrapes a public ratios page. The URL template may contain
// {slug} (hyphenated lower-case company name) and {ticker}.
type PageFetcher struct {
	urlTemplate string
	httpClient  *http.Client
}

func NewPageFetcher(urlTemplate string, timeout time.Duration) *PageFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PageFetcher{
		urlTemplate: urlTemplate,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (f *PageFetcher) Name() string { return "page" }

func (f *PageFetcher) FetchRatios(ctx context.Context, c Company) (scoring.Record, error) {
	pageURL := PageURL(f.urlTemplate, c)

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "text/html")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, pageURL)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: %d %s", ErrSourceUnavailable, pageURL, resp.StatusCode, string(body))
	}

	rec, err := parseRatioRows(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, pageURL, err)
	}
	if len(rec) == 0 {
		return nil, fmt.Errorf("%w: no ratio rows on %s", ErrCompanyNotFound, pageURL)
	}
	return rec, nil
}

// PageURL expands a ratios page URL template for c.
func PageURL(template string, c Company) string {
	return strings.NewReplacer("{slug}", Slug(c.Name), "{ticker}", c.Ticker).Replace(template)
}

// parseRatioRows reads an HTML document and collects every table row whose
// first cell is a ratio label. The company value is the second cell; later
// cells (industry averages) are ignored.
func parseRatioRows(r io.Reader) (scoring.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	acc := newCollector()
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		label := strings.TrimSpace(cells.Eq(0).Text())
		value := strings.TrimSpace(cells.Eq(1).Text())
		_ = acc.add(label, value, false)
	})
	return acc.rec, nil
}
