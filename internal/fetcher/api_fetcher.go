package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rivalwatch/internal/constants"
	"rivalwatch/internal/monitoring"
)

// APIFetcher queries a shopping search API that answers with a JSON list
// of items in relevance order.
type APIFetcher struct {
	client  *http.Client
	baseURL string
	headers map[string]string
	display int
	now     func() time.Time
}

type APIFetcherConfig struct {
	BaseURL string
	Headers map[string]string
	Display int
	Timeout time.Duration
}

type searchResponse struct {
	Total int          `json:"total"`
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Image     string `json:"image"`
	LowPrice  string `json:"lprice"`
	MallName  string `json:"mallName"`
	ProductID string `json:"productId"`
	Brand     string `json:"brand"`
	Maker     string `json:"maker"`
	// Some gateways enrich items with a review count.
	ReviewCount int `json:"reviewCount"`
}

func NewAPIFetcher(cfg APIFetcherConfig) *APIFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	display := cfg.Display
	if display <= 0 {
		display = 40
	}
	return &APIFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		headers: cfg.Headers,
		display: display,
		now:     time.Now,
	}
}

func (f *APIFetcher) FetchListing(ctx context.Context, keyword, competitor string) (*monitoring.ProductSnapshot, error) {
	endpoint, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("invalid base url: %w", err)}
	}
	q := endpoint.Query()
	q.Set("query", keyword+" "+competitor)
	q.Set("display", strconv.Itoa(f.display))
	q.Set("start", "1")
	q.Set("sort", "sim")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyStatus(resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	snap := &monitoring.ProductSnapshot{
		Competitor: competitor,
		CapturedAt: f.now().UTC(),
		Products:   []monitoring.CompetitorProduct{},
		Provenance: monitoring.ProvenanceUpstream,
	}
	seen := make(map[string]bool)
	for i, item := range body.Items {
		if !matchesCompetitor(competitor, item.MallName, item.Brand, item.Maker) {
			continue
		}
		id := item.ProductID
		if id == "" {
			id = derivedProductID(item.Link, stripTags(item.Title))
		}
		if id == "" {
			continue
		}
		id = "naver-" + id
		if seen[id] {
			continue
		}
		seen[id] = true

		price, _ := parseNumber(item.LowPrice)
		snap.Products = append(snap.Products, monitoring.CompetitorProduct{
			ProductID: id,
			Name:      stripTags(item.Title),
			Price:     price,
			Reviews:   max(item.ReviewCount, 0),
			Rank:      i + 1,
			Image:     item.Image,
			URL:       item.Link,
		})
	}

	return snap, nil
}

// stripTags drops the highlight markup the search API wraps matches in.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return &PermanentError{Err: err}
	}
	// Timeouts, resets and DNS failures are all worth another try.
	return &TransientError{Err: err}
}
