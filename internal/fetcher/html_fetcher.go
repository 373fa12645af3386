package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rivalwatch/internal/constants"
	"rivalwatch/internal/monitoring"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// HTMLSelectors locate the parts of one listing card. Item must carry the
// product id in the data-product-id attribute.
type HTMLSelectors struct {
	Item    string
	Name    string
	Price   string
	Reviews string
	Seller  string
	Image   string
	Link    string
}

func DefaultHTMLSelectors() HTMLSelectors {
	return HTMLSelectors{
		Item:    "[data-product-id]",
		Name:    ".product-name",
		Price:   ".product-price",
		Reviews: ".product-reviews",
		Seller:  ".product-mall",
		Image:   "img",
		Link:    "a",
	}
}

// HTMLFetcher scrapes a search result page when no JSON API is available.
type HTMLFetcher struct {
	client    *http.Client
	baseURL   string
	headers   map[string]string
	selectors HTMLSelectors
	now       func() time.Time
}

func NewHTMLFetcher(baseURL string, headers map[string]string, timeout time.Duration, selectors HTMLSelectors) *HTMLFetcher {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &HTMLFetcher{
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		headers:   headers,
		selectors: selectors,
		now:       time.Now,
	}
}

func (f *HTMLFetcher) FetchListing(ctx context.Context, keyword, competitor string) (*monitoring.ProductSnapshot, error) {
	endpoint, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("invalid base url: %w", err)}
	}
	q := endpoint.Query()
	q.Set("query", keyword+" "+competitor)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("failed to parse listing page: %w", err)}
	}

	snap := &monitoring.ProductSnapshot{
		Competitor: competitor,
		CapturedAt: f.now().UTC(),
		Products:   []monitoring.CompetitorProduct{},
		Provenance: monitoring.ProvenanceUpstream,
	}

	seen := make(map[string]bool)
	position := 0
	doc.Find(f.selectors.Item).Each(func(i int, s *goquery.Selection) {
		position++
		id := strings.TrimSpace(s.AttrOr("data-product-id", ""))
		if id == "" || seen[id] {
			return
		}

		seller := strings.TrimSpace(s.Find(f.selectors.Seller).First().Text())
		if !matchesCompetitor(competitor, seller, s.AttrOr("data-mall", "")) {
			return
		}
		seen[id] = true

		price, _ := parseNumber(s.Find(f.selectors.Price).First().Text())
		reviews, _ := parseNumber(s.Find(f.selectors.Reviews).First().Text())

		snap.Products = append(snap.Products, monitoring.CompetitorProduct{
			ProductID: id,
			Name:      strings.TrimSpace(s.Find(f.selectors.Name).First().Text()),
			Price:     price,
			Reviews:   int(reviews),
			Rank:      position,
			Image:     s.Find(f.selectors.Image).First().AttrOr("src", ""),
			URL:       s.Find(f.selectors.Link).First().AttrOr("href", ""),
		})
	})

	return snap, nil
}
