package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivalwatch/internal/monitoring"
)

const searchJSON = `{
  "total": 4,
  "items": [
    {"title": "<b>비타민</b> C 1000", "link": "https://shop/1", "image": "https://img/1", "lprice": "12900", "mallName": "종근당건강", "productId": "111", "reviewCount": 42},
    {"title": "다른 브랜드 비타민", "lprice": "9900", "mallName": "네이버", "brand": "고려은단", "productId": "222"},
    {"title": "<b>비타민</b> D", "lprice": "15000", "mallName": "종근당건강", "productId": "333", "reviewCount": 7},
    {"title": "중복", "lprice": "1", "mallName": "종근당건강", "productId": "111"}
  ]
}`

func TestAPIFetcher_ParsesAndFiltersItems(t *testing.T) {
	var gotQuery, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotHeader = r.Header.Get("X-Naver-Client-Id")
		assert.Equal(t, "20", r.URL.Query().Get("display"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchJSON))
	}))
	defer srv.Close()

	f := NewAPIFetcher(APIFetcherConfig{
		BaseURL: srv.URL + "/v1/search/shop.json",
		Headers: map[string]string{"X-Naver-Client-Id": "id"},
		Display: 20,
	})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	snap, err := f.FetchListing(context.Background(), "비타민", "종근당")
	require.NoError(t, err)

	assert.Equal(t, "비타민 종근당", gotQuery)
	assert.Equal(t, "id", gotHeader)
	assert.Equal(t, now, snap.CapturedAt)
	assert.Equal(t, monitoring.ProvenanceUpstream, snap.Provenance)

	require.Len(t, snap.Products, 2)
	assert.Equal(t, monitoring.CompetitorProduct{
		ProductID: "naver-111",
		Name:      "비타민 C 1000",
		Price:     12900,
		Reviews:   42,
		Rank:      1,
		Image:     "https://img/1",
		URL:       "https://shop/1",
	}, snap.Products[0])
	assert.Equal(t, "naver-333", snap.Products[1].ProductID)
	assert.Equal(t, 3, snap.Products[1].Rank, "rank is the position in the full listing")
}

func TestAPIFetcher_MatchesBrandAndMaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchJSON))
	}))
	defer srv.Close()

	snap, err := NewAPIFetcher(APIFetcherConfig{BaseURL: srv.URL}).FetchListing(context.Background(), "비타민", "고려은단")
	require.NoError(t, err)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "naver-222", snap.Products[0].ProductID)
	assert.Equal(t, 2, snap.Products[0].Rank)
}

func TestAPIFetcher_MissingIDsSurviveReordering(t *testing.T) {
	listings := []string{
		`{"items": [
			{"title": "<b>비타민</b> C", "link": "https://shop/c", "lprice": "12900", "mallName": "종근당건강"},
			{"title": "비타민 D", "lprice": "15000", "mallName": "종근당건강"},
			{"title": "", "lprice": "1000", "mallName": "종근당건강"}
		]}`,
		`{"items": [
			{"title": "비타민 D", "lprice": "14000", "mallName": "종근당건강"},
			{"title": "새 상품", "link": "https://shop/new", "lprice": "5000", "mallName": "종근당건강"},
			{"title": "<b>비타민</b> C", "link": "https://shop/c", "lprice": "12900", "mallName": "종근당건강"}
		]}`,
	}
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listings[call]))
		call++
	}))
	defer srv.Close()

	f := NewAPIFetcher(APIFetcherConfig{BaseURL: srv.URL})
	before, err := f.FetchListing(context.Background(), "비타민", "종근당")
	require.NoError(t, err)
	after, err := f.FetchListing(context.Background(), "비타민", "종근당")
	require.NoError(t, err)

	require.Len(t, before.Products, 2, "an item with no id, link or title is skipped")
	require.Len(t, after.Products, 3)

	ids := func(s *monitoring.ProductSnapshot) map[string]string {
		out := make(map[string]string, len(s.Products))
		for _, p := range s.Products {
			out[p.Name] = p.ProductID
		}
		return out
	}
	b, a := ids(before), ids(after)
	assert.Equal(t, "naver-"+derivedProductID("https://shop/c", ""), b["비타민 C"])
	assert.Equal(t, b["비타민 C"], a["비타민 C"])
	assert.Equal(t, b["비타민 D"], a["비타민 D"])
	assert.NotEqual(t, a["새 상품"], a["비타민 D"])

	// The reordered listing diffs as a rank move and a price drop, not as
	// new products.
	cs := monitoring.Diff(before, *after)
	require.Len(t, cs.NewProducts, 1)
	assert.Equal(t, "새 상품", cs.NewProducts[0].Product.Name)
	require.Len(t, cs.PriceChanges, 1)
	assert.Equal(t, "비타민 D", cs.PriceChanges[0].Product.Name)
}

func TestAPIFetcher_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
	}{
		{"server error", http.StatusBadGateway, "", false},
		{"throttled", http.StatusTooManyRequests, "", false},
		{"bad request", http.StatusBadRequest, "", true},
		{"unauthorized", http.StatusUnauthorized, "", true},
		{"bad json", http.StatusOK, "{not json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewAPIFetcher(APIFetcherConfig{BaseURL: srv.URL}).FetchListing(context.Background(), "k", "c")
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
			if !tt.permanent {
				var transient *TransientError
				assert.ErrorAs(t, err, &transient)
				assert.Equal(t, tt.status, transient.StatusCode)
			}
		})
	}
}

func TestAPIFetcher_TransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewAPIFetcher(APIFetcherConfig{BaseURL: url}).FetchListing(context.Background(), "k", "c")
	require.Error(t, err)
	assert.False(t, IsPermanent(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewAPIFetcher(APIFetcherConfig{BaseURL: url}).FetchListing(ctx, "k", "c")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestParseNumber(t *testing.T) {
	v, ok := parseNumber("27,000원")
	assert.True(t, ok)
	assert.Equal(t, 27000.0, v)

	v, ok = parseNumber("(1,234)")
	assert.True(t, ok)
	assert.Equal(t, 1234.0, v)

	_, ok = parseNumber("품절")
	assert.False(t, ok)
}
