package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<html><body><ul>
<li data-product-id="a1">
  <a href="/p/a1"><img src="/i/a1.jpg"></a>
  <span class="product-name"> 루테인 지아잔틴 </span>
  <span class="product-price">27,000원</span>
  <span class="product-reviews">(1,234)</span>
  <span class="product-mall">닥터린 공식몰</span>
</li>
<li data-product-id="b1">
  <span class="product-name">다른 루테인</span>
  <span class="product-price">19,900원</span>
  <span class="product-mall">종근당</span>
</li>
<li data-product-id="a2" data-mall="닥터린">
  <span class="product-name">루테인 플러스</span>
  <span class="product-price">31,500원</span>
</li>
<li data-product-id="">
  <span class="product-mall">닥터린</span>
</li>
</ul></body></html>`

func TestHTMLFetcher_ScrapesListing(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	f := NewHTMLFetcher(srv.URL+"/search", nil, 0, DefaultHTMLSelectors())
	snap, err := f.FetchListing(context.Background(), "루테인", "닥터린")
	require.NoError(t, err)

	assert.Contains(t, gotUA, "Mozilla")
	assert.Equal(t, "루테인 닥터린", gotQuery)

	require.Len(t, snap.Products, 2)
	first := snap.Products[0]
	assert.Equal(t, "a1", first.ProductID)
	assert.Equal(t, "루테인 지아잔틴", first.Name)
	assert.Equal(t, 27000.0, first.Price)
	assert.Equal(t, 1234, first.Reviews)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "/i/a1.jpg", first.Image)
	assert.Equal(t, "/p/a1", first.URL)

	second := snap.Products[1]
	assert.Equal(t, "a2", second.ProductID)
	assert.Equal(t, 3, second.Rank)
	assert.Equal(t, 0, second.Reviews)
}

func TestHTMLFetcher_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTMLFetcher(srv.URL, nil, 0, DefaultHTMLSelectors()).FetchListing(context.Background(), "k", "c")
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}
