package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowwijs/elektra-scraper/internal/extract"
	"github.com/flowwijs/elektra-scraper/internal/models"
	"github.com/flowwijs/elektra-scraper/internal/parser"
	"github.com/flowwijs/elektra-scraper/internal/ratelimit"
)

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	visits []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("404 %s", url)
	}
	return html, nil
}

func productHTML(title, breadcrumb string) string {
	var crumbs strings.Builder
	for _, c := range strings.Split(breadcrumb, " > ") {
		fmt.Fprintf(&crumbs, `<a href="/%s/">%s</a>`, strings.ToLower(c), c)
	}
	return fmt.Sprintf(`<html><body>
		<div class="breadcrumbs">%s</div>
		<h1>%s</h1>
		<span class="price">€ 12,50</span>
		<div class="sku">SKU-1</div>
	</body></html>`, crumbs.String(), title)
}

func categoryHTML(next string, products ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ol>")
	for _, p := range products {
		fmt.Fprintf(&b, `<li class="product-item"><a href="%s">%s</a></li>`, p, p)
	}
	b.WriteString("</ol>")
	if next != "" {
		fmt.Fprintf(&b, `<a rel="next" href="%s">Volgende</a>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestService(f *fakeFetcher, maxPages int) *Service {
	return NewService(f, parser.NewElektramatParser(), extract.NewEngine(), Options{
		MaxPages: maxPages,
		Limiter:  ratelimit.NewJittered(ratelimit.Window{}),
	})
}

const base = "https://www.elektramat.nl"

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://www.elektramat.nl/ymvk/"))
	assert.NoError(t, ValidateURL("http://localhost:8080/p"))

	for _, bad := range []string{"", "not a url", "ftp://www.elektramat.nl/", "https://", "/relative/path"} {
		assert.ErrorIs(t, ValidateURL(bad), ErrInvalidURL, bad)
	}
}

func TestService_ScrapeProduct(t *testing.T) {
	url := base + "/ymvk-kabel-3x2-5mm2/"
	f := &fakeFetcher{pages: map[string]string{
		url: productHTML("YMvK kabel 3x2.5mm² per 100 meter", "Kabels > Installatiekabel"),
	}}
	s := newTestService(f, 10)

	res := s.ScrapeProduct(context.Background(), url)
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Product)

	p := res.Product
	assert.Equal(t, url, p.URL)
	assert.Equal(t, "Kabels > Installatiekabel", p.Breadcrumb)
	assert.Equal(t, models.CategoryCable, p.Category)
	assert.Equal(t, "YMvK", p.Attributes["cable_type"])
	assert.Equal(t, 2.5, p.Attributes["diameter_mm2"])
	assert.Equal(t, "12,50", p.Price)
	assert.False(t, res.Timestamp.IsZero())
}

func TestService_ScrapeProductErrors(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{},
		errs:  map[string]error{base + "/down/": errors.New("timeout")},
	}
	s := newTestService(f, 10)

	res := s.ScrapeProduct(context.Background(), "not a url")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrInvalidURL.Error())
	assert.Empty(t, f.visits)

	res = s.ScrapeProduct(context.Background(), base+"/down/")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timeout")
	assert.Nil(t, res.Product)
}

func TestService_ScrapeCategoryPagination(t *testing.T) {
	cat := base + "/kabel/"
	f := &fakeFetcher{pages: map[string]string{
		cat:          categoryHTML("/kabel/?p=2", "/ymvk-kabel-3x1-5/", "/xmvk-kabel-5g6/"),
		cat + "?p=2": categoryHTML("/kabel/?p=3", "/xmvk-kabel-5g6/", "/h07v-k-draad-16/"),
		cat + "?p=3": categoryHTML("/kabel/?p=4", "/ymvk-kabel-3x1-5/"),
		cat + "?p=4": categoryHTML("", "/never-reached/"),
	}}
	s := newTestService(f, 10)

	res := s.ScrapeCategory(context.Background(), cat, true, true)
	require.True(t, res.Success, res.Error)
	assert.True(t, res.URLsOnly)
	assert.Equal(t, 3, res.PagesScraped)
	assert.Equal(t, []string{
		base + "/ymvk-kabel-3x1-5/",
		base + "/xmvk-kabel-5g6/",
		base + "/h07v-k-draad-16/",
	}, res.ProductURLs)
	assert.Equal(t, 3, res.ProductsFound)
	assert.Equal(t, 0, res.ProductsScraped)
	assert.Empty(t, res.Products)
	assert.NotContains(t, f.visits, cat+"?p=4")
}

func TestService_ScrapeCategorySinglePage(t *testing.T) {
	cat := base + "/schakelmateriaal/"
	f := &fakeFetcher{pages: map[string]string{
		cat:                               categoryHTML("/schakelmateriaal/?p=2", "/gira-e2-schakelaar-wit/"),
		base + "/gira-e2-schakelaar-wit/": productHTML("Gira E2 enkelpolige schakelaar wit 16A 230V", "Schakelmateriaal > Gira"),
	}}
	s := newTestService(f, 10)

	res := s.ScrapeCategory(context.Background(), cat, false, false)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.PagesScraped)
	require.Len(t, res.Products, 1)
	assert.Equal(t, 1, res.ProductsScraped)
	assert.Equal(t, models.CategorySwitching, res.Products[0].Product.Category)
	assert.Equal(t, "schakelaar", res.Products[0].Product.Attributes["product_type"])
}

func TestService_ScrapeCategoryMaxPages(t *testing.T) {
	cat := base + "/lampen/"
	pages := map[string]string{}
	for i := 1; i <= 5; i++ {
		u := cat
		if i > 1 {
			u = fmt.Sprintf("%s?p=%d", cat, i)
		}
		pages[u] = categoryHTML(fmt.Sprintf("/lampen/?p=%d", i+1), fmt.Sprintf("/led-lamp-%d/", i))
	}
	s := newTestService(&fakeFetcher{pages: pages}, 2)

	res := s.ScrapeCategory(context.Background(), cat, true, true)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.PagesScraped)
	assert.Len(t, res.ProductURLs, 2)
}

func TestService_ScrapeCategoryErrors(t *testing.T) {
	cat := base + "/leeg/"
	f := &fakeFetcher{
		pages: map[string]string{cat: categoryHTML("")},
		errs:  map[string]error{base + "/kapot/": errors.New("connection reset")},
	}
	s := newTestService(f, 10)

	res := s.ScrapeCategory(context.Background(), cat, true, false)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoProducts.Error(), res.Error)

	res = s.ScrapeCategory(context.Background(), base+"/kapot/", true, false)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection reset")

	res = s.ScrapeCategory(context.Background(), "kabel", true, false)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrInvalidURL.Error())
}

func TestService_FetchWrapsCause(t *testing.T) {
	cause := errors.New("blocked")
	f := &fakeFetcher{errs: map[string]error{base + "/x/": cause}}
	s := newTestService(f, 1)

	_, err := s.fetch(context.Background(), base+"/x/")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, cause)
}

type recordingLimiter struct {
	outcomes []error
}

func (r *recordingLimiter) Wait(context.Context) error { return nil }
func (r *recordingLimiter) Record(err error)           { r.outcomes = append(r.outcomes, err) }

func TestService_FetchFeedsRecorder(t *testing.T) {
	cause := errors.New("captcha")
	f := &fakeFetcher{
		pages: map[string]string{base + "/ok/": "<html></html>"},
		errs:  map[string]error{base + "/blocked/": cause},
	}
	limiter := &recordingLimiter{}
	s := NewService(f, parser.NewElektramatParser(), nil, Options{Limiter: limiter})

	_, err := s.fetch(context.Background(), base+"/ok/")
	require.NoError(t, err)
	_, err = s.fetch(context.Background(), base+"/blocked/")
	require.Error(t, err)

	require.Len(t, limiter.outcomes, 2)
	assert.NoError(t, limiter.outcomes[0])
	assert.Same(t, cause, limiter.outcomes[1])
}

func TestService_ContextCancelled(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{}}
	s := NewService(f, parser.NewElektramatParser(), nil, Options{
		Limiter: ratelimit.NewJittered(ratelimit.Window{Min: time.Hour, Max: time.Hour}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := s.ScrapeProducts(ctx, []string{base + "/a/", base + "/b/"})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.Equal(t, context.Canceled.Error(), r.Error)
	}
	assert.Empty(t, f.visits)
}
