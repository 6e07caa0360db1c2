package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

type fakeScraper struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	category *models.CategoryResult
}

func (f *fakeScraper) ScrapeProduct(_ context.Context, url string) *models.ScrapeResult {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(f.delay)

	if strings.Contains(url, "silent") {
		return nil
	}
	if strings.Contains(url, "broken") {
		return &models.ScrapeResult{URL: url, Error: "failed to fetch page"}
	}
	return &models.ScrapeResult{
		URL:     url,
		Success: true,
		Product: models.NewProduct(models.RawProduct{URL: url, Title: url}),
	}
}

func (f *fakeScraper) ScrapeCategory(_ context.Context, url string, _, _ bool) *models.CategoryResult {
	if f.category != nil {
		return f.category
	}
	return &models.CategoryResult{URL: url, Error: "no product URLs found on category pages"}
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Write(ctx context.Context, products []*models.Product, sourceURL string) error {
	args := m.Called(ctx, products, sourceURL)
	return args.Error(0)
}

func TestPipeline_RunKeepsOrder(t *testing.T) {
	s := &fakeScraper{delay: 5 * time.Millisecond}
	p := New(s, Options{Concurrency: 3})

	urls := []string{"https://a/1", "https://a/broken", "https://a/3", "https://a/4", "https://a/5"}
	report, err := p.Run(context.Background(), urls)
	require.NoError(t, err)

	require.Len(t, report.Results, len(urls))
	for i, r := range report.Results {
		assert.Equal(t, urls[i], r.URL)
	}
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Products, 4)
	assert.Equal(t, "https://a/1", report.Products[0].URL)
	assert.Equal(t, "https://a/5", report.Products[3].URL)
	assert.LessOrEqual(t, s.peak.Load(), int32(3))
}

func TestPipeline_StoresAndExports(t *testing.T) {
	store := new(MockStore)
	store.On("Save", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.URL == "https://a/2"
	})).Return(errors.New("duplicate key"))
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	good := new(MockSink)
	good.On("Write", mock.Anything, mock.Anything, "https://a/1").Return(nil)
	bad := new(MockSink)
	bad.On("Write", mock.Anything, mock.Anything, "https://a/1").Return(errors.New("quota exceeded"))

	p := New(&fakeScraper{}, Options{Concurrency: 2, Store: store, Sinks: []Sink{bad, good}})
	report, err := p.Run(context.Background(), []string{"https://a/1", "https://a/2", "https://a/broken"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.StoreErrs)
	require.Len(t, report.SinkErrors, 1)
	assert.EqualError(t, report.SinkErrors[0], "quota exceeded")
	store.AssertNumberOfCalls(t, "Save", 2)
	good.AssertCalled(t, "Write", mock.Anything, mock.MatchedBy(func(ps []*models.Product) bool {
		return len(ps) == 2
	}), "https://a/1")
}

func TestPipeline_NoProductsSkipsSinks(t *testing.T) {
	sink := new(MockSink)
	p := New(&fakeScraper{}, Options{Sinks: []Sink{sink}})

	report, err := p.Run(context.Background(), []string{"https://a/broken"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	sink.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := new(MockSink)
	p := New(&fakeScraper{}, Options{Sinks: []Sink{sink}})
	report, err := p.Run(ctx, []string{"https://a/1", "https://a/2"})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		assert.False(t, r.Success)
	}
	sink.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_RunCategory(t *testing.T) {
	s := &fakeScraper{category: &models.CategoryResult{
		Success:     true,
		ProductURLs: []string{"https://a/x", "https://a/y"},
	}}
	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.Anything, "https://a/kabel/").Return(nil)

	p := New(s, Options{Sinks: []Sink{sink}})
	report, err := p.RunCategory(context.Background(), "https://a/kabel/", true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	sink.AssertExpectations(t)
}

func TestPipeline_RunCategoryFailure(t *testing.T) {
	p := New(&fakeScraper{}, Options{})
	_, err := p.RunCategory(context.Background(), "https://a/leeg/", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no product URLs")
}

func TestPipeline_NilResultCountsAsFailure(t *testing.T) {
	p := New(&fakeScraper{}, Options{Concurrency: 2})

	urls := []string{"https://a/1", "https://a/silent", "https://a/3"}
	report, err := p.Run(context.Background(), urls)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, "https://a/silent", report.Results[1].URL)
	assert.False(t, report.Results[1].Success)
	assert.Equal(t, "scraper returned no result", report.Results[1].Error)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
}

type nilCategoryScraper struct{ fakeScraper }

func (*nilCategoryScraper) ScrapeCategory(context.Context, string, bool, bool) *models.CategoryResult {
	return nil
}

func TestPipeline_RunCategoryNilResult(t *testing.T) {
	p := New(&nilCategoryScraper{}, Options{})
	_, err := p.RunCategory(context.Background(), "https://a/kabel/", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no result")
}
