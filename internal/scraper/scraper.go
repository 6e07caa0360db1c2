package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

var (
	ErrInvalidURL  = errors.New("invalid URL format")
	ErrNoProducts  = errors.New("no product URLs found on category pages")
	ErrFetchFailed = errors.New("failed to fetch page")
)

// PageFetcher returns the rendered HTML of a page. The playwright browser
// implements it; tests use a map-backed fake.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Scraper is what the pipeline and API depend on.
type Scraper interface {
	ScrapeProduct(ctx context.Context, url string) *models.ScrapeResult
	ScrapeCategory(ctx context.Context, url string, allPages, urlsOnly bool) *models.CategoryResult
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}
