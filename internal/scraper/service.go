package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowwijs/elektra-scraper/internal/extract"
	"github.com/flowwijs/elektra-scraper/internal/models"
	"github.com/flowwijs/elektra-scraper/internal/parser"
	"github.com/flowwijs/elektra-scraper/internal/ratelimit"
)

type Options struct {
	// MaxPages bounds category pagination.
	MaxPages int
	Limiter  ratelimit.Limiter
	Logger   *slog.Logger
}

// Service fetches shop pages, parses them and runs the extraction engine.
type Service struct {
	fetcher  PageFetcher
	parser   parser.Parser
	engine   *extract.Engine
	limiter  ratelimit.Limiter
	maxPages int
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(fetcher PageFetcher, p parser.Parser, engine *extract.Engine, opts Options) *Service {
	if opts.MaxPages < 1 {
		opts.MaxPages = 50
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewJittered(ratelimit.Window{Min: 2 * time.Second, Max: 2 * time.Second})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if engine == nil {
		engine = extract.NewEngine()
	}
	return &Service{
		fetcher:  fetcher,
		parser:   p,
		engine:   engine,
		limiter:  opts.Limiter,
		maxPages: opts.MaxPages,
		logger:   opts.Logger.With("component", "scraper"),
		now:      time.Now,
	}
}

// ScrapeProduct never returns nil; failures are reported in the result.
func (s *Service) ScrapeProduct(ctx context.Context, url string) *models.ScrapeResult {
	result := &models.ScrapeResult{URL: url}

	product, err := s.scrapeProduct(ctx, url)
	result.Timestamp = s.now()
	if err != nil {
		s.logger.Error("product scrape failed", "url", url, "error", err)
		result.Error = err.Error()
		return result
	}

	s.logger.Info("product scraped",
		"url", url,
		"category", product.Category,
		"quality", product.Quality.Percentage)
	result.Success = true
	result.Product = product
	return result
}

func (s *Service) scrapeProduct(ctx context.Context, url string) (*models.Product, error) {
	if err := ValidateURL(url); err != nil {
		return nil, err
	}

	html, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	raw, err := s.parser.ParseProductPage(html, url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product page: %w", err)
	}

	return s.engine.Enrich(*raw), nil
}

// ScrapeProducts scrapes urls one after the other, keeping their order.
func (s *Service) ScrapeProducts(ctx context.Context, urls []string) []*models.ScrapeResult {
	results := make([]*models.ScrapeResult, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			results = append(results, &models.ScrapeResult{URL: u, Error: ctx.Err().Error(), Timestamp: s.now()})
			continue
		}
		results = append(results, s.ScrapeProduct(ctx, u))
	}
	return results
}

// ScrapeCategory collects product URLs from a category listing and, unless
// urlsOnly is set, scrapes each product. Pagination is followed only when
// allPages is set and stops at the first page without products, without a
// next link, with only already-seen products, or at the page limit.
func (s *Service) ScrapeCategory(ctx context.Context, url string, allPages, urlsOnly bool) *models.CategoryResult {
	result := &models.CategoryResult{URL: url, URLsOnly: urlsOnly}
	defer func() { result.Timestamp = s.now() }()

	if err := ValidateURL(url); err != nil {
		result.Error = err.Error()
		return result
	}

	productURLs, pages, err := s.collectProductURLs(ctx, url, allPages)
	result.PagesScraped = pages
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if len(productURLs) == 0 {
		result.Error = ErrNoProducts.Error()
		return result
	}

	result.ProductURLs = productURLs
	result.ProductsFound = len(productURLs)
	result.Products = make([]*models.ScrapeResult, 0)
	s.logger.Info("category collected",
		"url", url,
		"pages", pages,
		"products", len(productURLs))

	if !urlsOnly {
		result.Products = s.ScrapeProducts(ctx, productURLs)
		for _, r := range result.Products {
			if r.Success {
				result.ProductsScraped++
			}
		}
	}

	result.Success = true
	return result
}

func (s *Service) collectProductURLs(ctx context.Context, categoryURL string, allPages bool) ([]string, int, error) {
	var urls []string
	seen := make(map[string]bool)
	current := categoryURL
	pages := 0

	for current != "" && pages < s.maxPages {
		html, err := s.fetch(ctx, current)
		if err != nil {
			if pages == 0 {
				return nil, 0, err
			}
			s.logger.Warn("stopping pagination", "url", current, "error", err)
			break
		}
		pages++

		page, err := s.parser.ParseCategoryPage(html, current)
		if err != nil {
			return urls, pages, fmt.Errorf("failed to parse category page: %w", err)
		}

		added := 0
		for _, u := range page.URLs {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
				added++
			}
		}
		s.logger.Debug("category page parsed",
			"page", pages,
			"url", current,
			"products", len(page.URLs),
			"new", added,
			"has_next", page.HasNext())

		if !allPages || len(page.URLs) == 0 || added == 0 || !page.HasNext() {
			break
		}
		current = page.NextURL
	}

	return urls, pages, nil
}

// fetch paces requests through the limiter and feeds the outcome back
// into adaptive limiters.
func (s *Service) fetch(ctx context.Context, url string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	html, err := s.fetcher.Fetch(ctx, url)
	if rec, ok := s.limiter.(ratelimit.Recorder); ok {
		rec.Record(err)
	}
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrFetchFailed, url, err)
	}
	return html, nil
}
