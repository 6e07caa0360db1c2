package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/flowwijs/elektra-scraper/internal/models"
	"github.com/flowwijs/elektra-scraper/internal/scraper"
)

// ProductStore persists enriched products. The postgres repository and the
// JSON file store both implement it.
type ProductStore interface {
	Save(ctx context.Context, product *models.Product) error
}

// Sink receives the successful products of a run in input order.
type Sink interface {
	Write(ctx context.Context, products []*models.Product, sourceURL string) error
}

type Options struct {
	Concurrency int
	Store       ProductStore
	Sinks       []Sink
	// SourceURL is recorded in exported rows; defaults to the first URL.
	SourceURL string
	Logger    *slog.Logger
}

type Pipeline struct {
	scraper     scraper.Scraper
	concurrency int
	store       ProductStore
	sinks       []Sink
	sourceURL   string
	logger      *slog.Logger
}

// Report summarises a run. Results has one entry per input URL, in order.
type Report struct {
	Results    []*models.ScrapeResult
	Products   []*models.Product
	Succeeded  int
	Failed     int
	StoreErrs  int
	SinkErrors []error
}

func New(s scraper.Scraper, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		scraper:     s,
		concurrency: opts.Concurrency,
		store:       opts.Store,
		sinks:       opts.Sinks,
		sourceURL:   opts.SourceURL,
		logger:      opts.Logger.With("component", "pipeline"),
	}
}

// Run scrapes urls with bounded concurrency. Individual product failures are
// recorded in the report; the returned error is only set when ctx ends the
// run early.
func (p *Pipeline) Run(ctx context.Context, urls []string) (*Report, error) {
	return p.run(ctx, urls, p.source(urls))
}

// RunCategory crawls a category and feeds its product URLs through Run.
func (p *Pipeline) RunCategory(ctx context.Context, categoryURL string, allPages bool) (*Report, error) {
	cat := p.scraper.ScrapeCategory(ctx, categoryURL, allPages, true)
	if cat == nil {
		return nil, fmt.Errorf("category %s: scraper returned no result", categoryURL)
	}
	if !cat.Success {
		return nil, fmt.Errorf("category %s: %s", categoryURL, cat.Error)
	}
	source := p.sourceURL
	if source == "" {
		source = categoryURL
	}
	return p.run(ctx, cat.ProductURLs, source)
}

func (p *Pipeline) run(ctx context.Context, urls []string, sourceURL string) (*Report, error) {
	report := &Report{Results: make([]*models.ScrapeResult, len(urls))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Results[i] = &models.ScrapeResult{URL: u, Error: err.Error()}
				return nil
			}
			r := p.scraper.ScrapeProduct(gctx, u)
			if r == nil {
				r = &models.ScrapeResult{URL: u, Error: "scraper returned no result"}
			}
			report.Results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		if !r.Success || r.Product == nil {
			report.Failed++
			continue
		}
		report.Succeeded++
		report.Products = append(report.Products, r.Product)
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	if err := p.Finish(ctx, report, sourceURL); err != nil {
		return report, err
	}

	p.logger.Info("pipeline finished",
		"urls", len(urls),
		"succeeded", report.Succeeded,
		"failed", report.Failed)
	return report, nil
}

// Finish stores and exports the products of a report. Store failures are
// counted per product; sink failures are collected and do not stop the
// remaining sinks.
func (p *Pipeline) Finish(ctx context.Context, report *Report, sourceURL string) error {
	if p.store != nil {
		for _, product := range report.Products {
			if err := p.store.Save(ctx, product); err != nil {
				report.StoreErrs++
				p.logger.Error("failed to store product", "url", product.URL, "error", err)
			}
		}
	}

	if len(report.Products) == 0 {
		return nil
	}
	for _, sink := range p.sinks {
		if err := sink.Write(ctx, report.Products, sourceURL); err != nil {
			report.SinkErrors = append(report.SinkErrors, err)
			p.logger.Error("sink write failed", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
	return ctx.Err()
}

func (p *Pipeline) source(urls []string) string {
	if p.sourceURL != "" {
		return p.sourceURL
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return ""
}
