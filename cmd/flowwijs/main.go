package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/flowwijs/elektra-scraper/internal/browser"
	"github.com/flowwijs/elektra-scraper/internal/config"
	"github.com/flowwijs/elektra-scraper/internal/database"
	"github.com/flowwijs/elektra-scraper/internal/export"
	"github.com/flowwijs/elektra-scraper/internal/extract"
	"github.com/flowwijs/elektra-scraper/internal/logger"
	"github.com/flowwijs/elektra-scraper/internal/models"
	"github.com/flowwijs/elektra-scraper/internal/parser"
	"github.com/flowwijs/elektra-scraper/internal/pipeline"
	"github.com/flowwijs/elektra-scraper/internal/ratelimit"
	"github.com/flowwijs/elektra-scraper/internal/scraper"
	"github.com/flowwijs/elektra-scraper/internal/storage"
)

type options struct {
	url        string
	urls       string
	file       string
	category   bool
	allPages   bool
	urlsOnly   bool
	storage    string
	concurrent int
	headless   bool
	xlsx       string
	sheets     bool
	jsonOut    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.url, "url", "", "Product or category URL")
	flag.StringVar(&opts.urls, "urls", "", "Comma separated product URLs")
	flag.StringVar(&opts.file, "file", "", "File with one product URL per line")
	flag.BoolVar(&opts.category, "category", false, "Treat -url as a category listing")
	flag.BoolVar(&opts.allPages, "all-pages", false, "Follow category pagination")
	flag.BoolVar(&opts.urlsOnly, "urls-only", false, "Only list the product URLs of a category")
	flag.StringVar(&opts.storage, "storage", "", "JSON file tracking links; resumes pending links from earlier runs")
	flag.IntVar(&opts.concurrent, "concurrent", 0, "Concurrent product scrapes (default from SCRAPER_CONCURRENT_LIMIT)")
	flag.BoolVar(&opts.headless, "headless", true, "Run browser in headless mode")
	flag.StringVar(&opts.xlsx, "xlsx", "", "Append results to this Excel workbook")
	flag.BoolVar(&opts.sheets, "sheets", false, "Append results to the configured Google spreadsheet")
	flag.BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Logs go to stderr so -json output stays parseable.
	log := logger.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts, log); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *slog.Logger) error {
	urls, err := collectURLs(opts.url, opts.urls, opts.file)
	if err != nil {
		return fmt.Errorf("failed to read URLs: %w", err)
	}

	var links *storage.LinkStorage
	if opts.storage != "" {
		if links, err = storage.NewLinkStorage(opts.storage); err != nil {
			return err
		}
	}

	if len(urls) == 0 && links == nil {
		flag.Usage()
		return errors.New("provide -url, -urls, -file or -storage")
	}
	if opts.category && opts.url == "" {
		return errors.New("-category requires -url")
	}

	b, err := browser.New(&browser.Options{
		Headless:       opts.headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		MaxRetries:     cfg.Scraper.MaxRetries,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer b.Close()

	svc := scraper.NewService(b, parser.NewElektramatParser(), extract.NewEngine(), scraper.Options{
		MaxPages: cfg.Scraper.MaxPages,
		Limiter:  newLimiter(cfg),
		Logger:   log,
	})

	if opts.category && opts.urlsOnly {
		cat := svc.ScrapeCategory(ctx, opts.url, opts.allPages, true)
		if !cat.Success {
			return fmt.Errorf("category %s: %s", opts.url, cat.Error)
		}
		if links != nil {
			if err := links.AddBatch(cat.ProductURLs); err != nil {
				return err
			}
		}
		return printURLs(cat.ProductURLs, opts.jsonOut)
	}

	var stores multiStore
	if links != nil {
		stores = append(stores, links)
	}
	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := database.EnsureSchema(ctx, db.Pool()); err != nil {
			return err
		}
		stores = append(stores, database.NewProductRepository(db.Pool(), cfg.Redis.Stream))
	}

	var sinks []pipeline.Sink
	if opts.xlsx != "" {
		sinks = append(sinks, export.NewXLSXSink(opts.xlsx, log))
	}
	if opts.sheets {
		if !cfg.Export.SheetsEnabled() {
			return errors.New("-sheets requires GOOGLE_SPREADSHEET_ID")
		}
		sheets, err := export.NewSheetsSink(ctx, cfg.Export.CredentialsFile, cfg.Export.SpreadsheetID, log)
		if err != nil {
			return err
		}
		sinks = append(sinks, sheets)
	}

	concurrency := opts.concurrent
	if concurrency < 1 {
		concurrency = cfg.Scraper.ConcurrentLimit
	}

	pipeOpts := pipeline.Options{
		Concurrency: concurrency,
		Sinks:       sinks,
		Logger:      log,
	}
	if len(stores) > 0 {
		pipeOpts.Store = stores
	}

	var report *pipeline.Report
	switch {
	case opts.category && links == nil:
		report, err = pipeline.New(svc, pipeOpts).RunCategory(ctx, opts.url, opts.allPages)
	case opts.category:
		cat := svc.ScrapeCategory(ctx, opts.url, opts.allPages, true)
		if !cat.Success {
			return fmt.Errorf("category %s: %s", opts.url, cat.Error)
		}
		if err := links.AddBatch(cat.ProductURLs); err != nil {
			return err
		}
		pipeOpts.SourceURL = opts.url
		report, err = runStored(ctx, svc, pipeOpts, links, log)
	case links != nil:
		if err := links.AddBatch(urls); err != nil {
			return err
		}
		report, err = runStored(ctx, svc, pipeOpts, links, log)
	default:
		report, err = pipeline.New(svc, pipeOpts).Run(ctx, urls)
	}
	if report != nil {
		if perr := printReport(report, opts.jsonOut); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if len(report.SinkErrors) > 0 {
		return errors.Join(report.SinkErrors...)
	}
	return nil
}

// runStored processes every pending link of the store and records failures
// so the next run retries them.
func runStored(ctx context.Context, svc scraper.Scraper, opts pipeline.Options, links *storage.LinkStorage, log *slog.Logger) (*pipeline.Report, error) {
	pending := links.GetPending()
	stats := links.GetStats()
	log.Info("processing stored links", "pending", len(pending), "completed", stats[storage.StatusCompleted])

	report, err := pipeline.New(svc, opts).Run(ctx, pending)
	if report == nil {
		return nil, err
	}
	for _, r := range report.Results {
		if r == nil || r.Success {
			continue
		}
		if uerr := links.UpdateStatus(r.URL, storage.StatusFailed, r.Error); uerr != nil {
			log.Error("failed to update link status", "url", r.URL, "error", uerr)
		}
	}
	return report, err
}

// multiStore saves to every store and reports the first failure.
type multiStore []pipeline.ProductStore

func (m multiStore) Save(ctx context.Context, p *models.Product) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func printURLs(urls []string, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(urls)
	}
	for _, u := range urls {
		fmt.Println(u)
	}
	fmt.Fprintf(os.Stderr, "%d product URLs\n", len(urls))
	return nil
}

func printReport(report *pipeline.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Results)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCATEGORY\tCONFIDENCE\tQUALITY\tTITLE / ERROR")
	for _, r := range report.Results {
		if r == nil {
			continue
		}
		if !r.Success || r.Product == nil {
			fmt.Fprintf(w, "FAIL\t-\t-\t-\t%s: %s\n", r.URL, r.Error)
			continue
		}
		p := r.Product
		fmt.Fprintf(w, "OK\t%s\t%v\t%d%%\t%s\n", p.Category, confidence(p), p.Quality.Percentage, p.Title)
		for _, warning := range p.Warnings {
			fmt.Fprintf(w, "\t\t\t\t  ! %s\n", warning)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d succeeded, %d failed", report.Succeeded, report.Failed)
	if report.StoreErrs > 0 {
		fmt.Printf(", %d not stored", report.StoreErrs)
	}
	fmt.Println()
	return nil
}

func confidence(p *models.Product) any {
	if p.Category == models.CategorySwitching {
		return p.Attribute("switching_parsing_confidence")
	}
	return p.Attribute("parsing_confidence")
}

func newLimiter(cfg *config.Config) *ratelimit.Adaptive {
	return ratelimit.NewAdaptive(
		ratelimit.Window{Min: cfg.Scraper.RateLimitMin, Max: cfg.Scraper.RateLimitMax},
		func(err error) bool { return errors.Is(err, browser.ErrBlocked) },
	)
}
