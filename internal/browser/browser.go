package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

var (
	// ErrBlocked is returned by Fetch when the shop served a block or captcha page.
	ErrBlocked  = errors.New("page blocked by bot protection")
	ErrNotFound = errors.New("page not found")
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	MaxRetries     int
	ExtraHeaders   map[string]string
	Logger         *slog.Logger
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "nl-NL,nl;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Amsterdam",
		Locale:         "nl-NL",
		MaxRetries:     3,
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o *Options) withDefaults() *Options {
	d := DefaultOptions()
	if o == nil {
		return d
	}
	opts := *o
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = d.UserAgent
	}
	if opts.ViewportWidth == 0 || opts.ViewportHeight == 0 {
		opts.ViewportWidth, opts.ViewportHeight = d.ViewportWidth, d.ViewportHeight
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = d.AcceptLanguage
	}
	if opts.TimezoneID == "" {
		opts.TimezoneID = d.TimezoneID
	}
	if opts.Locale == "" {
		opts.Locale = d.Locale
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = d.MaxRetries
	}
	headers := make(map[string]string, len(d.ExtraHeaders)+len(opts.ExtraHeaders)+1)
	for k, v := range d.ExtraHeaders {
		headers[k] = v
	}
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	headers["Accept-Language"] = opts.AcceptLanguage
	opts.ExtraHeaders = headers
	return &opts
}

func New(opts *Options) (*Browser, error) {
	opts = opts.withDefaults()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

// Fetch loads url in a fresh page and returns the rendered HTML.
func (b *Browser) Fetch(ctx context.Context, url string) (string, error) {
	page, err := b.NewPage()
	if err != nil {
		return "", err
	}
	defer page.Close()

	if err := b.navigate(ctx, page, url); err != nil {
		return "", err
	}

	if err := b.AcceptCookies(page); err != nil {
		b.logger.Debug("cookie banner not dismissed", "url", url, "error", err)
	}

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	if IsBlocked(content) {
		return "", fmt.Errorf("%s: %w", url, ErrBlocked)
	}
	return content, nil
}

func (b *Browser) Close() error {
	var errs []error
	if b.context != nil {
		errs = append(errs, wrapClose("context", b.context.Close()))
	}
	if b.browser != nil {
		errs = append(errs, wrapClose("browser", b.browser.Close()))
	}
	if b.pw != nil {
		errs = append(errs, wrapClose("playwright", b.pw.Stop()))
	}
	return errors.Join(errs...)
}

func wrapClose(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to close %s: %w", what, err)
}

// navigate loads url, retrying transport errors and retryable statuses up
// to MaxRetries attempts with a linear backoff.
func (b *Browser) navigate(ctx context.Context, page playwright.Page, url string) error {
	var lastErr error

	for attempt := 1; attempt <= b.opts.MaxRetries; attempt++ {
		if attempt > 1 {
			b.logger.Info("retrying navigation", "attempt", attempt, "url", url, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
		})
		if err != nil {
			lastErr = err
			continue
		}
		if resp == nil {
			return nil
		}

		retry, err := checkStatus(url, resp.Status())
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("navigation to %s failed after %d attempts: %w", url, b.opts.MaxRetries, lastErr)
}

// checkStatus maps an HTTP status to an error and whether another attempt
// could succeed. 403 is how the shop's bot protection answers.
func checkStatus(url string, status int) (retry bool, err error) {
	switch {
	case status < 400:
		return false, nil
	case status == 403:
		return false, fmt.Errorf("%s returned 403: %w", url, ErrBlocked)
	case status == 404 || status == 410:
		return false, fmt.Errorf("%s returned %d: %w", url, status, ErrNotFound)
	case status == 429 || status >= 500:
		return true, fmt.Errorf("%s returned %d", url, status)
	default:
		return false, fmt.Errorf("%s returned %d", url, status)
	}
}

// cookieButtons are tried in order; elektramat shows an "Accepteren" banner
// on the first visit of a context.
var cookieButtons = []string{
	`button:has-text("Accepteren")`,
	`a:has-text("Accepteren")`,
	`#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll`,
	`button:has-text("Alles toestaan")`,
}

// AcceptCookies dismisses the cookie consent banner when one is shown.
func (b *Browser) AcceptCookies(page playwright.Page) error {
	for _, selector := range cookieButtons {
		button := page.Locator(selector).First()

		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}

		visible, err := button.IsVisible()
		if err != nil || !visible {
			continue
		}

		if err := button.Click(); err != nil {
			return fmt.Errorf("failed to click %s: %w", selector, err)
		}
		b.logger.Debug("accepted cookies", "selector", selector)
		return nil
	}
	return nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * time.Second
}

// IsBlocked reports whether the HTML looks like an access-denied or
// captcha interstitial rather than a shop page.
func IsBlocked(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range []string{"access denied", "captcha", "toegang geweigerd", "cf-challenge"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
