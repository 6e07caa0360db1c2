package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/flowwijs/elektra-scraper/internal/models"
)

// ElektramatParser reads Magento-style product and category pages. Each
// field has an ordered selector list; the first selector whose first match
// yields text wins.
type ElektramatParser struct {
	price    *regexp.Regexp
	currency *regexp.Regexp
	digits   *regexp.Regexp
	artikel  *regexp.Regexp
}

func NewElektramatParser() *ElektramatParser {
	return &ElektramatParser{
		price:    regexp.MustCompile(`[\d.,]+`),
		currency: regexp.MustCompile(`[€$£¥]`),
		digits:   regexp.MustCompile(`\d+`),
		artikel:  regexp.MustCompile(`(?i)Artikelnr:\s*(\d+)`),
	}
}

var (
	titleSelectors = []string{
		"h1",
		`[data-testid="product-title"]`,
		".product-title",
		".product-name",
		`[class*="title"]`,
		`[class*="name"]`,
	}
	priceSelectors = []string{
		`[data-testid="price"]`,
		".price",
		".product-price",
		`[class*="price"]`,
		`[class*="cost"]`,
	}
	amountSelectors = []string{
		`[data-testid="quantity"]`,
		".quantity",
		".amount",
		`[class*="quantity"]`,
		`[class*="amount"]`,
		`[class*="stock"]`,
		`input[type="number"]`,
	}
	availabilitySelectors = []string{
		`[class*="stock"]`,
		`[class*="availability"]`,
		`[data-testid="availability"]`,
	}
	imageFallbackSelectors = []string{
		".product-image-main img",
		".fotorama__stage img",
		`img[src*="/media/catalog/product/cache/"]`,
		".product.media img",
	}
	descriptionSelectors = []string{
		".product.description",
		"#description",
		".product-info-tabs-content",
		".product.attribute.description",
		".product-details",
		`[data-testid="product-description"]`,
		".product-description",
		".description",
		`[class*="description"]`,
		`[class*="details"]`,
		".product-summary",
		`meta[name="description"]`,
	}
	skuSelectors = []string{
		".product-info-stock-sku .value",
		".sku .value",
		`[data-th="SKU"]`,
		".product-info-price .sku",
		".product-sku",
		".item-code",
		`[data-testid="sku"]`,
		".sku",
		`[class*="sku"]`,
		".model-number",
		".item-number",
		`[class*="artikelnr"]`,
		`[class*="article-number"]`,
		".artikelnummer",
	}
	brandSelectors = []string{
		`[itemprop="brand"] [itemprop="name"]`,
		`[itemprop="brand"]`,
		".product-brand",
		`meta[property="product:brand"]`,
	}
	genericBreadcrumbSelectors = []string{
		".breadcrumb-list a",
		".page-header .breadcrumb a",
		"nav.breadcrumb a",
	}
	// Navigation and cookie-banner links that sit inside breadcrumb markup.
	breadcrumbSkip = []string{
		"home", "homepage", "startpagina", "privacy beleid", "weigeren",
		"accepteren", "back", "ga naar de inhoud", "werken bij", "verzending",
		"reviews", "log in", "winkelwagen", "zoeken", "account", "contact",
		"klantenservice", "fill 1", "created with sketch",
	}
)

func (p *ElektramatParser) ParseProductPage(html string, pageURL string) (*models.RawProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	raw := &models.RawProduct{
		URL:            pageURL,
		FoundSelectors: make(map[string]string),
	}

	if title, sel := firstText(doc, titleSelectors); title != "" {
		raw.Title = title
		raw.FoundSelectors["title"] = sel
	}
	p.extractPrice(doc, raw)
	p.extractAmount(doc, raw)
	if avail, sel := firstText(doc, availabilitySelectors); avail != "" {
		raw.Availability = avail
		raw.FoundSelectors["availability"] = sel
	}
	p.extractImage(doc, base, raw)
	if desc, sel := firstText(doc, descriptionSelectors); desc != "" {
		raw.Description = desc
		raw.FoundSelectors["description"] = sel
	}
	p.extractSKU(doc, raw)
	if brand, sel := firstText(doc, brandSelectors); brand != "" {
		raw.Brand = brand
		raw.FoundSelectors["brand"] = sel
	}
	raw.GTIN13 = strings.TrimSpace(doc.Find(`[itemprop="gtin13"]`).First().AttrOr("content", ""))

	raw.Categories = extractBreadcrumbs(doc)
	raw.Breadcrumb = strings.Join(raw.Categories, " > ")
	if len(raw.Categories) > 0 {
		raw.PrimaryCategory = raw.Categories[0]
	}

	for _, field := range []struct{ name, value string }{
		{"title", raw.Title},
		{"price", raw.Price},
		{"amount", raw.Amount},
		{"availability", raw.Availability},
		{"image", raw.Image},
		{"description", raw.Description},
		{"sku", raw.SKU},
	} {
		if field.value == "" {
			raw.MissingFields = append(raw.MissingFields, field.name)
		}
	}

	return raw, nil
}

func (p *ElektramatParser) extractPrice(doc *goquery.Document, raw *models.RawProduct) {
	for _, sel := range priceSelectors {
		text := cleanText(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if c := p.currency.FindString(text); c != "" {
			raw.Currency = c
		}
		if m := p.price.FindString(text); m != "" {
			raw.Price = m
			raw.FoundSelectors["price"] = sel
			return
		}
	}
}

func (p *ElektramatParser) extractAmount(doc *goquery.Document, raw *models.RawProduct) {
	for _, sel := range amountSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		var amount string
		if goquery.NodeName(el) == "input" {
			amount = el.AttrOr("value", "")
			if amount == "" {
				amount = el.AttrOr("placeholder", "")
			}
		} else {
			amount = p.digits.FindString(el.Text())
		}
		if amount != "" {
			raw.Amount = amount
			raw.FoundSelectors["amount"] = sel
			return
		}
	}
}

// The preload hint carries the main product image; gallery markup is only
// rendered once scripts ran, so it is the fallback.
func (p *ElektramatParser) extractImage(doc *goquery.Document, base *url.URL, raw *models.RawProduct) {
	if href := doc.Find(`link[rel="preload"][as="image"]`).First().AttrOr("href", ""); href != "" {
		raw.Image = resolve(base, href)
		raw.FoundSelectors["image"] = "preload"
		return
	}
	for _, sel := range imageFallbackSelectors {
		if src := doc.Find(sel).First().AttrOr("src", ""); src != "" {
			raw.Image = resolve(base, src)
			raw.FoundSelectors["image"] = sel
			return
		}
	}
}

func (p *ElektramatParser) extractSKU(doc *goquery.Document, raw *models.RawProduct) {
	if sku, sel := firstText(doc, skuSelectors); sku != "" {
		raw.SKU = sku
		raw.FoundSelectors["sku"] = sel
		return
	}
	if m := p.artikel.FindStringSubmatch(doc.Find("body").Text()); m != nil {
		raw.SKU = m[1]
		raw.FoundSelectors["sku"] = "text-pattern:Artikelnr"
	}
}

func extractBreadcrumbs(doc *goquery.Document) []string {
	categories := make([]string, 0)

	if crumbs := doc.Find(".breadcrumbs").First(); crumbs.Length() > 0 {
		crumbs.Find("a").Each(func(_ int, a *goquery.Selection) {
			text := cleanText(a.Text())
			if n := len([]rune(text)); n > 1 && n < 100 && !skipBreadcrumb(text) {
				categories = append(categories, text)
			}
		})
		return categories
	}

	seen := make(map[string]bool)
	for _, sel := range genericBreadcrumbSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			text := cleanText(a.Text())
			if n := len([]rune(text)); n > 2 && n < 50 && !skipBreadcrumb(text) && !seen[text] {
				seen[text] = true
				categories = append(categories, text)
			}
		})
	}
	return categories
}

func skipBreadcrumb(text string) bool {
	lower := strings.ToLower(text)
	for _, skip := range breadcrumbSkip {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}

var (
	productContainerSelector = ".product-item"
	genericProductSelectors  = []string{
		`a[href*="/product/"]`,
		`a[href*="/item/"]`,
		`a[href*="/p/"]`,
		".product-tile a",
		".product-card a",
		".product a",
		`article a[href*="/"]`,
	}
	nextPageSelectors = []string{
		".pages-items a.next",
		`a[title="Volgende"]`,
		`a[title="Next"]`,
		".pagination a.next",
		".pager .next a",
		`a[rel="next"]`,
		".toolbar-products .pages a.action.next",
	}
	emptyCategorySelectors = []string{
		".message.info.empty",
		".no-products",
		".empty-category",
		`[class*="no-results"]`,
		`[class*="empty"]`,
	}
)

func (p *ElektramatParser) ParseCategoryPage(html string, pageURL string) (*CategoryPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	page := &CategoryPage{
		URLs: productLinks(doc, base),
		Page: currentPage(base),
	}
	page.NextURL = nextPageLink(doc, base, page.Page)
	page.Empty = hasEmptyNotice(doc)
	return page, nil
}

func productLinks(doc *goquery.Document, base *url.URL) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	containers := doc.Find(productContainerSelector)
	if containers.Length() > 0 {
		containers.Each(func(_ int, c *goquery.Selection) {
			href := c.Find("a[href]").First().AttrOr("href", "")
			if href == "" || strings.Contains(href, "javascript:") {
				return
			}
			full := resolve(base, href)
			u, err := url.Parse(full)
			if err != nil || u.Hostname() != base.Hostname() {
				return
			}
			if strings.Contains(full, "-") || strings.Contains(full, "/product") || len(href) > 10 {
				add(full)
			}
		})
		return urls
	}

	for _, sel := range genericProductSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href := a.AttrOr("href", "")
			if href == "" || strings.Contains(href, "javascript:") {
				return
			}
			full := resolve(base, href)
			if strings.Contains(full, "/product") ||
				strings.Contains(full, "/item") ||
				strings.Contains(full, "/p/") ||
				(strings.Contains(full, ".html") && !strings.Contains(full, "/category")) {
				add(full)
			}
		})
	}
	return urls
}

func currentPage(u *url.URL) int {
	if n, err := strconv.Atoi(u.Query().Get("p")); err == nil && n > 0 {
		return n
	}
	return 1
}

func nextPageLink(doc *goquery.Document, base *url.URL, current int) string {
	for _, sel := range nextPageSelectors {
		if href := doc.Find(sel).First().AttrOr("href", ""); href != "" {
			return resolve(base, href)
		}
	}

	next := current + 1
	sel := fmt.Sprintf(`a[href*="?p=%d"], a[href*="&p=%d"]`, next, next)
	if href := doc.Find(sel).First().AttrOr("href", ""); href != "" {
		return resolve(base, href)
	}
	return ""
}

func hasEmptyNotice(doc *goquery.Document) bool {
	for _, sel := range emptyCategorySelectors {
		el := doc.Find(sel).First()
		if el.Length() > 0 && strings.Contains(strings.ToLower(el.Text()), "geen") {
			return true
		}
	}
	return false
}

// firstText returns the text (or meta content) of the first match of the
// first selector that yields any, along with that selector.
func firstText(doc *goquery.Document, selectors []string) (string, string) {
	for _, sel := range selectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		var text string
		if goquery.NodeName(el) == "meta" {
			text = strings.TrimSpace(el.AttrOr("content", ""))
		} else {
			text = cleanText(el.Text())
		}
		if text != "" {
			return text, sel
		}
	}
	return "", ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
