package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product categories produced by the classifier.
const (
	CategoryCable        = "cable"
	CategorySwitching    = "switching"
	CategoryDistribution = "distribution"
	CategoryLighting     = "lighting"
	CategoryOther        = "other"
)

// Unknown is the sentinel written for every attribute that could not be extracted.
const Unknown = "unknown"

// RawProduct holds the text scraped from a product page before any extraction.
type RawProduct struct {
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	Brand           string   `json:"brand"`
	Price           string   `json:"price"`
	Currency        string   `json:"currency"`
	Amount          string   `json:"amount"`
	Availability    string   `json:"availability"`
	Image           string   `json:"image"`
	Description     string   `json:"description"`
	SKU             string   `json:"sku"`
	GTIN13          string   `json:"gtin13"`
	DeliveryTime    string   `json:"delivery_time"`
	Color           string   `json:"color"`
	Material        string   `json:"material"`
	Categories      []string `json:"categories"`
	Breadcrumb      string   `json:"breadcrumb"`
	PrimaryCategory string   `json:"primary_category"`

	// FoundSelectors records which selector produced each scraped field.
	FoundSelectors map[string]string `json:"found_selectors,omitempty"`
	MissingFields  []string          `json:"missing_fields,omitempty"`
}

// Product is a scraped product merged with the extracted attributes.
type Product struct {
	ID         uuid.UUID      `json:"id"`
	RawProduct                // embedded scraped fields
	Category   string         `json:"category"`
	Attributes map[string]any `json:"attributes"`
	Warnings   []string       `json:"warnings,omitempty"`
	Quality    DataQuality    `json:"data_quality"`
	ParsedAt   time.Time      `json:"parsed_at"`
}

// DataQuality summarises how many of the scraped product fields were filled in.
type DataQuality struct {
	Score           int      `json:"score"`
	MaxScore        int      `json:"max_score"`
	Percentage      int      `json:"percentage"`
	MissingRequired []string `json:"missing_required"`
	MissingOptional []string `json:"missing_optional"`
	IsComplete      bool     `json:"is_complete"`
}

type ScrapeResult struct {
	URL       string    `json:"url"`
	Success   bool      `json:"success"`
	Product   *Product  `json:"product,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CategoryResult is the outcome of crawling a category listing.
type CategoryResult struct {
	URL             string          `json:"url"`
	Success         bool            `json:"success"`
	PagesScraped    int             `json:"pages_scraped"`
	ProductsFound   int             `json:"products_found"`
	ProductsScraped int             `json:"products_scraped"`
	ProductURLs     []string        `json:"product_urls"`
	Products        []*ScrapeResult `json:"products"`
	URLsOnly        bool            `json:"urls_only,omitempty"`
	Error           string          `json:"error,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

func NewProduct(raw RawProduct) *Product {
	return &Product{
		ID:         uuid.New(),
		RawProduct: raw,
		Category:   CategoryOther,
		Attributes: make(map[string]any),
		ParsedAt:   time.Now(),
	}
}

// Attribute returns the attribute value as display text, or Unknown when absent.
func (p *Product) Attribute(key string) any {
	if v, ok := p.Attributes[key]; ok && v != nil {
		return v
	}
	return Unknown
}

// AllCategories joins the breadcrumb categories for display.
func (p *Product) AllCategories() string {
	return strings.Join(p.Categories, ", ")
}

var (
	requiredQualityFields = []string{"title", "price", "sku", "brand"}
	optionalQualityFields = []string{"description", "image", "availability", "color", "material"}
)

// ComputeQuality scores the scraped fields: required fields weigh 2, optional 1.
func (r *RawProduct) ComputeQuality() DataQuality {
	q := DataQuality{
		MissingRequired: make([]string, 0),
		MissingOptional: make([]string, 0),
	}

	for _, field := range requiredQualityFields {
		q.MaxScore += 2
		if strings.TrimSpace(r.field(field)) != "" {
			q.Score += 2
		} else {
			q.MissingRequired = append(q.MissingRequired, field)
		}
	}

	for _, field := range optionalQualityFields {
		q.MaxScore++
		if strings.TrimSpace(r.field(field)) != "" {
			q.Score++
		} else {
			q.MissingOptional = append(q.MissingOptional, field)
		}
	}

	q.Percentage = (q.Score*100 + q.MaxScore/2) / q.MaxScore
	q.IsComplete = len(q.MissingRequired) == 0
	return q
}

func (r *RawProduct) field(name string) string {
	switch name {
	case "title":
		return r.Title
	case "price":
		return r.Price
	case "sku":
		return r.SKU
	case "brand":
		return r.Brand
	case "description":
		return r.Description
	case "image":
		return r.Image
	case "availability":
		return r.Availability
	case "color":
		return r.Color
	case "material":
		return r.Material
	default:
		return ""
	}
}
