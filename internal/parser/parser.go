package parser

import (
	"github.com/flowwijs/elektra-scraper/internal/models"
)

// Parser turns rendered shop HTML into scraped records. pageURL is the
// address the HTML was loaded from; relative links are resolved against it.
type Parser interface {
	ParseProductPage(html string, pageURL string) (*models.RawProduct, error)
	ParseCategoryPage(html string, pageURL string) (*CategoryPage, error)
}

// CategoryPage is one page of a category listing.
type CategoryPage struct {
	URLs    []string
	NextURL string
	// Empty is set when the shop shows its "no products" notice.
	Empty bool
	Page  int
}

// HasNext reports whether pagination should continue after this page.
func (p *CategoryPage) HasNext() bool {
	return !p.Empty && p.NextURL != ""
}
