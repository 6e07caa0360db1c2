package export

import (
	"context"
	"errors"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

var ErrNoRows = errors.New("no products to export")

// Sink writes enriched products somewhere a person can read them.
type Sink interface {
	Write(ctx context.Context, products []*models.Product, sourceURL string) error
}

// Result reports what a sink wrote, per sheet.
type Result struct {
	Target string         `json:"target"`
	Sheets map[string]int `json:"sheets"`
	Rows   int            `json:"rows"`
}

func newResult(target string, groups []SheetRows) *Result {
	r := &Result{Target: target, Sheets: make(map[string]int, len(groups))}
	for _, g := range groups {
		r.Sheets[g.Sheet] += len(g.Rows)
		r.Rows += len(g.Rows)
	}
	return r
}

func groupsOrErr(products []*models.Product, sourceURL string) ([]SheetRows, error) {
	groups := Group(products, sourceURL)
	if len(groups) == 0 {
		return nil, ErrNoRows
	}
	return groups, nil
}
