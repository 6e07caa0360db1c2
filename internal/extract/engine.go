package extract

import (
	"strings"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

// Result wraps one extracted record with its completeness score and any
// plausibility warnings. Exactly one of Cable or Switching is set.
type Result struct {
	Cable      *CableRecord
	Switching  *SwitchingRecord
	Confidence float64
	Warnings   []ValidationWarning
}

// Engine bundles the compiled pattern libraries. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	cable     *CableExtractor
	switching *SwitchingExtractor
}

func NewEngine() *Engine {
	return &Engine{
		cable:     NewCableExtractor(),
		switching: NewSwitchingExtractor(),
	}
}

// ExtractCable runs the cable extractor, scorer and validator.
func (e *Engine) ExtractCable(title, description string) *Result {
	rec := e.cable.Extract(title, description)
	return &Result{
		Cable:      rec,
		Confidence: Score(rec, CableCanonicalFields),
		Warnings:   Validate(rec),
	}
}

// ExtractSwitching runs the switching-material extractor and scorer.
func (e *Engine) ExtractSwitching(title, description, breadcrumb string) *Result {
	rec := e.switching.Extract(title, description, breadcrumb)
	return &Result{
		Switching:  rec,
		Confidence: Score(rec, SwitchingCanonicalFields),
	}
}

// Enrich classifies a scraped product and merges the extracted attributes
// into a new product record. Distribution, lighting and other products only
// get the category, material and data quality.
func (e *Engine) Enrich(raw models.RawProduct) *models.Product {
	product := models.NewProduct(raw)
	product.Category = ClassifyProduct(raw.Breadcrumb, raw.Title, raw.Description)

	if product.Material == "" {
		product.Material = DetectMaterial(joinText(raw.Title, raw.Description, raw.Color)).Or("")
	}

	switch product.Category {
	case models.CategoryCable:
		res := e.ExtractCable(raw.Title, raw.Description)
		product.Attributes = CableAttributes(res, raw.Title)
		product.Warnings = warningMessages(res.Warnings)
	case models.CategorySwitching:
		res := e.ExtractSwitching(raw.Title, raw.Description, raw.Breadcrumb)
		product.Attributes = SwitchingAttributes(res)
	}

	product.Quality = product.RawProduct.ComputeQuality()
	return product
}

var materials = []struct {
	term, name string
}{
	{"rvs", "Stainless Steel"},
	{"aluminium", "Aluminum"},
	{"edelstaal", "Stainless Steel"},
	{"brons", "Bronze"},
}

// DetectMaterial maps the first material word in text to its English name.
func DetectMaterial(text string) Field[string] {
	lower := strings.ToLower(text)
	for _, m := range materials {
		if strings.Contains(lower, m.term) {
			return found(m.name, "material_term")
		}
	}
	return Field[string]{}
}
