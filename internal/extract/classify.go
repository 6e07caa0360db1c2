package extract

import (
	"strings"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

type categoryKeywords struct {
	category string
	keywords []string
}

// Distribution is checked before switching so that "module" in a
// groepenkast listing does not route it to the switching extractor.
var categoryOrder = []categoryKeywords{
	{models.CategoryDistribution, []string{"groepenkast", "verdeler", "automaat"}},
	{models.CategoryCable, []string{"kabel", "draad", "cable"}},
	{models.CategorySwitching, []string{
		"schakelmateriaal", "schakelaar", "stopcontact", "dimmer",
		"frame", "afdekframe", "drukknop", "module",
	}},
	{models.CategoryLighting, []string{"verlichting", "lamp", "led", "armatuur"}},
}

// Classify routes combined breadcrumb/title/description text to a product
// category by substring keywords. The first matching keyword set wins.
func Classify(text string) string {
	lower := strings.ToLower(text)
	for _, c := range categoryOrder {
		if containsAny(lower, c.keywords...) {
			return c.category
		}
	}
	return models.CategoryOther
}

// ClassifyProduct classifies breadcrumb + title + description.
func ClassifyProduct(breadcrumb, title, description string) string {
	return Classify(joinText(breadcrumb, title, description))
}
