package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// CableRecord holds the attributes extracted from a cable listing.
type CableRecord struct {
	Type          Field[string]
	Category      CableCategory
	Diameter      Field[float64] // cross-section in mm²
	Conductors    Field[int]
	Length        Field[float64] // meters
	Quantity      Field[int]
	OuterDiameter Field[float64] // mm

	// Network is set only when Category is CableNetwork.
	Network *NetworkSpecs
}

// CableExtractor applies the cable pattern library to product text.
type CableExtractor struct {
	types         []cableTypeMatcher
	diameter      Family[float64]
	conductors    Family[int]
	perMeter      *regexp.Regexp
	length        Family[float64]
	quantity      Family[int]
	outerDiameter Family[float64]
	network       *networkMatcher
}

func NewCableExtractor() *CableExtractor {
	return &CableExtractor{
		types: compileCableTypes(),
		// A bare number is never read as a cross-section: only the explicit
		// mm² notation and the NxM product code count.
		diameter: Family[float64]{
			rule("mm2", `(?i)(\d+(?:[.,]\d+)?)\s*mm[²2]`, floatGroup(1)),
			rule("product_code", `(?i)(\d+)x(\d+(?:[.,]\d+)?)`, floatGroup(2)),
		},
		conductors: Family[int]{
			rule("product_code", `(?i)(\d+)[xX×](\d+(?:[.,]\d+)?)`, intGroup(1)),
			rule("earth_notation", `(?i)(\d+)G(\d+(?:[.,]\d+)?)`, intGroup(1)),
			rule("aderig", `(?i)(\d+)[-\s]?ader(?:ig|s)?`, intGroup(1)),
			rule("conductor_suffix", `(?i)(\d+)C\b`, intGroup(1)),
		},
		perMeter: regexp.MustCompile(`(?i)per\s+meter?`),
		length: Family[float64]{
			rule("meter", `(?i)(\d+(?:[.,]\d+)?)\s*(?:meter|m)\b`, floatGroup(1)),
			rule("kilometer", `(?i)(\d+(?:[.,]\d+)?)\s*km`, scaledFloatGroup(1, 1000)),
			rule("reel", `(?i)(?:ring|haspel|rol).*?(\d+)\s*m`, floatGroup(1)),
		},
		quantity: Family[int]{
			rule("pieces", `(?i)(?:per\s+)?(\d+)\s*(?:stuks?|st\.?|pcs?)`, intGroup(1)),
			rule("box", `(?i)(?:doos|box).*?(\d+)`, intGroup(1)),
			rule("pieces_per", `(?i)(\d+)\s*(?:stuks?|st\.?)\s*per`, intGroup(1)),
			rule("packaging", `(?i)verpakking\s*(\d+)`, intGroup(1)),
		},
		outerDiameter: Family[float64]{
			rule("diameter_sign", `(?i)[øØ∅](\d+(?:[.,]\d+)?)\s*mm`, floatGroup(1)),
			rule("diameter_word", `(?i)diameter\s*(\d+(?:[.,]\d+)?)\s*mm`, floatGroup(1)),
			// Inbouwdoos sizing "Ø16/19/20mm" reports the middle value.
			rule("box_sizing", `(?i)[øØ∅](\d+)/(\d+)/(\d+)mm`, floatGroup(2)),
		},
		network: newNetworkMatcher(),
	}
}

// Extract parses cable attributes from a title and optional description.
func (e *CableExtractor) Extract(title, description string) *CableRecord {
	text := joinText(title, description)

	rec := &CableRecord{Category: CableUnknown}
	rec.Type, rec.Category = e.extractType(text)
	rec.Diameter = e.diameter.Apply(text)
	rec.Conductors = e.conductors.Apply(text)
	rec.Length = e.extractLength(text)
	rec.Quantity = e.extractQuantity(text)
	rec.OuterDiameter = e.outerDiameter.Apply(text)

	if rec.Category == CableNetwork {
		rec.Network = e.network.extract(joinText(title), text)
	}
	return rec
}

func (e *CableExtractor) extractType(text string) (Field[string], CableCategory) {
	for _, m := range e.types {
		if m.pattern.MatchString(text) {
			return found(m.token, "cable_type"), m.category
		}
	}
	return Field[string]{}, CableUnknown
}

// "per meter" pricing means a length of exactly one meter, whatever other
// lengths the text mentions.
func (e *CableExtractor) extractLength(text string) Field[float64] {
	if e.perMeter.MatchString(text) {
		return found(1.0, "per_meter")
	}
	return e.length.Apply(text)
}

func (e *CableExtractor) extractQuantity(text string) Field[int] {
	if q := e.quantity.Apply(text); q.Found {
		return q
	}
	if containsAny(strings.ToLower(text), "per stuk", "per meter", "los") {
		return found(1, "single_unit")
	}
	return Field[int]{}
}

var packagingQuantity = regexp.MustCompile(`(\d+)\s*(meter|stuks?|rollen?)`)

// PackagingFormat describes how a cable listing is sold ("per rol", "100 meter").
func PackagingFormat(title string) Field[string] {
	lower := strings.ToLower(title)
	for _, format := range []string{"per rol", "per meter", "per stuk", "per doos"} {
		if strings.Contains(lower, format) {
			return found(format, "packaging_phrase")
		}
	}
	if m := packagingQuantity.FindStringSubmatch(lower); m != nil {
		return found(fmt.Sprintf("%s %s", m[1], m[2]), "packaging_quantity")
	}
	return Field[string]{}
}
