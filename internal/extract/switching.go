package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// SwitchingRecord holds the attributes extracted from a switching-material
// listing (switches, sockets, dimmers, frames).
type SwitchingRecord struct {
	ProductType   Field[ProductType]
	SwitchType    Field[SwitchType]
	SocketType    Field[SocketType]
	Voltage       Field[int]
	Current       Field[int] // ampere
	Power         Field[int] // watt
	Poles         Field[int]
	FrameSlots    Field[int]
	MountingDepth Field[float64] // mm
	Color         Field[string]
	Series        Field[string]

	// Feature flags are only ever found true; absence stays undetermined.
	LEDIndication   Field[bool]
	ChildProtection Field[bool]
	SmartCompatible Field[bool]
	IPRating        Field[string]

	Quantity      Field[int]
	IncludesFrame Field[bool]
}

type SwitchingExtractor struct {
	productTypes []Keyword[ProductType]
	switchTypes  []Keyword[SwitchType]
	voltage      Family[int]
	current      Family[int]
	power        Family[int]
	poles        Family[int]
	frameSlots   Family[int]
	depth        Family[float64]
	colors       Family[string]
	series       Family[string]
	led          *regexp.Regexp
	child        *regexp.Regexp
	smart        *regexp.Regexp
	ip           Family[string]
	quantity     Family[int]
}

func NewSwitchingExtractor() *SwitchingExtractor {
	return &SwitchingExtractor{
		productTypes: []Keyword[ProductType]{
			{ProductSwitch, regexp.MustCompile(`(?i)\b(?:\w*schakelaar|switch|schak\.?)\b`)},
			{ProductSocket, regexp.MustCompile(`(?i)\b(?:\w*stopcontact|socket|wandcontactdoos|wcd)\b`)},
			{ProductDimmer, regexp.MustCompile(`(?i)\b(?:dimmer|dim\.?)\b`)},
			{ProductPushButton, regexp.MustCompile(`(?i)\b(?:drukknop|druktoets|push.*?button)\b`)},
			{ProductFrame, regexp.MustCompile(`(?i)\b(?:frame|afdekframe|afdekking)\b`)},
			{ProductModule, regexp.MustCompile(`(?i)\b(?:module|inzet|mechanism)\b`)},
			{ProductBlankPlate, regexp.MustCompile(`(?i)\b(?:blindplaat|blind.*?plate|afdekplaat)\b`)},
		},
		// Inflected forms ("enkelpolige") and compounds ("wisselschakelaar")
		// count as the same switch type. Compound product words
		// ("wisselschakelaar", "wandstopcontact") count as the base product.
		switchTypes: []Keyword[SwitchType]{
			{SwitchSingle, regexp.MustCompile(`(?i)\b(?:enkelpolige?|1[-\s]?polige?|single)\b`)},
			{SwitchDouble, regexp.MustCompile(`(?i)\b(?:dubbelpolige?|2[-\s]?polige?|double)\b`)},
			{SwitchCrossover, regexp.MustCompile(`(?i)\b(?:wissel(?:schakelaar)?|crossover|cross)\b`)},
			{SwitchIntermediate, regexp.MustCompile(`(?i)\b(?:kruis|intermediate|kruisschakelaar)\b`)},
			{SwitchPushButton, regexp.MustCompile(`(?i)\b(?:druk|push|druktoets|drukknop|bel)\b`)},
			{SwitchSeries, regexp.MustCompile(`(?i)\b(?:serie|series|serieschakelaar)\b`)},
		},
		voltage: Family[int]{
			rule("volt", `(\d+)\s*[Vv](?:olt)?`, func(m []string) (int, bool) {
				v, ok := parseInt(m[1])
				return normalizeVoltage(v), ok
			}),
		},
		current: Family[int]{
			rule("ampere", `(\d+)\s*[Aa](?:mp|mpère)?`, intGroup(1)),
		},
		power: Family[int]{
			rule("watt", `(\d+)\s*[Ww](?:att)?`, intGroup(1)),
		},
		poles: Family[int]{
			rule("polig", `(?i)(\d+)[-\s]?polig`, intGroup(1)),
		},
		frameSlots: Family[int]{
			rule("voudig", `(\d+)[-\s]?voudig`, intGroup(1)),
			rule("gang", `(\d+)[-\s]?gang`, intGroup(1)),
			rule("vaks", `(\d+)[-\s]?vaks?`, intGroup(1)),
			rule("word", `\b(single|double|triple|quad)\b`, func(m []string) (int, bool) {
				n, ok := frameSlotWords[strings.ToLower(m[1])]
				return n, ok
			}),
		},
		depth: Family[float64]{
			rule("inbouwdiepte", `(?i)(?:inbouwdiepte|depth).*?(\d+(?:[.,]\d+)?)\s*mm`, floatGroup(1)),
		},
		colors: Family[string]{
			colorRule("white", `(?i)\b(wit|white|weiss)\b`),
			colorRule("black", `(?i)\b(zwart|black|schwarz|antraciet)\b`),
			colorRule("grey", `(?i)\b(grijs|grey?|gray)\b`),
			colorRule("stainless", `(?i)\b(rvs|inox|stainless|steel)\b`),
			colorRule("bronze", `(?i)\b(brons|bronze|brons[e]?)\b`),
			colorRule("gold", `(?i)\b(goud|gold|messing|brass)\b`),
			colorRule("aluminium", `(?i)\b(aluminium|alu|silver)\b`),
		},
		series: Family[string]{
			seriesRule("gira", `(?i)gira\s*(e2|e3|e22|event|esprit|classix|studio)`),
			seriesRule("jung", `(?i)jung\s*(a\d+|as\d+|cd\d+|ls\d+)`),
			seriesRule("berker", `(?i)berker\s*(\w+)`),
			seriesRule("generic", `(?i)\b(\w+\s+(?:serie|series|line))\b`),
		},
		led:   regexp.MustCompile(`(?i)\b(?:led|lamp|verlichting|glow)\b`),
		child: regexp.MustCompile(`(?i)\b(?:kinderveilig|child.*?proof|veilig)\b`),
		smart: regexp.MustCompile(`(?i)\b(?:smart|wifi|zigbee|z-wave|app)\b`),
		ip: Family[string]{
			rule("ip_code", `(?i)\bip\s*(\d{2})\b`, func(m []string) (string, bool) {
				return fmt.Sprintf("IP%s", m[1]), true
			}),
		},
		quantity: Family[int]{
			rule("pieces", `(?i)(?:per\s+)?(\d+)\s*(?:stuks?|st\.?|pcs?)`, intGroup(1)),
			rule("pieces_per", `(?i)(\d+)\s*stuks?\s*per`, intGroup(1)),
			rule("packaging", `(?i)verpakking\s*(\d+)`, intGroup(1)),
		},
	}
}

// Extract parses switching-material attributes. The breadcrumb is part of the
// scanned text because it often carries the product kind.
func (e *SwitchingExtractor) Extract(title, description, breadcrumb string) *SwitchingRecord {
	text := joinText(breadcrumb, title, description)
	lower := strings.ToLower(text)

	rec := &SwitchingRecord{
		ProductType:   firstKeyword(e.productTypes, text, "product_type"),
		SwitchType:    firstKeyword(e.switchTypes, text, "switch_type"),
		SocketType:    extractSocket(lower),
		Voltage:       e.voltage.Apply(text),
		Current:       e.current.Apply(text),
		Power:         e.power.Apply(text),
		Poles:         e.extractPoles(text, lower),
		FrameSlots:    e.frameSlots.Apply(text),
		MountingDepth: e.depth.Apply(text),
		Color:         e.colors.Apply(text),
		Series:        e.series.Apply(text),
		IPRating:      e.ip.Apply(text),
		Quantity:      e.extractQuantity(text, lower),
		IncludesFrame: includesFrame(lower),
	}

	rec.LEDIndication = presence(e.led, text, "led_indication")
	rec.ChildProtection = presence(e.child, text, "child_protection")
	rec.SmartCompatible = presence(e.smart, text, "smart_compatible")
	return rec
}

func (e *SwitchingExtractor) extractPoles(text, lower string) Field[int] {
	if p := e.poles.Apply(text); p.Found {
		return p
	}
	switch {
	case containsAny(lower, "enkelpolig", "single"):
		return found(1, "single_pole_word")
	case containsAny(lower, "dubbelpolig", "double"):
		return found(2, "double_pole_word")
	}
	return Field[int]{}
}

func (e *SwitchingExtractor) extractQuantity(text, lower string) Field[int] {
	if q := e.quantity.Apply(text); q.Found {
		return q
	}
	if containsAny(lower, "per stuk", "los") {
		return found(1, "single_unit")
	}
	return Field[int]{}
}

func extractSocket(lower string) Field[SocketType] {
	for _, st := range socketTerms {
		if strings.Contains(lower, st.term) {
			return found(st.socket, "socket_term")
		}
	}
	return Field[SocketType]{}
}

func includesFrame(lower string) Field[bool] {
	switch {
	case containsAny(lower, "inclusief frame", "met frame", "incl. frame"):
		return found(true, "frame_included")
	case containsAny(lower, "exclusief frame", "zonder frame", "excl. frame"):
		return found(false, "frame_excluded")
	}
	return Field[bool]{}
}

func presence(pattern *regexp.Regexp, text, name string) Field[bool] {
	if pattern.MatchString(text) {
		return found(true, name)
	}
	return Field[bool]{}
}

// normalizeVoltage folds the common mains variants onto 230 and 400.
func normalizeVoltage(v int) int {
	switch v {
	case 220, 230, 240:
		return 230
	case 380, 400:
		return 400
	}
	return v
}

func colorRule(name, pattern string) Rule[string] {
	return rule(name, pattern, func(m []string) (string, bool) {
		color := strings.ToLower(m[1])
		if canonical, ok := colorNames[color]; ok {
			return canonical, true
		}
		return color, true
	})
}

// Series names are reported as written in the text.
func seriesRule(name, pattern string) Rule[string] {
	return rule(name, pattern, func(m []string) (string, bool) {
		series := strings.TrimSpace(m[1])
		return series, series != ""
	})
}
