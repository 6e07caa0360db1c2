package extract

import (
	"regexp"
)

// CableCategory groups cable type tokens.
type CableCategory string

const (
	CableGround       CableCategory = "ground"
	CableInstallation CableCategory = "installation"
	CableNeopreen     CableCategory = "neopreen"
	CableWire         CableCategory = "wire"
	CableNetwork      CableCategory = "network"
	CableAV           CableCategory = "av"
	CableHousehold    CableCategory = "household"
	CableIndustrial   CableCategory = "industrial"
	CableLegacy       CableCategory = "legacy"
	CableUnknown      CableCategory = "unknown"
)

type cableTypeGroup struct {
	category CableCategory
	tokens   []string
}

// Declaration order is the match order: the first token found in the text
// is the reported type. Ground cables come first so "YMvK-AS" is not
// reported as plain installation "YMvK".
var cableTypeGroups = []cableTypeGroup{
	{CableGround, []string{"YMVK-AS", "XMVK-AS", "YMvK-AS", "XMvK-AS", "grondkabel"}},
	{CableInstallation, []string{"YMvK", "XMvK", "VMvK", "TKF", "YMvK-super-soepel"}},
	{CableNeopreen, []string{"Neopreen", "H07RN-F", "H05RR-F", "H05RN-F"}},
	{CableWire, []string{"VD", "NYAF", "aansluitdraad", "installatiedraad", "aarddraad", "aardedraad", "montagedraad"}},
	{CableNetwork, []string{"UTP", "FTP", "SFTP", "Cat5e", "Cat6", "Cat7", "netwerkkabel", "patchkabel"}},
	{CableAV, []string{"HDMI", "Coax", "coaxkabel", "antennekabel", "luidsprekerkabel", "USB", "displayport"}},
	{CableHousehold, []string{"netsnoer", "VMVL", "textielsnoer", "verlengkabel", "prikkabel", "DSL"}},
	{CableIndustrial, []string{"H07BQ-F", "PUR", "solar", "signaalkabel", "brandmeldkabel", "alarmkabel", "stuurstroomkabel", "laskabel", "H01N2-D", "ELFLEX"}},
	{CableLegacy, []string{"PFXP", "J-Y(St)Y", "NYM", "NKT", "AMS", "AMKA", "H07V-K", "H07V-U", "H05V-K", "H05V-U"}},
}

type cableTypeMatcher struct {
	token    string
	category CableCategory
	pattern  *regexp.Regexp
}

// compileCableTypes flattens the groups into whole-word, case-insensitive matchers.
func compileCableTypes() []cableTypeMatcher {
	var matchers []cableTypeMatcher
	for _, g := range cableTypeGroups {
		for _, token := range g.tokens {
			matchers = append(matchers, cableTypeMatcher{
				token:    token,
				category: g.category,
				pattern:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(token) + `\b`),
			})
		}
	}
	return matchers
}

// CableTypes lists every known cable type token in match order.
func CableTypes() []string {
	var tokens []string
	for _, g := range cableTypeGroups {
		tokens = append(tokens, g.tokens...)
	}
	return tokens
}
