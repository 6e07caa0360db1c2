package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// NetworkSpecs are the extra attributes derived for network cables.
type NetworkSpecs struct {
	Category  Field[string] // Cat5 .. Cat8
	Shielding Field[string] // S/FTP, F/UTP, U/UTP
	Bandwidth Field[string] // "250 MHz"
}

type substringValue struct {
	value string
	terms []string
}

// Most specific first: "cat6a" contains "cat6", "cat5e" contains "cat5".
var networkCategories = []substringValue{
	{"Cat8", []string{"cat8"}},
	{"Cat7", []string{"cat7"}},
	{"Cat6a", []string{"cat6a"}},
	{"Cat6", []string{"cat6"}},
	{"Cat5e", []string{"cat5e"}},
	{"Cat5", []string{"cat5"}},
}

var shieldingTypes = []substringValue{
	{"S/FTP", []string{"sftp", "s/ftp"}},
	{"F/UTP", []string{"ftp", "f/utp"}},
	{"U/UTP", []string{"utp", "u/utp"}},
}

// Nominal bandwidth per category when the listing does not state one.
var categoryBandwidth = map[string]string{
	"Cat8":  "2000 MHz",
	"Cat7":  "600 MHz",
	"Cat6a": "500 MHz",
	"Cat6":  "250 MHz",
	"Cat5e": "100 MHz",
}

type networkMatcher struct {
	bandwidth *regexp.Regexp
}

func newNetworkMatcher() *networkMatcher {
	return &networkMatcher{
		bandwidth: regexp.MustCompile(`(?i)(\d+)\s*mhz`),
	}
}

// extract reads category and shielding from the title and bandwidth from
// the full text.
func (n *networkMatcher) extract(title, text string) *NetworkSpecs {
	lowerTitle := strings.ToLower(title)

	specs := &NetworkSpecs{
		Category:  firstSubstring(networkCategories, lowerTitle, "network_category"),
		Shielding: firstSubstring(shieldingTypes, lowerTitle, "shielding"),
	}

	if m := n.bandwidth.FindStringSubmatch(text); m != nil {
		specs.Bandwidth = found(fmt.Sprintf("%s MHz", m[1]), "bandwidth_mhz")
	} else if cat, ok := specs.Category.Get(); ok {
		if bw, ok := categoryBandwidth[cat]; ok {
			specs.Bandwidth = found(bw, "bandwidth_category")
		}
	}
	return specs
}

func firstSubstring(values []substringValue, lower, rule string) Field[string] {
	for _, v := range values {
		if containsAny(lower, v.terms...) {
			return found(v.value, rule)
		}
	}
	return Field[string]{}
}
