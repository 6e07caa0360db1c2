package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule pairs a compiled pattern with the function that turns its submatches
// into a value. Extract may reject a match by returning ok=false, which
// leaves the field unknown.
type Rule[T any] struct {
	Name    string
	Pattern *regexp.Regexp
	Extract func(m []string) (v T, ok bool)
}

// Family is an ordered list of rules for one field. The first rule whose
// pattern matches decides the field; later rules are never consulted, even
// when Extract rejects the match. Compiled regexps hold no match state, so a Family can be
// shared by concurrent extractions.
type Family[T any] []Rule[T]

// Apply runs the family against text using the leftmost match of each rule.
func (f Family[T]) Apply(text string) Field[T] {
	for _, rule := range f {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := rule.Extract(m); ok {
			return found(v, rule.Name)
		}
		return Field[T]{}
	}
	return Field[T]{}
}

// Keyword is a named presence test.
type Keyword[T any] struct {
	Value   T
	Pattern *regexp.Regexp
}

// firstKeyword returns the value of the first keyword whose pattern matches.
func firstKeyword[T any](keywords []Keyword[T], text string, rule string) Field[T] {
	for _, kw := range keywords {
		if kw.Pattern.MatchString(text) {
			return found(kw.Value, rule)
		}
	}
	return Field[T]{}
}

func rule[T any](name, pattern string, extract func(m []string) (T, bool)) Rule[T] {
	return Rule[T]{
		Name:    name,
		Pattern: regexp.MustCompile(pattern),
		Extract: extract,
	}
}

// floatGroup parses submatch i as a decimal number, accepting "," as separator.
func floatGroup(i int) func(m []string) (float64, bool) {
	return func(m []string) (float64, bool) {
		return parseDecimal(m[i])
	}
}

// intGroup parses submatch i as an integer.
func intGroup(i int) func(m []string) (int, bool) {
	return func(m []string) (int, bool) {
		return parseInt(m[i])
	}
}

func scaledFloatGroup(i int, factor float64) func(m []string) (float64, bool) {
	return func(m []string) (float64, bool) {
		v, ok := parseDecimal(m[i])
		return v * factor, ok
	}
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return v, true
}

// containsAny reports whether lower contains any of the terms.
func containsAny(lower string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
