package extract

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// joinText concatenates the non-empty parts with single spaces after NFC
// normalization, so composed and decomposed forms of "²" or "Ø" match alike.
func joinText(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return strings.TrimSpace(norm.NFC.String(b.String()))
}

// CoerceText turns a loosely typed upstream value into text. Missing or
// unexpected values become the empty string instead of an error.
func CoerceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, " > ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := CoerceText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " > ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}
