package extract

import (
	"fmt"
	"strconv"
)

// ValidationWarning is an advisory plausibility note. It never blocks export.
type ValidationWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w ValidationWarning) String() string {
	return w.Message
}

// Validate applies heuristic bounds to a cable record. It does not modify it.
func Validate(rec *CableRecord) []ValidationWarning {
	var warnings []ValidationWarning
	if rec == nil {
		return warnings
	}

	if d, ok := rec.Diameter.Get(); ok {
		if d > 1000 {
			warnings = append(warnings, ValidationWarning{"diameter", fmt.Sprintf("Diameter %smm² lijkt te hoog", formatNumber(d))})
		}
		if d < 0.1 {
			warnings = append(warnings, ValidationWarning{"diameter", fmt.Sprintf("Diameter %smm² lijkt te laag", formatNumber(d))})
		}
	}

	if c, ok := rec.Conductors.Get(); ok {
		if c > 50 {
			warnings = append(warnings, ValidationWarning{"conductors", fmt.Sprintf("%d aders lijkt veel", c)})
		}
		if c < 1 {
			warnings = append(warnings, ValidationWarning{"conductors", fmt.Sprintf("%d aders is ongeldig", c)})
		}
	}

	if l, ok := rec.Length.Get(); ok && l > 10000 {
		warnings = append(warnings, ValidationWarning{"length", fmt.Sprintf("Lengte %sm lijkt extreem", formatNumber(l))})
	}

	return warnings
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
