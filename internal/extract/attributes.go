package extract

import (
	"fmt"
	"math"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

// Attributes is the flat record handed to the export layer. Every engine
// owned key is present; values that were not found are models.Unknown.
type Attributes map[string]any

func (a Attributes) set(key string, v any) {
	if v == nil {
		a[key] = models.Unknown
		return
	}
	a[key] = v
}

// FormatConfidence renders a completeness ratio as a rounded percentage.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(c*100)))
}

// CableAttributes flattens a cable result. title feeds the packaging format,
// which is read from the title only.
func CableAttributes(res *Result, title string) Attributes {
	attrs := Attributes{}
	rec := res.Cable
	if rec == nil {
		return attrs
	}

	attrs.set("cable_type", rec.Type.Any())
	attrs.set("cable_category", string(rec.Category))
	attrs.set("diameter_mm2", rec.Diameter.Any())
	attrs.set("conductor_count", rec.Conductors.Any())
	attrs.set("length_meters", rec.Length.Any())
	attrs.set("quantity_per_unit", rec.Quantity.Any())
	attrs.set("outer_diameter_mm", rec.OuterDiameter.Any())
	attrs.set("packaging_format", PackagingFormat(title).Any())

	if rec.Network != nil {
		attrs.set("network_category", rec.Network.Category.Any())
		attrs.set("shielding_type", rec.Network.Shielding.Any())
		attrs.set("bandwidth", rec.Network.Bandwidth.Any())
	}

	attrs["parsing_confidence"] = FormatConfidence(res.Confidence)
	attrs["parsing_warnings"] = warningMessages(res.Warnings)
	return attrs
}

// SwitchingAttributes flattens a switching-material result.
func SwitchingAttributes(res *Result) Attributes {
	attrs := Attributes{}
	rec := res.Switching
	if rec == nil {
		return attrs
	}

	attrs.set("product_type", enumAny(rec.ProductType))
	attrs.set("switch_type", enumAny(rec.SwitchType))
	attrs.set("socket_type", enumAny(rec.SocketType))
	attrs.set("voltage", rec.Voltage.Any())
	attrs.set("current", rec.Current.Any())
	attrs.set("power", rec.Power.Any())
	attrs.set("poles", rec.Poles.Any())
	attrs.set("frame_slots", rec.FrameSlots.Any())
	attrs.set("mounting_depth", rec.MountingDepth.Any())
	attrs.set("switching_color", rec.Color.Any())
	attrs.set("series", rec.Series.Any())
	attrs.set("led_indication", rec.LEDIndication.Any())
	attrs.set("child_protection", rec.ChildProtection.Any())
	attrs.set("ip_rating", rec.IPRating.Any())
	attrs.set("smart_compatible", rec.SmartCompatible.Any())
	attrs.set("switching_quantity", rec.Quantity.Any())
	attrs.set("includes_frame", rec.IncludesFrame.Any())

	attrs["switching_parsing_confidence"] = FormatConfidence(res.Confidence)
	return attrs
}

// enumAny boxes a string-kinded enum as a plain string for the sinks.
func enumAny[T ~string](f Field[T]) any {
	if !f.Found {
		return nil
	}
	return string(f.Value)
}

func warningMessages(warnings []ValidationWarning) []string {
	msgs := make([]string, 0, len(warnings))
	for _, w := range warnings {
		msgs = append(msgs, w.Message)
	}
	return msgs
}
