package extract

// Canonical attribute slots counted by the completeness score.
var (
	CableCanonicalFields = []string{
		"type", "diameter", "conductors", "length", "quantity", "outer_diameter",
	}
	SwitchingCanonicalFields = []string{
		"product_type", "switch_type", "socket_type", "voltage", "current",
		"power", "poles", "frame_slots", "color", "series", "quantity",
	}
)

// FieldSet reports whether a named attribute slot was populated.
type FieldSet interface {
	Has(field string) bool
}

// Score is the fraction of fields populated in record. It is a completeness
// ratio in [0,1], not a statistical confidence.
func Score(record FieldSet, fields []string) float64 {
	if record == nil || len(fields) == 0 {
		return 0
	}
	n := 0
	for _, f := range fields {
		if record.Has(f) {
			n++
		}
	}
	return float64(n) / float64(len(fields))
}

func (r *CableRecord) Has(field string) bool {
	if r == nil {
		return false
	}
	switch field {
	case "type":
		return r.Type.Found
	case "diameter":
		return r.Diameter.Found
	case "conductors":
		return r.Conductors.Found
	case "length":
		return r.Length.Found
	case "quantity":
		return r.Quantity.Found
	case "outer_diameter":
		return r.OuterDiameter.Found
	}
	return false
}

func (r *SwitchingRecord) Has(field string) bool {
	if r == nil {
		return false
	}
	switch field {
	case "product_type":
		return r.ProductType.Found
	case "switch_type":
		return r.SwitchType.Found
	case "socket_type":
		return r.SocketType.Found
	case "voltage":
		return r.Voltage.Found
	case "current":
		return r.Current.Found
	case "power":
		return r.Power.Found
	case "poles":
		return r.Poles.Found
	case "frame_slots":
		return r.FrameSlots.Found
	case "mounting_depth":
		return r.MountingDepth.Found
	case "color":
		return r.Color.Found
	case "series":
		return r.Series.Found
	case "ip_rating":
		return r.IPRating.Found
	case "quantity":
		return r.Quantity.Found
	}
	return false
}
