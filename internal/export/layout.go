package export

import (
	"strconv"
	"time"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

// Sheet names, one per product family.
const (
	SheetGroundCables       = "Grondkabels"
	SheetNetworkCables      = "Netwerkkabels"
	SheetAVCables           = "AV_Kabels"
	SheetIndustrialCables   = "Industriele_Kabels"
	SheetInstallationCables = "Installatiekabels"
	SheetSwitching          = "Schakelmateriaal"
	SheetOther              = "Overige_Producten"
)

const maxDescriptionRunes = 500

// SheetFor routes a product to its sheet. Cables are split by cable
// category; anything unrecognised lands in Overige_Producten.
func SheetFor(p *models.Product) string {
	switch p.Category {
	case models.CategoryCable:
		switch p.Attribute("cable_category") {
		case "ground":
			return SheetGroundCables
		case "network":
			return SheetNetworkCables
		case "av":
			return SheetAVCables
		case "industrial":
			return SheetIndustrialCables
		default:
			return SheetInstallationCables
		}
	case models.CategorySwitching:
		return SheetSwitching
	default:
		return SheetOther
	}
}

type column struct {
	header string
	value  func(p *models.Product, sourceURL string) any
}

func text(header string, get func(p *models.Product) string) column {
	return column{header, func(p *models.Product, _ string) any { return get(p) }}
}

func attr(header, key string) column {
	return column{header, func(p *models.Product, _ string) any { return p.Attribute(key) }}
}

var (
	sourceColumn = column{"Category_Source_URL", func(_ *models.Product, src string) any { return src }}
	urlColumn    = text("Product_URL", func(p *models.Product) string { return p.URL })

	productColumns = []column{
		text("Title", func(p *models.Product) string { return p.Title }),
		text("Brand", func(p *models.Product) string { return p.Brand }),
		text("Price", func(p *models.Product) string { return p.Price }),
		text("Currency", func(p *models.Product) string { return p.Currency }),
		text("Amount/Quantity", func(p *models.Product) string { return p.Amount }),
		text("SKU", func(p *models.Product) string { return p.SKU }),
		text("GTIN13", func(p *models.Product) string { return p.GTIN13 }),
		text("Availability", func(p *models.Product) string { return p.Availability }),
		text("Delivery Time", func(p *models.Product) string { return p.DeliveryTime }),
		text("Primary Category", func(p *models.Product) string { return p.PrimaryCategory }),
		text("All Categories", func(p *models.Product) string { return p.AllCategories() }),
		text("Description", func(p *models.Product) string { return truncate(p.Description, maxDescriptionRunes) }),
		text("Color", func(p *models.Product) string { return p.Color }),
		text("Material", func(p *models.Product) string { return p.Material }),
		text("Image URL", func(p *models.Product) string { return p.Image }),
	}

	trailerColumns = []column{
		{"Data Quality %", func(p *models.Product, _ string) any { return percent(p.Quality.Percentage) }},
		{"Scrape Status", func(_ *models.Product, _ string) any { return "Success" }},
		{"Scraped Date", func(p *models.Product, _ string) any { return p.ParsedAt.UTC().Format(time.RFC3339) }},
	}

	cableColumns = []column{
		attr("Cable Type", "cable_type"),
		attr("Cable Category", "cable_category"),
		attr("Diameter (mm²)", "diameter_mm2"),
		attr("Conductor Count", "conductor_count"),
		attr("Length (m)", "length_meters"),
		attr("Quantity per Unit", "quantity_per_unit"),
		attr("Outer Diameter (mm)", "outer_diameter_mm"),
		attr("Packaging Format", "packaging_format"),
		attr("Parsing Confidence", "parsing_confidence"),
	}

	networkColumns = []column{
		attr("Cable Type", "cable_type"),
		attr("Network Category", "network_category"),
		attr("Shielding Type", "shielding_type"),
		attr("Bandwidth", "bandwidth"),
		attr("Length (m)", "length_meters"),
		attr("Conductor Count", "conductor_count"),
		attr("Packaging Format", "packaging_format"),
		attr("Parsing Confidence", "parsing_confidence"),
	}

	switchingColumns = []column{
		attr("Product Type", "product_type"),
		attr("Switch Type", "switch_type"),
		attr("Socket Type", "socket_type"),
		attr("Voltage (V)", "voltage"),
		attr("Current (A)", "current"),
		attr("Power (W)", "power"),
		attr("Poles", "poles"),
		attr("Frame Slots", "frame_slots"),
		attr("Mounting Depth (mm)", "mounting_depth"),
		attr("Switching Color", "switching_color"),
		attr("Series", "series"),
		attr("LED Indication", "led_indication"),
		attr("Child Protection", "child_protection"),
		attr("IP Rating", "ip_rating"),
		attr("Smart Compatible", "smart_compatible"),
		attr("Switching Quantity", "switching_quantity"),
		attr("Includes Frame", "includes_frame"),
		attr("Parsing Confidence", "switching_parsing_confidence"),
	}

	otherColumns = []column{
		text("Product Category", func(p *models.Product) string { return p.Category }),
	}
)

var layouts = map[string][]column{
	SheetGroundCables:       layout(cableColumns),
	SheetAVCables:           layout(cableColumns),
	SheetIndustrialCables:   layout(cableColumns),
	SheetInstallationCables: layout(cableColumns),
	SheetNetworkCables:      layout(networkColumns),
	SheetSwitching:          layout(switchingColumns),
	SheetOther:              layout(otherColumns),
}

func layout(specific []column) []column {
	cols := make([]column, 0, 2+len(productColumns)+len(specific)+len(trailerColumns))
	cols = append(cols, sourceColumn, urlColumn)
	cols = append(cols, productColumns...)
	cols = append(cols, specific...)
	return append(cols, trailerColumns...)
}

func columnsFor(sheet string) []column {
	if cols, ok := layouts[sheet]; ok {
		return cols
	}
	return layouts[SheetOther]
}

// HeadersFor returns the header row of a sheet. Unknown sheet names get the
// generic layout.
func HeadersFor(sheet string) []string {
	cols := columnsFor(sheet)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.header
	}
	return headers
}

// RowFor renders product as a row of sheet, aligned with HeadersFor(sheet).
func RowFor(sheet string, p *models.Product, sourceURL string) []any {
	cols := columnsFor(sheet)
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = c.value(p, sourceURL)
	}
	return row
}

// SheetRows is the rows routed to one sheet.
type SheetRows struct {
	Sheet string
	Rows  [][]any
}

// Group routes products to sheets, keeping the order in which sheets and
// products first appear.
func Group(products []*models.Product, sourceURL string) []SheetRows {
	var groups []SheetRows
	index := make(map[string]int)
	for _, p := range products {
		if p == nil {
			continue
		}
		sheet := SheetFor(p)
		i, ok := index[sheet]
		if !ok {
			i = len(groups)
			index[sheet] = i
			groups = append(groups, SheetRows{Sheet: sheet})
		}
		groups[i].Rows = append(groups[i].Rows, RowFor(sheet, p, sourceURL))
	}
	return groups
}

func percent(n int) string {
	return strconv.Itoa(n) + "%"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
