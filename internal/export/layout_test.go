package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

func product(category string, attrs map[string]any) *models.Product {
	p := models.NewProduct(models.RawProduct{
		URL:        "https://www.elektramat.nl/p/",
		Title:      "Product",
		Categories: []string{"Kabels", "Installatiekabel"},
	})
	p.Category = category
	for k, v := range attrs {
		p.Attributes[k] = v
	}
	p.ParsedAt = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	return p
}

func TestSheetFor(t *testing.T) {
	tests := []struct {
		name    string
		product *models.Product
		want    string
	}{
		{"ground cable", product(models.CategoryCable, map[string]any{"cable_category": "ground"}), SheetGroundCables},
		{"network cable", product(models.CategoryCable, map[string]any{"cable_category": "network"}), SheetNetworkCables},
		{"av cable", product(models.CategoryCable, map[string]any{"cable_category": "av"}), SheetAVCables},
		{"industrial cable", product(models.CategoryCable, map[string]any{"cable_category": "industrial"}), SheetIndustrialCables},
		{"installation cable", product(models.CategoryCable, map[string]any{"cable_category": "installation"}), SheetInstallationCables},
		{"neopreen cable", product(models.CategoryCable, map[string]any{"cable_category": "neopreen"}), SheetInstallationCables},
		{"unknown cable category", product(models.CategoryCable, map[string]any{"cable_category": models.Unknown}), SheetInstallationCables},
		{"switching", product(models.CategorySwitching, nil), SheetSwitching},
		{"lighting", product(models.CategoryLighting, nil), SheetOther},
		{"other", product(models.CategoryOther, nil), SheetOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SheetFor(tt.product))
		})
	}
}

func TestHeadersAndRowsAlign(t *testing.T) {
	sheets := []string{
		SheetGroundCables, SheetNetworkCables, SheetAVCables, SheetIndustrialCables,
		SheetInstallationCables, SheetSwitching, SheetOther,
	}
	p := product(models.CategoryCable, nil)

	for _, sheet := range sheets {
		headers := HeadersFor(sheet)
		row := RowFor(sheet, p, "https://www.elektramat.nl/kabel/")
		assert.Len(t, row, len(headers), sheet)
		assert.Equal(t, "Category_Source_URL", headers[0], sheet)
		assert.Equal(t, "Scraped Date", headers[len(headers)-1], sheet)
	}

	assert.Equal(t, HeadersFor(SheetOther), HeadersFor("Blad1"))
}

func cellOf(t *testing.T, sheet, header string, row []any) any {
	t.Helper()
	for i, h := range HeadersFor(sheet) {
		if h == header {
			return row[i]
		}
	}
	t.Fatalf("no %q column in %s", header, sheet)
	return nil
}

func TestRowFor_Cable(t *testing.T) {
	p := product(models.CategoryCable, map[string]any{
		"cable_type":         "YMvK",
		"diameter_mm2":       2.5,
		"conductor_count":    3,
		"parsing_confidence": "67%",
	})
	p.Quality = models.DataQuality{Percentage: 62}

	row := RowFor(SheetInstallationCables, p, "https://www.elektramat.nl/kabel/")

	assert.Equal(t, "https://www.elektramat.nl/kabel/", cellOf(t, SheetInstallationCables, "Category_Source_URL", row))
	assert.Equal(t, "https://www.elektramat.nl/p/", cellOf(t, SheetInstallationCables, "Product_URL", row))
	assert.Equal(t, "Kabels, Installatiekabel", cellOf(t, SheetInstallationCables, "All Categories", row))
	assert.Equal(t, "YMvK", cellOf(t, SheetInstallationCables, "Cable Type", row))
	assert.Equal(t, 2.5, cellOf(t, SheetInstallationCables, "Diameter (mm²)", row))
	assert.Equal(t, 3, cellOf(t, SheetInstallationCables, "Conductor Count", row))
	assert.Equal(t, models.Unknown, cellOf(t, SheetInstallationCables, "Length (m)", row))
	assert.Equal(t, "67%", cellOf(t, SheetInstallationCables, "Parsing Confidence", row))
	assert.Equal(t, "62%", cellOf(t, SheetInstallationCables, "Data Quality %", row))
	assert.Equal(t, "Success", cellOf(t, SheetInstallationCables, "Scrape Status", row))
	assert.Equal(t, "2026-05-04T10:30:00Z", cellOf(t, SheetInstallationCables, "Scraped Date", row))
}

func TestRowFor_SwitchingTruncatesDescription(t *testing.T) {
	p := product(models.CategorySwitching, map[string]any{
		"product_type":                 "schakelaar",
		"led_indication":               true,
		"switching_parsing_confidence": "64%",
	})
	p.Description = strings.Repeat("é", 600)

	row := RowFor(SheetSwitching, p, "")
	desc, ok := cellOf(t, SheetSwitching, "Description", row).(string)
	require.True(t, ok)
	assert.Equal(t, 500, len([]rune(desc)))
	assert.Equal(t, "schakelaar", cellOf(t, SheetSwitching, "Product Type", row))
	assert.Equal(t, true, cellOf(t, SheetSwitching, "LED Indication", row))
	assert.Equal(t, models.Unknown, cellOf(t, SheetSwitching, "IP Rating", row))
	assert.Equal(t, "64%", cellOf(t, SheetSwitching, "Parsing Confidence", row))
}

func TestRowFor_Network(t *testing.T) {
	p := product(models.CategoryCable, map[string]any{
		"cable_category":   "network",
		"network_category": "Cat6a",
		"bandwidth":        "500 MHz",
	})
	row := RowFor(SheetNetworkCables, p, "")
	assert.Equal(t, "Cat6a", cellOf(t, SheetNetworkCables, "Network Category", row))
	assert.Equal(t, "500 MHz", cellOf(t, SheetNetworkCables, "Bandwidth", row))
	assert.Equal(t, models.Unknown, cellOf(t, SheetNetworkCables, "Shielding Type", row))
}

func TestGroup(t *testing.T) {
	products := []*models.Product{
		product(models.CategorySwitching, nil),
		product(models.CategoryCable, map[string]any{"cable_category": "installation"}),
		nil,
		product(models.CategorySwitching, nil),
		product(models.CategoryOther, nil),
	}

	groups := Group(products, "src")
	require.Len(t, groups, 3)
	assert.Equal(t, SheetSwitching, groups[0].Sheet)
	assert.Len(t, groups[0].Rows, 2)
	assert.Equal(t, SheetInstallationCables, groups[1].Sheet)
	assert.Equal(t, SheetOther, groups[2].Sheet)

	assert.Empty(t, Group(nil, ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "ØØ", truncate("ØØØ", 2))
}
