package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFamily_FirstMatchDecides(t *testing.T) {
	family := Family[int]{
		rule("product_code", `(\d+)x\d`, intGroup(1)),
		rule("aderig", `(\d+)-aderig`, intGroup(1)),
	}

	got := family.Apply("4-aderig 3x2.5")
	assert.True(t, got.Found)
	assert.Equal(t, 3, got.Value)
	assert.Equal(t, "product_code", got.Rule)

	got = family.Apply("4-aderig")
	assert.Equal(t, 4, got.Value)
	assert.Equal(t, "aderig", got.Rule)
}

func TestFamily_RejectedMatchStaysUnknown(t *testing.T) {
	family := Family[int]{
		rule("product_code", `(\d+)x\d`, intGroup(1)),
		rule("aderig", `(\d+)-aderig`, intGroup(1)),
	}

	// The conductor count overflows int, so the field is unknown rather than
	// falling through to the aderig rule.
	got := family.Apply("99999999999999999999x2.5 3-aderig")
	assert.False(t, got.Found)
	assert.Equal(t, 0, got.Value)
}

func TestCableExtractor_OverflowingConductorsStayUnknown(t *testing.T) {
	rec := NewCableExtractor().Extract("YMvK 99999999999999999999x2.5mm² 3-aderig", "")
	assert.False(t, rec.Conductors.Found)
	assert.Equal(t, 2.5, rec.Diameter.Value)
}
