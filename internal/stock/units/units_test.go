package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func TestToBase(t *testing.T) {
	tests := []struct {
		name     string
		qty      int
		factor   *int
		expected int
	}{
		{"with factor", 2, intPtr(20), 40},
		{"factor of two", 3, intPtr(2), 6},
		{"no factor configured", 5, nil, 5},
		{"factor below minimum ignored", 5, intPtr(1), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToBase(tt.qty, tt.factor))
		})
	}
}

func TestToPresentation(t *testing.T) {
	tests := []struct {
		name     string
		baseQty  int
		factor   *int
		expected Presentation
	}{
		{"exact multiple", 40, intPtr(20), Presentation{WholeUnits: 2, Remainder: 0}},
		{"with remainder", 35, intPtr(20), Presentation{WholeUnits: 1, Remainder: 15}},
		{"less than one unit", 7, intPtr(20), Presentation{WholeUnits: 0, Remainder: 7}},
		{"no factor configured", 35, nil, Presentation{WholeUnits: 0, Remainder: 35}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToPresentation(tt.baseQty, tt.factor))
		})
	}
}

func TestConversionRoundTrip(t *testing.T) {
	// wholeUnits * factor + remainder must reconstruct the base quantity
	for factor := 2; factor <= 50; factor++ {
		for n := 1; n <= 100; n++ {
			base := ToBase(n, &factor)
			p := ToPresentation(base, &factor)
			assert.Equal(t, base, p.WholeUnits*factor+p.Remainder,
				"round trip failed for n=%d factor=%d", n, factor)
		}
	}
}

func TestValidConfiguration(t *testing.T) {
	assert.True(t, ValidConfiguration(nil, nil))
	assert.True(t, ValidConfiguration(strPtr(""), nil))
	assert.True(t, ValidConfiguration(strPtr("blister"), intPtr(20)))
	assert.True(t, ValidConfiguration(strPtr("box"), intPtr(2)))
	assert.False(t, ValidConfiguration(strPtr("blister"), nil))
	assert.False(t, ValidConfiguration(strPtr("blister"), intPtr(1)))
	assert.False(t, ValidConfiguration(strPtr("blister"), intPtr(0)))
}
