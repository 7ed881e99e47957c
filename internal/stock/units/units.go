// Package units translates between a stock item's base unit of measure
// and its optional purchase-presentation unit (e.g. 1 blister = 20 tablets).
package units

// MinConversionFactor is the smallest meaningful packaging factor. A
// presentation unit that holds fewer than 2 base units is no packaging at all.
const MinConversionFactor = 2

// Presentation is a display-only breakdown of a base quantity into whole
// presentation units plus a remainder of base units. It is never used as an
// authoritative quantity.
type Presentation struct {
	WholeUnits int `json:"whole_units"`
	Remainder  int `json:"remainder"`
}

// ToBase converts a presentation quantity to base units. When no conversion
// factor is configured the quantity is already in base units and is returned
// unchanged.
func ToBase(presentationQty int, conversionFactor *int) int {
	if conversionFactor == nil || *conversionFactor < MinConversionFactor {
		return presentationQty
	}
	return presentationQty * *conversionFactor
}

// ToPresentation breaks a base quantity into whole presentation units and a
// remainder. Without a configured factor everything stays in the remainder.
func ToPresentation(baseQty int, conversionFactor *int) Presentation {
	if conversionFactor == nil || *conversionFactor < MinConversionFactor {
		return Presentation{WholeUnits: 0, Remainder: baseQty}
	}
	return Presentation{
		WholeUnits: baseQty / *conversionFactor,
		Remainder:  baseQty % *conversionFactor,
	}
}

// ValidConfiguration reports whether a presentation unit and conversion
// factor pair is acceptable: either no presentation unit at all, or a
// presentation unit with a factor of at least MinConversionFactor.
func ValidConfiguration(presentationUnit *string, conversionFactor *int) bool {
	if presentationUnit == nil || *presentationUnit == "" {
		return true
	}
	return conversionFactor != nil && *conversionFactor >= MinConversionFactor
}
