// Package units names the distance units a sensor may report in. A scope
// never converts readings; the unit only labels the range rings.
package units

import (
	"slices"
	"strconv"
	"strings"
)

// Unit constants
const (
	MM = "mm"
	CM = "cm"
	M  = "m"
	IN = "in"
	FT = "ft"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MM, CM, M, IN, FT}

var metres = map[string]float64{
	MM: 0.001,
	CM: 0.01,
	M:  1,
	IN: 0.0254,
	FT: 0.3048,
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	return slices.Contains(ValidUnits, unit)
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ToMetres converts a distance in unit to metres. Unknown or empty units
// are returned unchanged.
func ToMetres(v float64, unit string) float64 {
	if f, ok := metres[unit]; ok {
		return v * f
	}
	return v
}

// Label formats a distance for display with the unit appended, e.g.
// "25cm". An empty unit leaves the bare number.
func Label(v float64, unit string) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + unit
}
