// Package units provides shared constants and conversions for angle units
package units

import "math"

// Angle unit constants
const (
	Radians = "rad"
	Degrees = "deg"
)

// ValidUnits contains all valid angle unit values
var ValidUnits = []string{Radians, Degrees}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "rad, deg"
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// ConvertAngle converts an angle in radians to the target units.
// Internal state is kept in radians.
func ConvertAngle(rad float64, targetUnits string) float64 {
	switch targetUnits {
	case Degrees:
		return RadToDeg(rad)
	default:
		return rad
	}
}
