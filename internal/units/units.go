// Package units provides shared constants and conversions for display units
package units

// Unit system constants
const (
	Metric   = "metric"
	Imperial = "imperial"
)

// ValidSystems contains all valid unit system values
var ValidSystems = []string{Metric, Imperial}

// IsValid checks if the given system is in the list of valid unit systems
func IsValid(system string) bool {
	for _, validSystem := range ValidSystems {
		if system == validSystem {
			return true
		}
	}
	return false
}

// GetValidSystemsString returns a comma-separated string of valid systems for error messages
func GetValidSystemsString() string {
	return "metric, imperial"
}

// MetersToFeet converts a distance in meters to feet
func MetersToFeet(meters float64) float64 {
	return meters * 3.28084
}

// KnotsToMetersPerSecond converts a speed over ground in knots to m/s.
// NMEA RMC sentences report speed over ground in knots.
func KnotsToMetersPerSecond(knots float64) float64 {
	return knots * 0.514444
}
