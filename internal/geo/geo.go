// Package geo provides great-circle math for positioning the drone relative to a subject
package geo

import "math"

// EarthRadiusMeters is the mean earth radius used for great-circle math.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether lat/lon are finite and inside WGS84 bounds.
func Valid(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// DistanceBearing returns the haversine great-circle distance in meters and
// the initial bearing in degrees from a to b. Bearing is normalized to
// [0, 360); identical points return bearing 0.
func DistanceBearing(a, b Point) (meters, bearingDeg float64) {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	meters = 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	if meters == 0 {
		return 0, 0
	}

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearingDeg = NormalizeBearing(math.Atan2(y, x) * 180 / math.Pi)
	return meters, bearingDeg
}

// Distance returns only the haversine distance in meters between a and b.
func Distance(a, b Point) float64 {
	m, _ := DistanceBearing(a, b)
	return m
}

// OffsetPoint returns the point reached by travelling distanceMeters along
// bearingDeg from origin. Longitude is normalized to [-180, 180).
func OffsetPoint(origin Point, distanceMeters, bearingDeg float64) Point {
	lat1 := origin.Lat * math.Pi / 180
	lon1 := origin.Lon * math.Pi / 180
	brng := bearingDeg * math.Pi / 180
	frac := distanceMeters / EarthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(frac) + math.Cos(lat1)*math.Sin(frac)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(frac)*math.Cos(lat1),
		math.Cos(frac)-math.Sin(lat1)*math.Sin(lat2),
	)

	lonDeg := lon2 * 180 / math.Pi
	// wrap to [-180, 180)
	lonDeg = math.Mod(lonDeg+540, 360) - 180
	return Point{Lat: lat2 * 180 / math.Pi, Lon: lonDeg}
}

// NormalizeBearing wraps a bearing in degrees to [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ReciprocalBearing returns the bearing pointing the opposite way, in [0, 360).
func ReciprocalBearing(deg float64) float64 {
	return NormalizeBearing(deg + 180)
}

// GimbalTilt returns the downward tilt angle in degrees for a camera to point
// at a subject horizontalMeters away and verticalMeters below the lens.
func GimbalTilt(horizontalMeters, verticalMeters float64) float64 {
	if horizontalMeters == 0 && verticalMeters == 0 {
		return 0
	}
	return math.Atan2(verticalMeters, horizontalMeters) * 180 / math.Pi
}
