package geofence

import (
	"errors"
	"math"
)

// EarthRadiusKm is the IUGG mean Earth radius.
const EarthRadiusKm = 6371.0088

var ErrInvalidCoordinates = errors.New("coordinates out of range")

// Result is the outcome of a geofence check.
type Result struct {
	IsValid    bool    `json:"is_valid"`
	DistanceKm float64 `json:"distance_km"`
}

// Distance returns the great-circle distance in kilometres between two points
// using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a a hair above 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// Validate checks whether the appointment location lies inside the
// professional's service radius. The boundary itself is inside.
func Validate(apptLat, apptLng, proLat, proLng, radiusKm float64) (Result, error) {
	if !ValidCoordinates(apptLat, apptLng) || !ValidCoordinates(proLat, proLng) {
		return Result{}, ErrInvalidCoordinates
	}

	d := Distance(apptLat, apptLng, proLat, proLng)
	return Result{
		IsValid:    d <= radiusKm,
		DistanceKm: d,
	}, nil
}

// ValidCoordinates reports whether lat/lng are within WGS84 bounds.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
