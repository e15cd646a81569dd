// Package geo provides geographic coordinate types and great-circle distance
// computation for market radius queries.
package geo

import "math"

// EarthRadiusMiles is the mean Earth radius used for all distance computations.
// Distances throughout the system are expressed in miles.
const EarthRadiusMiles = 3958.8

// Point represents a geographic coordinate with latitude and longitude in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Miles returns the great-circle distance between two coordinates in miles,
// using the haversine formula. Inputs are degrees; conversion to radians
// happens internally. Callers must filter out markets without coordinates
// before calling; there is no error path.
func Miles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMiles * c
}

// Distance returns the great-circle distance between two points in miles.
func Distance(a, b Point) float64 {
	return Miles(a.Lat, a.Lng, b.Lat, b.Lng)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
