package domain

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Coordinate is a WGS-84 latitude/longitude pair in decimal degrees.
// The zero value is Unresolved.
type Coordinate struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Resolved bool    `json:"resolved"`
}

// Unresolved marks an address that could not be geocoded.
var Unresolved = Coordinate{}

// NewCoordinate returns a resolved coordinate.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon, Resolved: true}
}

// Valid reports whether c is resolved and within the WGS-84 bounds.
func (c Coordinate) Valid() bool {
	return c.Resolved && c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	if !c.Resolved {
		return "unresolved"
	}
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Distance returns the great-circle distance between a and b in kilometers
// using the haversine formula. Both coordinates must be resolved.
func Distance(a, b Coordinate) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Clamp guards against h drifting past 1 for antipodal points.
	h = math.Min(1, h)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// roundKm rounds a distance to two decimal places.
func roundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
