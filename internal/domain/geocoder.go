package domain

import "context"

// Geocoder resolves a free-form address to a coordinate.
//
// An address the provider does not know yields (Unresolved, nil). Transport
// failures, timeouts and malformed responses are returned as errors; callers
// decide how to degrade.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinate, error)
}
