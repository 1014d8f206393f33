package domain

import (
	"cmp"
	"slices"
)

// Rank orders candidates by their great-circle distance from the customer.
//
// An unresolved customer yields an empty ranking and distancesAvailable=false.
// Otherwise candidates whose address is missing from coords or unresolved are
// skipped, and distancesAvailable is true regardless of how many were skipped.
// Ties on the rounded distance keep the candidate input order.
func Rank(customer Coordinate, candidates []RestaurantCandidate, coords map[string]Coordinate) (ranking []RankedRestaurant, distancesAvailable bool) {
	if !customer.Resolved {
		return []RankedRestaurant{}, false
	}

	ranking = make([]RankedRestaurant, 0, len(candidates))
	for _, c := range candidates {
		coord, ok := coords[c.Address]
		if !ok || !coord.Resolved {
			continue
		}
		ranking = append(ranking, RankedRestaurant{
			RestaurantID: c.RestaurantID,
			Name:         c.Name,
			DistanceKm:   roundKm(Distance(customer, coord)),
		})
	}

	slices.SortStableFunc(ranking, func(a, b RankedRestaurant) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	return ranking, true
}
