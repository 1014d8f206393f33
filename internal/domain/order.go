package domain

import "time"

// OrderLineItem is one product line of an order. Quantity never affects
// capability; only the presence of the product matters.
type OrderLineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderForRanking is the projection of an order the dispatch core needs.
type OrderForRanking struct {
	OrderID         int64           `json:"order_id"`
	CustomerAddress string          `json:"customer_address"`
	LineItems       []OrderLineItem `json:"line_items"`
}

// RestaurantCandidate is a restaurant that may be asked to prepare orders.
type RestaurantCandidate struct {
	RestaurantID int64  `json:"restaurant_id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
}

// MenuCapability is one row of the menu availability table.
type MenuCapability struct {
	RestaurantID int64 `json:"restaurant_id"`
	ProductID    int64 `json:"product_id"`
	Available    bool  `json:"available"`
}

// Snapshot is the immutable input of one dispatch batch.
type Snapshot struct {
	Orders       []OrderForRanking
	Restaurants  []RestaurantCandidate
	Capabilities []MenuCapability
}

// RankedRestaurant is one entry of an order's ranking.
type RankedRestaurant struct {
	RestaurantID int64   `json:"restaurant_id"`
	Name         string  `json:"name"`
	DistanceKm   float64 `json:"distance_km"`
}

// RankedResult is the dispatch outcome for one order.
type RankedResult struct {
	OrderID int64 `json:"order_id"`

	// Ranking is ordered by ascending distance. It is empty when the order is
	// unroutable or when DistancesAvailable is false.
	Ranking []RankedRestaurant `json:"ranking"`

	// DistancesAvailable is false only when the customer address is unresolved.
	DistancesAvailable bool `json:"distances_available"`

	// Capable lists the IDs of every restaurant able to prepare the whole
	// order, in restaurant input order, whether or not it could be ranked.
	Capable []int64 `json:"capable"`

	ComputedAt time.Time `json:"computed_at"`
}

// Unroutable reports whether no restaurant can prepare the whole order.
func (r RankedResult) Unroutable() bool {
	return len(r.Capable) == 0
}

// NewRankedResult assembles a result stamped with the package clock.
func NewRankedResult(orderID int64, capable []RestaurantCandidate, ranking []RankedRestaurant, distancesAvailable bool) RankedResult {
	ids := make([]int64, len(capable))
	for i, c := range capable {
		ids[i] = c.RestaurantID
	}
	if ranking == nil {
		ranking = []RankedRestaurant{}
	}
	return RankedResult{
		OrderID:            orderID,
		Ranking:            ranking,
		DistancesAvailable: distancesAvailable,
		Capable:            ids,
		ComputedAt:         clock.Now().UTC(),
	}
}
