package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	restaurantA = RestaurantCandidate{RestaurantID: 1, Name: "A", Address: "Addr-A"}
	restaurantB = RestaurantCandidate{RestaurantID: 2, Name: "B", Address: "Addr-B"}
	restaurantC = RestaurantCandidate{RestaurantID: 3, Name: "C", Address: "Addr-C"}
)

// A offers {1,2}, B offers {1}, C offers {2}.
func capableRestaurants(items []OrderLineItem, rows []MenuCapability, restaurants []RestaurantCandidate) []RestaurantCandidate {
	return NewCapabilityIndex(rows).Capable(items, restaurants)
}

func abcMenu() []MenuCapability {
	return []MenuCapability{
		{RestaurantID: 1, ProductID: 1, Available: true},
		{RestaurantID: 1, ProductID: 2, Available: true},
		{RestaurantID: 2, ProductID: 1, Available: true},
		{RestaurantID: 2, ProductID: 2, Available: false},
		{RestaurantID: 3, ProductID: 2, Available: true},
	}
}

func ids(rs []RestaurantCandidate) []int64 {
	out := make([]int64, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.RestaurantID)
	}
	return out
}

func TestCapableRestaurants_Intersection(t *testing.T) {
	restaurants := []RestaurantCandidate{restaurantA, restaurantB, restaurantC}

	both := capableRestaurants([]OrderLineItem{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 3}}, abcMenu(), restaurants)
	assert.Equal(t, []int64{1}, ids(both))

	onlyFirst := capableRestaurants([]OrderLineItem{{ProductID: 1, Quantity: 1}}, abcMenu(), restaurants)
	assert.Equal(t, []int64{1, 2}, ids(onlyFirst))
}

func TestCapableRestaurants_DisjointSetsAreUnroutable(t *testing.T) {
	// B only offers 1, C only offers 2: nobody covers both.
	restaurants := []RestaurantCandidate{restaurantB, restaurantC}

	got := capableRestaurants([]OrderLineItem{{ProductID: 1}, {ProductID: 2}}, abcMenu(), restaurants)
	assert.Empty(t, got)
}

func TestCapableRestaurants_MissingRowIsUnavailable(t *testing.T) {
	rows := []MenuCapability{{RestaurantID: 1, ProductID: 7, Available: true}}

	got := capableRestaurants([]OrderLineItem{{ProductID: 7}, {ProductID: 8}}, rows, []RestaurantCandidate{restaurantA})
	assert.Empty(t, got)
}

func TestCapableRestaurants_NoLineItems(t *testing.T) {
	got := capableRestaurants(nil, abcMenu(), []RestaurantCandidate{restaurantA, restaurantB})
	assert.Empty(t, got)
}

func TestCapableRestaurants_RowOrderDoesNotMatter(t *testing.T) {
	rows := abcMenu()
	reversed := make([]MenuCapability, len(rows))
	for i := range rows {
		reversed[len(rows)-1-i] = rows[i]
	}
	restaurants := []RestaurantCandidate{restaurantA, restaurantB, restaurantC}
	items := []OrderLineItem{{ProductID: 1}}

	assert.Equal(t, capableRestaurants(items, rows, restaurants), capableRestaurants(items, reversed, restaurants))
}

func TestCapableRestaurants_PreservesRestaurantInputOrder(t *testing.T) {
	got := capableRestaurants([]OrderLineItem{{ProductID: 1}}, abcMenu(), []RestaurantCandidate{restaurantB, restaurantA})
	assert.Equal(t, []int64{2, 1}, ids(got))
}

func TestCapableRestaurants_DuplicateProductLines(t *testing.T) {
	items := []OrderLineItem{{ProductID: 2, Quantity: 1}, {ProductID: 2, Quantity: 4}}

	got := capableRestaurants(items, abcMenu(), []RestaurantCandidate{restaurantA, restaurantB, restaurantC})
	assert.Equal(t, []int64{1, 3}, ids(got))
}

func TestNewCapabilityIndex_ConflictingDuplicateRows(t *testing.T) {
	for _, rows := range [][]MenuCapability{
		{{RestaurantID: 1, ProductID: 1, Available: true}, {RestaurantID: 1, ProductID: 1, Available: false}},
		{{RestaurantID: 1, ProductID: 1, Available: false}, {RestaurantID: 1, ProductID: 1, Available: true}},
	} {
		assert.False(t, NewCapabilityIndex(rows).Offers(1, 1))
	}
}

func TestCapabilityIndex_RestaurantNotInTable(t *testing.T) {
	idx := NewCapabilityIndex(abcMenu())
	stranger := RestaurantCandidate{RestaurantID: 99, Name: "Z"}

	assert.Empty(t, idx.Capable([]OrderLineItem{{ProductID: 1}}, []RestaurantCandidate{stranger}))
}
