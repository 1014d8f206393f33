package domain

type menuKey struct {
	restaurantID int64
	productID    int64
}

// CapabilityIndex answers "which restaurants can prepare this product" for one
// snapshot of the menu availability table. Build it once per batch and share
// it across orders; it is read-only after construction.
type CapabilityIndex struct {
	available map[menuKey]bool
}

// NewCapabilityIndex indexes the availability rows. When the table holds more
// than one row for a pair, the pair is available only if every row says so,
// which keeps the result independent of row order.
func NewCapabilityIndex(rows []MenuCapability) *CapabilityIndex {
	idx := &CapabilityIndex{available: make(map[menuKey]bool, len(rows))}
	for _, row := range rows {
		k := menuKey{restaurantID: row.RestaurantID, productID: row.ProductID}
		if prev, seen := idx.available[k]; seen {
			idx.available[k] = prev && row.Available
			continue
		}
		idx.available[k] = row.Available
	}
	return idx
}

// Offers reports whether restaurantID has productID available. A missing row
// counts as unavailable.
func (idx *CapabilityIndex) Offers(restaurantID, productID int64) bool {
	return idx.available[menuKey{restaurantID: restaurantID, productID: productID}]
}

// Capable returns the restaurants that can prepare every line item, in the
// order they appear in restaurants. An order without line items matches no
// restaurant.
func (idx *CapabilityIndex) Capable(items []OrderLineItem, restaurants []RestaurantCandidate) []RestaurantCandidate {
	if len(items) == 0 {
		return nil
	}

	capable := make([]RestaurantCandidate, 0, len(restaurants))
	for _, r := range restaurants {
		if idx.offersAll(r.RestaurantID, items) {
			capable = append(capable, r)
		}
	}
	return capable
}

func (idx *CapabilityIndex) offersAll(restaurantID int64, items []OrderLineItem) bool {
	for _, item := range items {
		if !idx.Offers(restaurantID, item.ProductID) {
			return false
		}
	}
	return true
}
