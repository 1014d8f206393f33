// Package domain holds the restaurant capability matching and distance
// ranking core of the dispatch service.
//
// # Inputs
//
// A dispatch batch is evaluated against an immutable [Snapshot]: the open
// orders with their line items, the restaurant directory, and the menu
// availability table (one [MenuCapability] row per restaurant/product pair).
// The core never mutates any of them.
//
// # Capability
//
// A restaurant is capable of an order when it has an available menu row for
// every product in the order. A missing row counts as unavailable. An order
// no restaurant can fully prepare is unroutable; that is an ordinary outcome
// represented by an empty ranking, not an error. See [CapabilityIndex].
//
// # Addresses and coordinates
//
// Addresses are exact-match keys. "Red Square 1" and "red square, 1" are two
// different addresses; callers normalize before dispatching. A [Coordinate]
// is either a resolved latitude/longitude pair in decimal degrees or
// [Unresolved].
//
// # Ranking
//
// Distances are great-circle distances on a sphere of radius [EarthRadiusKm],
// rounded to two decimals. Candidates are sorted by ascending rounded
// distance; ties keep the candidate input order. A ranking is only produced
// when the customer coordinate is resolved. Restaurants whose own address is
// unresolved are left out of the ranking. See [Rank].
package domain
