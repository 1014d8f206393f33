// Package dispatch evaluates batches of orders against the restaurant
// directory and menu availability, producing one ranking per order.
package dispatch

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// AddressResolver maps addresses to coordinates. It must return an entry for
// every requested address and must not fail as a whole.
type AddressResolver interface {
	Resolve(ctx context.Context, addresses []string) map[string]domain.Coordinate
}

// Orchestrator runs the capability match and distance ranking for a batch.
// It keeps no state between batches.
type Orchestrator struct {
	resolver AddressResolver
	logger   *slog.Logger
	metrics  *observability.Metrics
	workers  int
}

// New creates an Orchestrator.
func New(resolver AddressResolver, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		workers:  runtime.GOMAXPROCS(0),
	}
}

// Dispatch returns one RankedResult per order, in input order.
//
// Every customer and restaurant address of the batch is resolved in a single
// call before any order is evaluated, so an address shared by many orders is
// looked up once.
func (o *Orchestrator) Dispatch(ctx context.Context, orders []domain.OrderForRanking, restaurants []domain.RestaurantCandidate, capabilities []domain.MenuCapability) []domain.RankedResult {
	results := make([]domain.RankedResult, len(orders))
	if len(orders) == 0 {
		return results
	}

	coords := o.resolver.Resolve(ctx, batchAddresses(orders, restaurants))
	index := domain.NewCapabilityIndex(capabilities)

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, order := range orders {
		g.Go(func() error {
			results[i] = rankOrder(order, restaurants, index, coords)
			return nil
		})
	}
	_ = g.Wait()

	o.observe(results)
	return results
}

func rankOrder(order domain.OrderForRanking, restaurants []domain.RestaurantCandidate, index *domain.CapabilityIndex, coords map[string]domain.Coordinate) domain.RankedResult {
	capable := index.Capable(order.LineItems, restaurants)
	ranking, distancesAvailable := domain.Rank(coords[order.CustomerAddress], capable, coords)
	return domain.NewRankedResult(order.OrderID, capable, ranking, distancesAvailable)
}

// batchAddresses collects the distinct addresses of a batch in first-seen order.
func batchAddresses(orders []domain.OrderForRanking, restaurants []domain.RestaurantCandidate) []string {
	seen := make(map[string]struct{}, len(orders)+len(restaurants))
	addrs := make([]string, 0, len(orders)+len(restaurants))
	add := func(addr string) {
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	for _, o := range orders {
		add(o.CustomerAddress)
	}
	for _, r := range restaurants {
		add(r.Address)
	}
	return addrs
}

func (o *Orchestrator) observe(results []domain.RankedResult) {
	var unroutable, withoutDistances int
	for _, r := range results {
		if r.Unroutable() {
			unroutable++
		}
		if !r.DistancesAvailable {
			withoutDistances++
		}
	}
	o.metrics.OrdersRanked.Add(float64(len(results)))
	o.metrics.OrdersUnroutable.Add(float64(unroutable))
	o.metrics.OrdersWithoutDistances.Add(float64(withoutDistances))

	o.logger.Debug("batch dispatched",
		"orders", len(results),
		"unroutable", unroutable,
		"without_distances", withoutDistances,
	)
}
