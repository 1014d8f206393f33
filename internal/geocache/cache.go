// Package geocache resolves addresses to coordinates through a durable cache
// fronting an external geocoder.
//
// Every outcome is cached, including failures: an address the geocoder cannot
// resolve is stored as a negative entry so it does not cost a network call on
// every dispatch batch. Negative entries live forever unless a NegativeTTL is
// configured; positive entries are never refreshed. Invalidate drops a single
// entry so the next lookup goes back to the geocoder.
package geocache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"
	"github.com/couchcryptid/restaurant-dispatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrEmptyAddress is returned by Invalidate for a blank address.
var ErrEmptyAddress = errors.New("geocache: empty address")

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 8
)

// Options tunes a Cache. Zero values fall back to defaults.
type Options struct {
	// Timeout bounds each geocoder call.
	Timeout time.Duration
	// Concurrency caps the number of geocoder calls in flight per Resolve.
	Concurrency int
	// NegativeTTL, when positive, lets unresolved entries older than the TTL
	// be looked up again. Zero keeps them forever.
	NegativeTTL time.Duration
	Clock       clockwork.Clock
}

// Cache is the single entry point to address resolution. It is safe for
// concurrent use.
type Cache struct {
	store    Store
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics

	timeout     time.Duration
	concurrency int
	negativeTTL time.Duration
	clock       clockwork.Clock

	flights singleflight.Group
}

// New creates a Cache. A nil geocoder disables lookups: misses resolve to
// Unresolved and nothing is persisted for them.
func New(store Store, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Cache {
	c := &Cache{
		store:       store,
		geocoder:    geocoder,
		logger:      logger,
		metrics:     metrics,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		negativeTTL: opts.NegativeTTL,
		clock:       opts.Clock,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	return c
}

// Resolve returns a coordinate for every distinct address. It never fails as
// a whole: store errors degrade to cache misses and geocoder errors degrade
// to Unresolved for the affected address only.
func (c *Cache) Resolve(ctx context.Context, addresses []string) map[string]domain.Coordinate {
	resolved := make(map[string]domain.Coordinate, len(addresses))
	pending := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if _, dup := resolved[addr]; dup {
			continue
		}
		// Placeholder doubles as the dedup marker; overwritten below.
		resolved[addr] = domain.Unresolved
		if addr != "" {
			pending = append(pending, addr)
		}
	}
	if len(pending) == 0 {
		return resolved
	}

	cached, err := c.store.Get(ctx, pending)
	if err != nil {
		c.logger.Warn("geocache read failed, treating addresses as misses",
			"addresses", len(pending),
			"error", err,
		)
	}

	misses := make([]string, 0, len(pending))
	for _, addr := range pending {
		if e, ok := cached[addr]; ok && c.fresh(e) {
			resolved[addr] = e.Coordinate
			c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
			continue
		}
		c.metrics.GeocodeCache.WithLabelValues("miss").Inc()
		misses = append(misses, addr)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.concurrency)
	for _, addr := range misses {
		g.Go(func() error {
			coord := c.fetch(ctx, addr)
			mu.Lock()
			resolved[addr] = coord
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return resolved
}

// Invalidate removes the cached entry for address so the next Resolve asks
// the geocoder again.
func (c *Cache) Invalidate(ctx context.Context, address string) error {
	if address == "" {
		return ErrEmptyAddress
	}
	if err := c.store.Delete(ctx, address); err != nil {
		return err
	}
	c.logger.Info("geocache entry invalidated", "address", address)
	return nil
}

// fetch looks address up once across all concurrent callers.
func (c *Cache) fetch(ctx context.Context, address string) domain.Coordinate {
	if c.geocoder == nil {
		return domain.Unresolved
	}
	// An abandoned batch must not write negative entries for addresses it
	// never actually tried.
	if ctx.Err() != nil {
		return domain.Unresolved
	}

	v, _, _ := c.flights.Do(address, func() (any, error) {
		// The flight is shared; one waiter going away must not cancel it.
		return c.lookup(context.WithoutCancel(ctx), address), nil
	})
	return v.(domain.Coordinate)
}

func (c *Cache) lookup(ctx context.Context, address string) domain.Coordinate {
	// A previous flight may have stored the address after our batch read.
	if existing, err := c.store.Get(ctx, []string{address}); err == nil {
		if e, ok := existing[address]; ok && c.fresh(e) {
			return e.Coordinate
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	coord, err := c.geocoder.Geocode(callCtx, address)
	if err == nil && coord.Resolved && !coord.Valid() {
		err = errors.New("coordinate out of range: " + coord.String())
	}

	switch {
	case err != nil:
		c.logger.Warn("geocoding failed, caching address as unresolved",
			"address", address,
			"error", err,
		)
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		coord = domain.Unresolved
	case !coord.Resolved:
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}

	entry := Entry{Address: address, Coordinate: coord, UpdatedAt: c.clock.Now().UTC()}
	if err := c.store.Put(ctx, entry); err != nil {
		c.logger.Warn("geocache write failed", "address", address, "error", err)
	}
	return coord
}

func (c *Cache) fresh(e Entry) bool {
	if e.Coordinate.Resolved || c.negativeTTL <= 0 {
		return true
	}
	return c.clock.Since(e.UpdatedAt) < c.negativeTTL
}
