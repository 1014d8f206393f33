// Package postgres loads dispatch snapshots from the order-taking database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"

	_ "github.com/lib/pq"
)

// StatusDelivered marks completed orders, which are never dispatched.
const StatusDelivered = "D"

const (
	restaurantsQuery = `SELECT id, name, address FROM foodcartapp_restaurant ORDER BY name, id`

	capabilitiesQuery = `SELECT restaurant_id, product_id, availability FROM foodcartapp_restaurantmenuitem`

	ordersQuery = `SELECT id, address FROM foodcartapp_order WHERE status <> $1 ORDER BY status, id`

	lineItemsQuery = `SELECT op.order_id, op.product_id, op.quantity
		FROM foodcartapp_orderproduct op
		JOIN foodcartapp_order o ON o.id = op.order_id
		WHERE o.status <> $1
		ORDER BY op.order_id, op.id`
)

// Open connects to PostgreSQL and configures the pool.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// Source reads the orders, restaurants and menu availability of one batch.
type Source struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSource creates a snapshot source over db.
func NewSource(db *sql.DB, logger *slog.Logger) *Source {
	return &Source{db: db, logger: logger}
}

// CheckReadiness pings the database.
func (s *Source) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadSnapshot reads every undelivered order with its line items, the
// restaurant directory and the availability table inside one read-only
// transaction. Orders without line items are dropped.
func (s *Source) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	restaurants, err := queryRestaurants(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	capabilities, err := queryCapabilities(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	orders, err := queryOrders(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := attachLineItems(ctx, tx, orders); err != nil {
		return domain.Snapshot{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("commit snapshot: %w", err)
	}

	return domain.Snapshot{
		Orders:       s.dropEmptyOrders(orders),
		Restaurants:  restaurants,
		Capabilities: capabilities,
	}, nil
}

func (s *Source) dropEmptyOrders(orders []domain.OrderForRanking) []domain.OrderForRanking {
	kept := orders[:0]
	for _, o := range orders {
		if len(o.LineItems) == 0 {
			s.logger.Warn("skipping order without line items", "order_id", o.OrderID)
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

func queryRestaurants(ctx context.Context, tx *sql.Tx) ([]domain.RestaurantCandidate, error) {
	rows, err := tx.QueryContext(ctx, restaurantsQuery)
	if err != nil {
		return nil, fmt.Errorf("query restaurants: %w", err)
	}
	defer rows.Close()

	var out []domain.RestaurantCandidate
	for rows.Next() {
		var r domain.RestaurantCandidate
		if err := rows.Scan(&r.RestaurantID, &r.Name, &r.Address); err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restaurants: %w", err)
	}
	return out, nil
}

func queryCapabilities(ctx context.Context, tx *sql.Tx) ([]domain.MenuCapability, error) {
	rows, err := tx.QueryContext(ctx, capabilitiesQuery)
	if err != nil {
		return nil, fmt.Errorf("query menu items: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuCapability
	for rows.Next() {
		var c domain.MenuCapability
		if err := rows.Scan(&c.RestaurantID, &c.ProductID, &c.Available); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu items: %w", err)
	}
	return out, nil
}

func queryOrders(ctx context.Context, tx *sql.Tx) ([]domain.OrderForRanking, error) {
	rows, err := tx.QueryContext(ctx, ordersQuery, StatusDelivered)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderForRanking
	for rows.Next() {
		var (
			o       domain.OrderForRanking
			address sql.NullString
		)
		if err := rows.Scan(&o.OrderID, &address); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.CustomerAddress = address.String
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return out, nil
}

func attachLineItems(ctx context.Context, tx *sql.Tx, orders []domain.OrderForRanking) error {
	byID := make(map[int64]int, len(orders))
	for i, o := range orders {
		byID[o.OrderID] = i
	}

	rows, err := tx.QueryContext(ctx, lineItemsQuery, StatusDelivered)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			item    domain.OrderLineItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i, ok := byID[orderID]
		if !ok {
			continue
		}
		orders[i].LineItems = append(orders[i].LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}
