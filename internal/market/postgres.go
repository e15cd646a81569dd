package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openfarm/markets/internal/geo"
)

// PostgresRepository is a PostgreSQL-backed implementation of Repository.
// Coordinates are stored as separate numeric columns where x = longitude and
// y = latitude; a NULL in either column means the market is not geocoded.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository over an open database handle.
// The caller owns the handle's lifecycle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const marketColumns = "market_id, market_name, street, city, state, zip, x, y, location"

// scanMarket reads one market row, mapping NULL x/y to a nil Point.
func scanMarket(row interface{ Scan(...any) error }) (*Market, error) {
	var m Market
	var street, zip, location sql.NullString
	var x, y sql.NullFloat64

	if err := row.Scan(&m.ID, &m.Name, &street, &m.City, &m.State, &zip, &x, &y, &location); err != nil {
		return nil, err
	}

	m.Street = street.String
	m.PostalCode = zip.String
	m.Location = location.String
	if x.Valid && y.Valid {
		m.Point = &geo.Point{Lat: y.Float64, Lng: x.Float64}
	}
	return &m, nil
}

func (r *PostgresRepository) queryMarkets(ctx context.Context, query string, args ...any) ([]*Market, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query markets: %w", err)
	}
	defer rows.Close()

	var out []*Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markets: %w", err)
	}
	return out, nil
}

// ListMarkets returns every market in storage order.
func (r *PostgresRepository) ListMarkets(ctx context.Context) ([]*Market, error) {
	return r.queryMarkets(ctx, "SELECT "+marketColumns+" FROM farmers_markets")
}

// FindMarketsByField returns markets whose column equals value case-insensitively.
// The column name comes from the closed Field type, never from caller input.
func (r *PostgresRepository) FindMarketsByField(ctx context.Context, field Field, value string) ([]*Market, error) {
	var column string
	switch field {
	case FieldCity:
		column = "city"
	case FieldState:
		column = "state"
	case FieldPostalCode:
		column = "zip"
	default:
		return nil, fmt.Errorf("unsupported search field %q", field)
	}

	query := fmt.Sprintf("SELECT %s FROM farmers_markets WHERE LOWER(%s) = LOWER($1)", marketColumns, column)
	return r.queryMarkets(ctx, query, value)
}

// FindMarketByName returns the market with the given case-insensitive name.
func (r *PostgresRepository) FindMarketByName(ctx context.Context, name string) (*Market, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+marketColumns+" FROM farmers_markets WHERE LOWER(market_name) = LOWER($1)", name)

	m, err := scanMarket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find market by name: %w", err)
	}
	return m, nil
}

// ListReviews returns every review across all markets.
func (r *PostgresRepository) ListReviews(ctx context.Context) ([]*Review, error) {
	return r.queryReviews(ctx,
		"SELECT review_id, market_id, user_name, rating, review_text, created_at FROM reviews")
}

// ReviewsForMarket returns one market's reviews, newest first.
func (r *PostgresRepository) ReviewsForMarket(ctx context.Context, marketID string) ([]*Review, error) {
	return r.queryReviews(ctx,
		`SELECT review_id, market_id, user_name, rating, review_text, created_at
		 FROM reviews WHERE market_id = $1
		 ORDER BY created_at DESC, review_id ASC`, marketID)
}

func (r *PostgresRepository) queryReviews(ctx context.Context, query string, args ...any) ([]*Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		var rev Review
		var text sql.NullString
		if err := rows.Scan(&rev.ID, &rev.MarketID, &rev.Author, &rev.Rating, &text, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		rev.Text = text.String
		out = append(out, &rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return out, nil
}

// AddReview stores a validated review inside a transaction so a failed write
// leaves the store in its pre-call state.
func (r *PostgresRepository) AddReview(ctx context.Context, review *Review) error {
	if err := review.Validate(); err != nil {
		return err
	}

	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add review: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM farmers_markets WHERE market_id = $1)", review.MarketID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check market exists: %w", err)
	}
	if !exists {
		return ErrMarketNotFound
	}

	var text sql.NullString
	if review.Text != "" {
		text = sql.NullString{String: review.Text, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reviews (review_id, market_id, user_name, rating, review_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		review.ID, review.MarketID, review.Author, review.Rating, text, review.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert review: %w", err)
	}

	return tx.Commit()
}

// DeleteMarket removes a market by case-insensitive name. Associated reviews,
// products, payment methods, and social links go with it (ON DELETE CASCADE
// in the schema).
func (r *PostgresRepository) DeleteMarket(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM farmers_markets WHERE LOWER(market_name) = LOWER($1)", name)
	if err != nil {
		return fmt.Errorf("delete market: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete market rows affected: %w", err)
	}
	if affected == 0 {
		return ErrMarketNotFound
	}
	return nil
}

// MarketDetail returns the detail-view join for a market by name.
func (r *PostgresRepository) MarketDetail(ctx context.Context, name string) (*Detail, error) {
	m, err := r.FindMarketByName(ctx, name)
	if err != nil {
		return nil, err
	}

	detail := &Detail{Market: *m}

	productRows, err := r.db.QueryContext(ctx,
		`SELECT p.product_name
		 FROM market_products mp
		 JOIN products p ON mp.product_id = p.product_id
		 WHERE mp.market_id = $1
		 ORDER BY p.product_name`, m.ID)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer productRows.Close()
	for productRows.Next() {
		var p Product
		if err := productRows.Scan(&p.Name); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		detail.Products = append(detail.Products, p)
	}
	if err := productRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	paymentRows, err := r.db.QueryContext(ctx,
		`SELECT py.payment_name
		 FROM market_payments mp
		 JOIN payment_methods py ON mp.payment_id = py.payment_id
		 WHERE mp.market_id = $1
		 ORDER BY py.payment_name`, m.ID)
	if err != nil {
		return nil, fmt.Errorf("query payment methods: %w", err)
	}
	defer paymentRows.Close()
	for paymentRows.Next() {
		var p PaymentMethod
		if err := paymentRows.Scan(&p.Name); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		detail.PaymentMethods = append(detail.PaymentMethods, p)
	}
	if err := paymentRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment methods: %w", err)
	}

	socialRows, err := r.db.QueryContext(ctx,
		`SELECT sn.network_name, msl.url
		 FROM market_social_links msl
		 JOIN social_networks sn ON msl.social_network_id = sn.social_network_id
		 WHERE msl.market_id = $1
		 ORDER BY sn.network_name`, m.ID)
	if err != nil {
		return nil, fmt.Errorf("query social links: %w", err)
	}
	defer socialRows.Close()
	for socialRows.Next() {
		var link SocialLink
		var url sql.NullString
		if err := socialRows.Scan(&link.Network, &url); err != nil {
			return nil, fmt.Errorf("scan social link: %w", err)
		}
		link.URL = url.String
		detail.SocialLinks = append(detail.SocialLinks, link)
	}
	if err := socialRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate social links: %w", err)
	}

	reviews, err := r.ReviewsForMarket(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	detail.Reviews = reviews

	return detail, nil
}
