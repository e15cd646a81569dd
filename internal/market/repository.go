package market

import "context"

// Field identifies an exact-match search column. Values match the persisted
// column names so implementations can push the filter down.
type Field string

// Exact-match search fields.
const (
	FieldCity       Field = "city"
	FieldState      Field = "state"
	FieldPostalCode Field = "postal_code"
)

// Valid reports whether f is one of the supported exact-match fields.
func (f Field) Valid() bool {
	switch f {
	case FieldCity, FieldState, FieldPostalCode:
		return true
	}
	return false
}

// Repository defines the data-access contract the query engine consumes.
// Implementations own all persistence concerns, including the convention that
// coordinates are stored as x = longitude, y = latitude. Read failures must
// never leave partial state behind; write failures must leave the store in its
// pre-call state.
type Repository interface {
	// ListMarkets returns every market in storage order.
	ListMarkets(ctx context.Context) ([]*Market, error)

	// FindMarketsByField returns markets whose field equals value,
	// compared case-insensitively and exactly (no substring matching).
	FindMarketsByField(ctx context.Context, field Field, value string) ([]*Market, error)

	// FindMarketByName returns the market with the given name,
	// compared case-insensitively. Returns ErrMarketNotFound when absent.
	FindMarketByName(ctx context.Context, name string) (*Market, error)

	// ListReviews returns every review across all markets, for batch aggregation.
	ListReviews(ctx context.Context) ([]*Review, error)

	// ReviewsForMarket returns the reviews for one market,
	// ordered by creation timestamp descending.
	ReviewsForMarket(ctx context.Context, marketID string) ([]*Review, error)

	// AddReview stores a validated review. Returns ErrMarketNotFound when the
	// referenced market does not exist. Never partially applied.
	AddReview(ctx context.Context, review *Review) error

	// DeleteMarket removes a market by case-insensitive name, together with
	// its reviews and associated collections. Returns ErrMarketNotFound when
	// no market matches.
	DeleteMarket(ctx context.Context, name string) error

	// MarketDetail returns the detail-view join for a market by
	// case-insensitive name. Returns ErrMarketNotFound when absent.
	MarketDetail(ctx context.Context, name string) (*Detail, error)
}
