// Package market provides the market catalog model and repository
// implementations backing the query/ranking engine.
package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/openfarm/markets/internal/geo"
)

// Rating bounds enforced at review creation.
const (
	MinRating = 1
	MaxRating = 5
)

// Common errors for market operations.
var (
	ErrMarketNotFound    = errors.New("market not found")
	ErrDuplicateName     = errors.New("market name already exists")
	ErrRatingOutOfRange  = errors.New("rating must be between 1 and 5")
	ErrEmptyMarketName   = errors.New("market name is required")
	ErrEmptyReviewAuthor = errors.New("review author is required")
)

// Market represents a cataloged physical venue. Point is nil when the market
// has no geocoded coordinates; such markets are excluded from radius search
// and distance-based ranking, never treated as (0, 0).
// Markets are immutable once loaded into the engine for the duration of a query.
type Market struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Street     string     `json:"street,omitempty"`
	City       string     `json:"city"`
	State      string     `json:"state"`
	PostalCode string     `json:"postal_code,omitempty"`
	Location   string     `json:"location,omitempty"`
	Point      *geo.Point `json:"point,omitempty"`
}

// Review is a user-submitted rating and optional free text for one market.
// A review references exactly one market.
type Review struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the review invariants enforced at creation time.
func (r *Review) Validate() error {
	if r.Author == "" {
		return ErrEmptyReviewAuthor
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return fmt.Errorf("%w: got %d", ErrRatingOutOfRange, r.Rating)
	}
	return nil
}

// Product is an item sold at a market.
type Product struct {
	Name string `json:"name"`
}

// PaymentMethod is a payment option accepted at a market.
type PaymentMethod struct {
	Name string `json:"name"`
}

// SocialLink is a social network presence for a market. URL may be empty.
type SocialLink struct {
	Network string `json:"network"`
	URL     string `json:"url,omitempty"`
}

// Detail joins one market with its associated collections for the detail view.
// Reviews are ordered by creation timestamp descending (newest first); this
// ordering is a contract of the detail view and is unrelated to search sorting.
type Detail struct {
	Market         Market          `json:"market"`
	Products       []Product       `json:"products,omitempty"`
	PaymentMethods []PaymentMethod `json:"payment_methods,omitempty"`
	SocialLinks    []SocialLink    `json:"social_links,omitempty"`
	Reviews        []*Review       `json:"reviews,omitempty"`
}
