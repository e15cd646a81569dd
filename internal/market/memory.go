package market

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a map-backed implementation of Repository.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	markets  map[string]*Market // ID -> Market
	order    []string           // market IDs in insertion order
	names    map[string]string  // lower(name) -> ID
	reviews  map[string]*Review // review ID -> Review
	products map[string][]Product
	payments map[string][]PaymentMethod
	socials  map[string][]SocialLink
}

// NewInMemoryRepository creates a new empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		markets:  make(map[string]*Market),
		names:    make(map[string]string),
		reviews:  make(map[string]*Review),
		products: make(map[string][]Product),
		payments: make(map[string][]PaymentMethod),
		socials:  make(map[string][]SocialLink),
	}
}

// InsertMarket stores a new market. Names are unique case-insensitively;
// inserting a duplicate name returns ErrDuplicateName. A missing ID is
// generated. The caller's struct is never retained.
func (r *InMemoryRepository) InsertMarket(ctx context.Context, m *Market) error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyMarketName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(m.Name)
	if _, exists := r.names[key]; exists {
		return ErrDuplicateName
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	r.markets[m.ID] = copyMarket(m)
	r.order = append(r.order, m.ID)
	r.names[key] = m.ID
	return nil
}

// SetProducts replaces the product list for a market.
func (r *InMemoryRepository) SetProducts(marketID string, products []Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[marketID] = append([]Product(nil), products...)
}

// SetPaymentMethods replaces the payment method list for a market.
func (r *InMemoryRepository) SetPaymentMethods(marketID string, methods []PaymentMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[marketID] = append([]PaymentMethod(nil), methods...)
}

// SetSocialLinks replaces the social link list for a market.
func (r *InMemoryRepository) SetSocialLinks(marketID string, links []SocialLink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.socials[marketID] = append([]SocialLink(nil), links...)
}

// ListMarkets returns every market in insertion order.
func (r *InMemoryRepository) ListMarkets(ctx context.Context) ([]*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Market, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyMarket(r.markets[id]))
	}
	return out, nil
}

// FindMarketsByField returns markets whose field equals value, compared
// case-insensitively and exactly. Results keep insertion order.
func (r *InMemoryRepository) FindMarketsByField(ctx context.Context, field Field, value string) ([]*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := strings.ToLower(value)
	var out []*Market
	for _, id := range r.order {
		m := r.markets[id]
		var got string
		switch field {
		case FieldCity:
			got = m.City
		case FieldState:
			got = m.State
		case FieldPostalCode:
			got = m.PostalCode
		default:
			continue
		}
		if strings.ToLower(got) == want {
			out = append(out, copyMarket(m))
		}
	}
	return out, nil
}

// FindMarketByName returns the market with the given case-insensitive name.
func (r *InMemoryRepository) FindMarketByName(ctx context.Context, name string) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.names[strings.ToLower(name)]
	if !ok {
		return nil, ErrMarketNotFound
	}
	return copyMarket(r.markets[id]), nil
}

// ListReviews returns every review across all markets.
func (r *InMemoryRepository) ListReviews(ctx context.Context) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Review, 0, len(r.reviews))
	for _, rev := range r.reviews {
		reviewCopy := *rev
		out = append(out, &reviewCopy)
	}
	return out, nil
}

// ReviewsForMarket returns the reviews for one market, newest first.
// Ties on timestamp break by ID ascending for stable ordering.
func (r *InMemoryRepository) ReviewsForMarket(ctx context.Context, marketID string) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Review
	for _, rev := range r.reviews {
		if rev.MarketID != marketID {
			continue
		}
		reviewCopy := *rev
		out = append(out, &reviewCopy)
	}
	sortReviewsNewestFirst(out)
	return out, nil
}

// AddReview stores a validated review for an existing market.
func (r *InMemoryRepository) AddReview(ctx context.Context, review *Review) error {
	if err := review.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.markets[review.MarketID]; !ok {
		return ErrMarketNotFound
	}

	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}

	reviewCopy := *review
	r.reviews[review.ID] = &reviewCopy
	return nil
}

// DeleteMarket removes a market by case-insensitive name along with its
// reviews, products, payment methods, and social links.
func (r *InMemoryRepository) DeleteMarket(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(name)
	id, ok := r.names[key]
	if !ok {
		return ErrMarketNotFound
	}

	delete(r.markets, id)
	delete(r.names, key)
	delete(r.products, id)
	delete(r.payments, id)
	delete(r.socials, id)
	for reviewID, rev := range r.reviews {
		if rev.MarketID == id {
			delete(r.reviews, reviewID)
		}
	}
	for i, orderedID := range r.order {
		if orderedID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// MarketDetail returns the detail-view join for a market by name.
// Reviews come back newest first.
func (r *InMemoryRepository) MarketDetail(ctx context.Context, name string) (*Detail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.names[strings.ToLower(name)]
	if !ok {
		return nil, ErrMarketNotFound
	}
	m := r.markets[id]

	var reviews []*Review
	for _, rev := range r.reviews {
		if rev.MarketID != id {
			continue
		}
		reviewCopy := *rev
		reviews = append(reviews, &reviewCopy)
	}
	sortReviewsNewestFirst(reviews)

	return &Detail{
		Market:         *copyMarket(m),
		Products:       append([]Product(nil), r.products[id]...),
		PaymentMethods: append([]PaymentMethod(nil), r.payments[id]...),
		SocialLinks:    append([]SocialLink(nil), r.socials[id]...),
		Reviews:        reviews,
	}, nil
}

// sortReviewsNewestFirst orders reviews by created_at DESC, then by ID ASC
// as a tie-breaker so repeated reads return the same order.
func sortReviewsNewestFirst(reviews []*Review) {
	sort.Slice(reviews, func(i, j int) bool {
		if reviews[i].CreatedAt.After(reviews[j].CreatedAt) {
			return true
		}
		if reviews[i].CreatedAt.Before(reviews[j].CreatedAt) {
			return false
		}
		return reviews[i].ID < reviews[j].ID
	})
}

// copyMarket returns a deep copy so callers can never mutate stored state.
func copyMarket(m *Market) *Market {
	marketCopy := *m
	if m.Point != nil {
		pointCopy := *m.Point
		marketCopy.Point = &pointCopy
	}
	return &marketCopy
}
