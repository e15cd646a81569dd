// Package rating computes review rating aggregates for markets.
// Summaries are derived values: the source of truth is always the review
// collection at query time.
package rating

import (
	"context"
	"math"

	"github.com/openfarm/markets/internal/market"
)

// Summary is the derived per-market rating aggregate. Average is 0 when a
// market has no reviews, never NaN; sort and display code relies on that.
type Summary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Summarize computes the aggregate for a single market from a review
// collection. Used by the detail view.
func Summarize(reviews []*market.Review, marketID string) Summary {
	sum, count := 0, 0
	for _, r := range reviews {
		if r.MarketID != marketID {
			continue
		}
		sum += r.Rating
		count++
	}
	if count == 0 {
		return Summary{}
	}
	return Summary{Average: float64(sum) / float64(count), Count: count}
}

// BatchSummarize computes aggregates for every market that has reviews in one
// grouped pass: a map of running sum/count keyed by market ID. This keeps
// rating-sorted search linear in markets + reviews instead of quadratic.
// Markets absent from the result have the zero Summary.
func BatchSummarize(reviews []*market.Review) map[string]Summary {
	type acc struct {
		sum   int
		count int
	}
	accs := make(map[string]acc)
	for _, r := range reviews {
		a := accs[r.MarketID]
		a.sum += r.Rating
		a.count++
		accs[r.MarketID] = a
	}

	out := make(map[string]Summary, len(accs))
	for id, a := range accs {
		out[id] = Summary{Average: float64(a.sum) / float64(a.count), Count: a.count}
	}
	return out
}

// Stars renders an average as a filled-star count out of 5: round(avg) with
// halves rounding away from zero (4.5 renders as 5 stars), clamped so it is
// never negative and never exceeds 5 even for malformed averages.
func Stars(average float64) int {
	if math.IsNaN(average) {
		return 0
	}
	stars := int(math.Round(average))
	if stars < 0 {
		return 0
	}
	if stars > 5 {
		return 5
	}
	return stars
}

// Summarizer produces the rating summary for one market. ForMarket always
// reflects the live review collection unless an implementation caches; cached
// implementations must invalidate on every review write for that market.
type Summarizer interface {
	ForMarket(ctx context.Context, marketID string) (Summary, error)

	// Invalidate drops any cached summary for the market. A no-op for
	// implementations that recompute on every call.
	Invalidate(ctx context.Context, marketID string) error
}

// Service computes summaries directly from the repository on every call.
type Service struct {
	repo market.Repository
}

// NewService creates a Summarizer that always recomputes from live reviews.
func NewService(repo market.Repository) *Service {
	return &Service{repo: repo}
}

// ForMarket recomputes the summary from the market's current reviews.
func (s *Service) ForMarket(ctx context.Context, marketID string) (Summary, error) {
	reviews, err := s.repo.ReviewsForMarket(ctx, marketID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(reviews, marketID), nil
}

// Invalidate is a no-op; there is nothing cached to drop.
func (s *Service) Invalidate(ctx context.Context, marketID string) error {
	return nil
}
