package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/openfarm/markets/internal/geo"
	"github.com/openfarm/markets/internal/market"
	"github.com/openfarm/markets/internal/rating"
)

// Summary is one search result: the display projection of a market, plus the
// computed distance for radius queries and the rating aggregate when requested.
type Summary struct {
	MarketID string   `json:"market_id"`
	Name     string   `json:"name"`
	City     string   `json:"city"`
	State    string   `json:"state"`
	Distance *float64 `json:"distance_miles,omitempty"`

	Rating *rating.Summary `json:"rating,omitempty"`
	Stars  int             `json:"stars"`
}

// Meta records what a search did, for follow-up detail lookups and logging.
type Meta struct {
	Criterion   Kind `json:"criterion"`
	ResultCount int  `json:"result_count"`
}

// Options configures one search invocation.
type Options struct {
	Criterion Criterion
	Sort      SortMode

	// IncludeRatings attaches rating aggregates to every result even when the
	// sort mode does not need them.
	IncludeRatings bool
}

// Engine composes the repository, distance computation, and rating
// aggregation into ordered search results. It is stateless and read-only:
// concurrent searches over the same repository need no coordination.
type Engine struct {
	repo market.Repository
}

// NewEngine creates a search engine over the given repository.
func NewEngine(repo market.Repository) *Engine {
	return &Engine{repo: repo}
}

// Search filters, optionally enriches, and sorts markets per opts.
// No results is an empty list, never an error. All sorts are stable: ties
// preserve the filter-stage relative order. With SortNone, results keep
// filter order as-is — for radius queries that is discovery order, not
// distance order; the decoupling of filter order from sort order is
// deliberate and callers must not rely on unsorted radius results being
// nearest-first.
func (e *Engine) Search(ctx context.Context, opts Options) ([]Summary, Meta, error) {
	results, err := e.filter(ctx, opts.Criterion)
	if err != nil {
		return nil, Meta{}, err
	}

	if opts.Sort == SortRatingDesc || opts.IncludeRatings {
		if err := e.attachRatings(ctx, results); err != nil {
			return nil, Meta{}, err
		}
	}

	switch opts.Sort {
	case SortNameAsc:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Name < results[j].Name
		})
	case SortNameDesc:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Name > results[j].Name
		})
	case SortRatingDesc:
		sort.SliceStable(results, func(i, j int) bool {
			return averageOf(results[i]) > averageOf(results[j])
		})
	case SortNone:
		// Pass through in filter order.
	}

	meta := Meta{Criterion: opts.Criterion.Kind(), ResultCount: len(results)}
	return results, meta, nil
}

// filter runs the criterion's selection stage and projects matches into
// summaries, attaching distances for radius queries.
func (e *Engine) filter(ctx context.Context, c Criterion) ([]Summary, error) {
	switch c.kind {
	case KindCity, KindState, KindPostalCode:
		markets, err := e.repo.FindMarketsByField(ctx, c.field, c.value)
		if err != nil {
			return nil, fmt.Errorf("filter by %s: %w", c.kind, err)
		}
		results := make([]Summary, 0, len(markets))
		for _, m := range markets {
			results = append(results, project(m))
		}
		return results, nil

	case KindRadius:
		markets, err := e.repo.ListMarkets(ctx)
		if err != nil {
			return nil, fmt.Errorf("radius scan: %w", err)
		}
		var results []Summary
		for _, m := range markets {
			// Markets without coordinates cannot establish membership.
			if m.Point == nil {
				continue
			}
			d := geo.Distance(c.center, *m.Point)
			if d > c.radius {
				continue
			}
			s := project(m)
			s.Distance = &d
			results = append(results, s)
		}
		return results, nil

	default:
		return nil, fmt.Errorf("unsupported criterion kind %q", c.kind)
	}
}

// attachRatings batch-computes rating summaries once for the whole result set.
func (e *Engine) attachRatings(ctx context.Context, results []Summary) error {
	reviews, err := e.repo.ListReviews(ctx)
	if err != nil {
		return fmt.Errorf("load reviews for enrichment: %w", err)
	}

	batch := rating.BatchSummarize(reviews)
	for i := range results {
		s := batch[results[i].MarketID]
		results[i].Rating = &s
		results[i].Stars = rating.Stars(s.Average)
	}
	return nil
}

func project(m *market.Market) Summary {
	return Summary{
		MarketID: m.ID,
		Name:     m.Name,
		City:     m.City,
		State:    m.State,
	}
}

func averageOf(s Summary) float64 {
	if s.Rating == nil {
		return 0
	}
	return s.Rating.Average
}
