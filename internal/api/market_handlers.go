// Package api provides HTTP handlers for the farmers market API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openfarm/markets/internal/market"
	"github.com/openfarm/markets/internal/middleware"
	"github.com/openfarm/markets/internal/page"
	"github.com/openfarm/markets/internal/rating"
)

// MaxPageSize bounds caller-supplied page sizes.
const MaxPageSize = 100

// MarketHandlers holds dependencies for market HTTP handlers.
type MarketHandlers struct {
	repo       market.Repository
	summarizer rating.Summarizer
	pageSize   int
}

// NewMarketHandlers creates a new MarketHandlers instance.
// pageSize controls listing pagination; values below 1 fall back to the default.
func NewMarketHandlers(repo market.Repository, summarizer rating.Summarizer, pageSize int) *MarketHandlers {
	if pageSize < 1 {
		pageSize = page.DefaultSize
	}
	return &MarketHandlers{
		repo:       repo,
		summarizer: summarizer,
		pageSize:   pageSize,
	}
}

// MarketListEntry is one row of the paginated market listing.
type MarketListEntry struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	City   string          `json:"city"`
	State  string          `json:"state"`
	Rating *rating.Summary `json:"rating,omitempty"`
	Stars  int             `json:"stars"`
}

// MarketDetailResponse is the full detail view of one market.
type MarketDetailResponse struct {
	Market         market.Market          `json:"market"`
	Products       []market.Product       `json:"products,omitempty"`
	PaymentMethods []market.PaymentMethod `json:"payment_methods,omitempty"`
	SocialLinks    []market.SocialLink    `json:"social_links,omitempty"`
	Reviews        []*market.Review       `json:"reviews"`
	Rating         rating.Summary         `json:"rating"`
	Stars          int                    `json:"stars"`
}

// CreateReviewRequest represents the request body for submitting a review.
type CreateReviewRequest struct {
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Text   string `json:"text,omitempty"`
}

// ListMarkets handles GET /markets - paginated listing, name ascending,
// each entry enriched with its rating aggregate.
func (h *MarketHandlers) ListMarkets(w http.ResponseWriter, r *http.Request) {
	pageNum := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "page must be a positive integer")
			return
		}
		pageNum = n
	}

	pageSize := h.pageSize
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPageSize {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
				fmt.Sprintf("page_size must be between 1 and %d", MaxPageSize))
			return
		}
		pageSize = n
	}

	markets, err := h.repo.ListMarkets(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list markets", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list markets")
		return
	}

	reviews, err := h.repo.ListReviews(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list reviews", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to aggregate ratings")
		return
	}
	summaries := rating.BatchSummarize(reviews)

	entries := make([]MarketListEntry, 0, len(markets))
	for _, m := range markets {
		entry := MarketListEntry{
			ID:    m.ID,
			Name:  m.Name,
			City:  m.City,
			State: m.State,
		}
		if s, ok := summaries[m.ID]; ok {
			summary := s
			entry.Rating = &summary
			entry.Stars = rating.Stars(summary.Average)
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	result := page.Paginate(entries, pageNum, pageSize)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode market listing", "error", err)
	}
}

// GetMarket handles GET /markets/{name} - the full detail view, reviews
// newest-first, with the rating aggregate computed on read.
func (h *MarketHandlers) GetMarket(w http.ResponseWriter, r *http.Request) {
	name, ok := h.marketName(w, r)
	if !ok {
		return
	}

	detail, err := h.repo.MarketDetail(r.Context(), name)
	if err != nil {
		if errors.Is(err, market.ErrMarketNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMarketNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeMarketNotFound, "Market not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load market detail", "error", err, "market_name", name)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load market")
		return
	}

	summary, err := h.summarizer.ForMarket(r.Context(), detail.Market.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to summarize ratings", "error", err, "market_id", detail.Market.ID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to aggregate ratings")
		return
	}

	reviews := detail.Reviews
	if reviews == nil {
		reviews = []*market.Review{}
	}

	resp := MarketDetailResponse{
		Market:         detail.Market,
		Products:       detail.Products,
		PaymentMethods: detail.PaymentMethods,
		SocialLinks:    detail.SocialLinks,
		Reviews:        reviews,
		Rating:         summary,
		Stars:          rating.Stars(summary.Average),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode market detail", "error", err)
	}
}

// CreateReview handles POST /markets/{name}/reviews - submits a review.
func (h *MarketHandlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	name, ok := h.marketName(w, r)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.Author) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "author is required")
		return
	}
	if req.Rating < market.MinRating || req.Rating > market.MaxRating {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeRatingOutOfRange)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeRatingOutOfRange, "rating must be between 1 and 5")
		return
	}

	found, err := h.repo.FindMarketByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, market.ErrMarketNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMarketNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeMarketNotFound, "Market not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to find market", "error", err, "market_name", name)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to find market")
		return
	}

	review := &market.Review{
		ID:        uuid.New().String(),
		MarketID:  found.ID,
		Author:    strings.TrimSpace(req.Author),
		Rating:    req.Rating,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.AddReview(r.Context(), review); err != nil {
		if errors.Is(err, market.ErrMarketNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMarketNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeMarketNotFound, "Market not found")
			return
		}
		if errors.Is(err, market.ErrRatingOutOfRange) || errors.Is(err, market.ErrEmptyReviewAuthor) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "failed to store review", "error", err, "market_id", found.ID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to store review")
		return
	}

	// Cached aggregates for this market are stale now.
	if err := h.summarizer.Invalidate(r.Context(), found.ID); err != nil {
		slog.WarnContext(r.Context(), "failed to invalidate rating cache", "error", err, "market_id", found.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(review); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode review response", "error", err)
	}
}

// DeleteMarket handles DELETE /markets/{name} - removes a market and its
// reviews and collections.
func (h *MarketHandlers) DeleteMarket(w http.ResponseWriter, r *http.Request) {
	name, ok := h.marketName(w, r)
	if !ok {
		return
	}

	found, err := h.repo.FindMarketByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, market.ErrMarketNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMarketNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeMarketNotFound, "Market not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to find market", "error", err, "market_name", name)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to find market")
		return
	}

	if err := h.repo.DeleteMarket(r.Context(), name); err != nil {
		if errors.Is(err, market.ErrMarketNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMarketNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeMarketNotFound, "Market not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete market", "error", err, "market_name", name)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete market")
		return
	}

	if err := h.summarizer.Invalidate(r.Context(), found.ID); err != nil {
		slog.WarnContext(r.Context(), "failed to invalidate rating cache", "error", err, "market_id", found.ID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// marketName extracts the market name segment from /markets/{name}[/...].
// Writes a validation error and returns false when the segment is missing.
func (h *MarketHandlers) marketName(w http.ResponseWriter, r *http.Request) (string, bool) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/markets/"), "/")
	if len(pathParts) == 0 || strings.TrimSpace(pathParts[0]) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Market name is required")
		return "", false
	}
	return pathParts[0], true
}
