package api

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/openfarm/markets/internal/geo"
	"github.com/openfarm/markets/internal/middleware"
	"github.com/openfarm/markets/internal/search"
)

// SearchHandlers holds dependencies for search HTTP handlers.
type SearchHandlers struct {
	engine  *search.Engine
	metrics *middleware.Metrics
}

// NewSearchHandlers creates a new SearchHandlers instance.
// metrics may be nil, in which case search observations are skipped.
func NewSearchHandlers(engine *search.Engine, metrics *middleware.Metrics) *SearchHandlers {
	return &SearchHandlers{
		engine:  engine,
		metrics: metrics,
	}
}

// SearchResponse represents the response for market search.
type SearchResponse struct {
	Results []search.Summary `json:"results"`
	Meta    search.Meta      `json:"meta"`
}

// SearchMarkets handles GET /markets/search - filters markets by exactly one
// criterion and optionally sorts the results.
//
// Criteria (exactly one required):
//
//	city=...          filter by city, case-insensitive exact match
//	state=...         filter by state
//	postal_code=...   filter by postal code
//	lat=&lng=&radius= filter by distance in miles from a point
//
// Optional:
//
//	sort=name_asc|name_desc|rating_desc
//	include_ratings=true
func (h *SearchHandlers) SearchMarkets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	criterion, ok := h.parseCriterion(w, r)
	if !ok {
		return
	}

	sortMode := search.SortNone
	if raw := strings.TrimSpace(query.Get("sort")); raw != "" {
		sortMode = search.SortMode(raw)
		if !sortMode.Valid() {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
				"sort must be one of: name_asc, name_desc, rating_desc")
			return
		}
	}

	includeRatings := false
	if raw := query.Get("include_ratings"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "include_ratings must be a boolean")
			return
		}
		includeRatings = parsed
	}

	results, meta, err := h.engine.Search(r.Context(), search.Options{
		Criterion:      criterion,
		Sort:           sortMode,
		IncludeRatings: includeRatings,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "search failed", "error", err, "criterion", string(criterion.Kind()))
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Search failed")
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveSearch(string(meta.Criterion), string(sortMode), meta.ResultCount)
	}

	if results == nil {
		results = []search.Summary{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(SearchResponse{Results: results, Meta: meta}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode search response", "error", err)
	}
}

// parseCriterion reads exactly one search criterion from the query string.
// Writes a validation error and returns false on ambiguous or missing input.
func (h *SearchHandlers) parseCriterion(w http.ResponseWriter, r *http.Request) (search.Criterion, bool) {
	query := r.URL.Query()

	city := strings.TrimSpace(query.Get("city"))
	state := strings.TrimSpace(query.Get("state"))
	postalCode := strings.TrimSpace(query.Get("postal_code"))

	latStr := query.Get("lat")
	lngStr := query.Get("lng")
	radiusStr := query.Get("radius")
	hasRadius := latStr != "" || lngStr != "" || radiusStr != ""

	provided := 0
	if city != "" {
		provided++
	}
	if state != "" {
		provided++
	}
	if postalCode != "" {
		provided++
	}
	if hasRadius {
		provided++
	}
	if provided != 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
			"Exactly one of 'city', 'state', 'postal_code', or 'lat'+'lng'+'radius' must be provided")
		return search.Criterion{}, false
	}

	switch {
	case city != "":
		return search.ByCity(city), true
	case state != "":
		return search.ByState(state), true
	case postalCode != "":
		return search.ByPostalCode(postalCode), true
	}

	// Radius criterion: all three parameters are required together.
	if latStr == "" || lngStr == "" || radiusStr == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
			"Radius search requires 'lat', 'lng', and 'radius'")
		return search.Criterion{}, false
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "lat must be between -90 and 90")
		return search.Criterion{}, false
	}

	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || math.IsNaN(lng) || lng < -180 || lng > 180 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "lng must be between -180 and 180")
		return search.Criterion{}, false
	}

	radius, err := strconv.ParseFloat(radiusStr, 64)
	if err != nil || math.IsNaN(radius) || radius < 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "radius must be a non-negative number of miles")
		return search.Criterion{}, false
	}

	return search.ByRadius(geo.Point{Lat: lat, Lng: lng}, radius), true
}
