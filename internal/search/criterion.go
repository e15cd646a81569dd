// Package search turns a search criterion and sort mode into an ordered list
// of market summaries ready for pagination.
package search

import (
	"github.com/openfarm/markets/internal/geo"
	"github.com/openfarm/markets/internal/market"
)

// Kind identifies which variant of Criterion is in use.
type Kind string

// Criterion kinds.
const (
	KindCity       Kind = "city"
	KindState      Kind = "state"
	KindPostalCode Kind = "postal_code"
	KindRadius     Kind = "radius"
)

// Criterion is a closed tagged variant over the supported search modes.
// Construct values only through ByCity, ByState, ByPostalCode, and ByRadius,
// so an exact-match criterion can never carry coordinates and a radius
// criterion can never carry a field value.
type Criterion struct {
	kind   Kind
	field  market.Field
	value  string
	center geo.Point
	radius float64
}

// ByCity selects markets whose city equals value case-insensitively.
func ByCity(value string) Criterion {
	return Criterion{kind: KindCity, field: market.FieldCity, value: value}
}

// ByState selects markets whose state equals value case-insensitively.
func ByState(value string) Criterion {
	return Criterion{kind: KindState, field: market.FieldState, value: value}
}

// ByPostalCode selects markets whose postal code equals value case-insensitively.
func ByPostalCode(value string) Criterion {
	return Criterion{kind: KindPostalCode, field: market.FieldPostalCode, value: value}
}

// ByRadius selects geocoded markets within miles of center (inclusive
// boundary). Markets without coordinates are never members of any radius.
// The engine assumes miles >= 0; callers validate.
func ByRadius(center geo.Point, miles float64) Criterion {
	return Criterion{kind: KindRadius, center: center, radius: miles}
}

// Kind returns the criterion's variant tag.
func (c Criterion) Kind() Kind { return c.kind }

// SortMode selects the ordering applied after filtering.
type SortMode string

// Sort modes. SortNone passes results through in filter order.
const (
	SortNone       SortMode = "none"
	SortNameAsc    SortMode = "name_asc"
	SortNameDesc   SortMode = "name_desc"
	SortRatingDesc SortMode = "rating_desc"
)

// Valid reports whether m is a recognized sort mode.
func (m SortMode) Valid() bool {
	switch m {
	case SortNone, SortNameAsc, SortNameDesc, SortRatingDesc:
		return true
	}
	return false
}
