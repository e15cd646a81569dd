// Package page provides fixed-size offset pagination over ordered in-memory
// result sets.
package page

// DefaultSize is the page size used when the caller does not configure one.
const DefaultSize = 10

// Page is a contiguous, 1-indexed window over an ordered result list together
// with its paging metadata.
type Page[T any] struct {
	Items      []T `json:"items"`
	Number     int `json:"page"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
}

// TotalPages returns ceil(total/pageSize), with a minimum of 1 even when the
// result set is empty. pageSize must be positive.
func TotalPages(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Paginate slices items into the requested 1-indexed page of size pageSize.
// The window is clipped to the sequence bounds: a page beyond the last one
// yields an empty slice but keeps the requested page number in the metadata.
// The input slice is never mutated; the returned Items share its backing array.
// page and pageSize must be positive; callers validate before slicing.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)
	totalPages := TotalPages(total, pageSize)

	// Any page past the last is empty. Checked before computing offsets so a
	// huge page number cannot overflow the start index into a negative bound.
	if page > totalPages {
		return Page[T]{
			Items:      items[total:],
			Number:     page,
			TotalPages: totalPages,
			Total:      total,
		}
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	return Page[T]{
		Items:      items[start:end],
		Number:     page,
		TotalPages: totalPages,
		Total:      total,
	}
}

// Clamp keeps a navigation target within [1, totalPages]. Requesting the page
// before the first or after the last is a no-op for menu-style navigation.
func Clamp(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
