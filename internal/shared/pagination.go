package shared

import "math"

// DefaultPerPage bounds listings that do not ask for an explicit page size.
const DefaultPerPage = 20

// MaxPerPage caps a single page regardless of what the caller asks for.
const MaxPerPage = 100

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination normalizes page/perPage and computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset converts the page bounds into a row offset for the store.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}
