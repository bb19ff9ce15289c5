package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// InRange reports whether the page is servable. The first page is always
// servable, even when the result set is empty.
func (p Pagination) InRange() bool {
	if p.Page == 1 {
		return true
	}
	return p.Page <= p.TotalPages
}

// Offset returns the row offset for the page.
func (p Pagination) Offset() int {
	offset := (p.Page - 1) * p.PerPage
	if offset < 0 {
		return 0
	}
	return offset
}
