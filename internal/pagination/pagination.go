package pagination

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page holds normalized pagination parameters.
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ParsePage reads page/limit query parameters, clamping them to sane
// bounds: page >= 1, 1 <= limit <= 100. Unparsable values fall back to
// defaults rather than erroring.
func ParsePage(r *http.Request) Page {
	p := Page{Number: 1, Size: defaultPageSize}

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			p.Number = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			if n > maxPageSize {
				n = maxPageSize
			}
			p.Size = n
		}
	}
	return p
}

// PaginatedResponse wraps a list with pagination info.
type PaginatedResponse struct {
	Items      any   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginatedResponse builds the standard list envelope. TotalPages is
// the ceiling of total/size and at least 1 so clients always have a
// valid last page to link to.
func NewPaginatedResponse(items any, total int64, page Page) PaginatedResponse {
	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	if totalPages < 1 {
		totalPages = 1
	}
	return PaginatedResponse{
		Items:      items,
		Total:      total,
		Page:       page.Number,
		PerPage:    page.Size,
		TotalPages: totalPages,
	}
}
