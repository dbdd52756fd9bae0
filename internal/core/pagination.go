package core

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata. An out-of-range page is kept
// as requested; the table shows it as empty.
func NewPagination(page, perPage, total int) Pagination {
	page, perPage = clampPage(page, perPage)
	totalPages := (total + perPage - 1) / perPage
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool {
	return p.Page > 1
}

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}

// Pages returns the page numbers of a window of at most width pages around
// the current one, for rendering numbered links.
func (p Pagination) Pages(width int) []int {
	if p.TotalPages == 0 || width < 1 {
		return nil
	}
	start := p.Page - width/2
	if start < 1 {
		start = 1
	}
	end := start + width - 1
	if end > p.TotalPages {
		end = p.TotalPages
		start = max(1, end-width+1)
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}
