package domain

// PaginationParams carries page/limit values from the HTTP layer to the
// in-memory views and repos. Page is 1-indexed. Limit is capped at 100.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams builds a PaginationParams from optional query params.
// Nil pointers fall back to page=1, limit=20.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: 20}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, 100)
	}
	return p
}

// Offset returns the zero-based offset of the first item on the page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Window returns the page of items selected by p.
func Window[T any](items []T, p PaginationParams) []T {
	start := min(p.Offset(), len(items))
	end := min(start+p.Limit, len(items))
	return items[start:end]
}
