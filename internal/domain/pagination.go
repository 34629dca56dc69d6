package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is a page request
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination clamps page and page size to valid values
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{
		Page:     page,
		PageSize: pageSize,
	}
}

// Offset is the SQL offset
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit is the SQL limit
func (p Pagination) Limit() int {
	return p.PageSize
}

// JobFilter filters job listings
type JobFilter struct {
	Status *JobStatus `json:"status,omitempty"`
}

// JobListResult is one page of jobs
type JobListResult struct {
	Jobs       []*Job     `json:"jobs"`
	Total      int        `json:"total"`
	Pagination Pagination `json:"pagination"`
}

// TotalPages is the number of pages needed for the result
func (r *JobListResult) TotalPages() int {
	if r.Pagination.PageSize < 1 {
		return 0
	}
	pages := r.Total / r.Pagination.PageSize
	if r.Total%r.Pagination.PageSize > 0 {
		pages++
	}
	return pages
}
