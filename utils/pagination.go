package utils

import "strconv"

// PostsPerPage is the fixed page size for every listing.
const PostsPerPage = 10

// Pagination describes one bounded page of a larger ordered collection,
// addressed by a 1-based page number.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Paginate resolves a raw page query value against the total item count.
// Missing or unparsable values default to page 1; values beyond the last
// page clamp to the last page. Out-of-range input is never an error.
func Paginate(pageQuery string, total int64, pageSize int) Pagination {
	if pageSize <= 0 {
		pageSize = PostsPerPage
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	page := 1
	if n, err := strconv.Atoi(pageQuery); err == nil && n > 0 {
		page = n
	}
	if page > totalPages {
		page = totalPages
	}

	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Offset returns the row offset of the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
