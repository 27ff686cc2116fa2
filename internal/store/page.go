package store

import (
	"math"
	"strconv"
)

// Pagination bounds.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	// MaxPage keeps (Page-1)*Limit within int for any valid Limit.
	MaxPage = math.MaxInt / MaxPageLimit
)

// PageRequest selects one page of a newest-first listing.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest parses page and limit query values, clamping them to valid
// ranges instead of rejecting them.
func NewPageRequest(pageStr, limitStr string) PageRequest {
	page, _ := strconv.Atoi(pageStr)
	limit, _ := strconv.Atoi(limitStr)
	return PageRequest{Page: page, Limit: limit}.Normalize()
}

// Normalize clamps Page to 1..MaxPage and Limit to 1..MaxPageLimit.
func (p PageRequest) Normalize() PageRequest {
	switch {
	case p.Page < 1:
		p.Page = 1
	case p.Page > MaxPage:
		p.Page = MaxPage
	}
	switch {
	case p.Limit < 1:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of documents to skip.
func (p PageRequest) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Page is a listing response.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NewPage assembles a response page. A nil items slice is returned as empty.
func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
