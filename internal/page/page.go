// Package page normalizes pagination parameters.
package page

const (
	DefaultSize = 10
	MinSize     = 5
	MaxSize     = 100
)

// Request is a normalized page request. The zero value is not normalized;
// build one with New.
type Request struct {
	Page int `json:"page"`
	Size int `json:"page_size"`
}

// New clamps page to at least 1 and size to [MinSize, MaxSize].
// Zero or negative inputs fall back to page 1 and DefaultSize.
func New(page, size int) Request {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultSize
	case size < MinSize:
		size = MinSize
	case size > MaxSize:
		size = MaxSize
	}
	return Request{Page: page, Size: size}
}

// Offset returns the number of rows to skip.
func (r Request) Offset() int {
	return (r.Page - 1) * r.Size
}

// Limit returns the maximum number of rows to return.
func (r Request) Limit() int {
	return r.Size
}
