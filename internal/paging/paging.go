// Package paging slices lists into fixed-size pages for the admin lists.
package paging

// VisibleWindow is how many page numbers a pager shows at once.
const VisibleWindow = 5

type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int   `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	Pages      []int `json:"pages"`
}

// TotalPages is ceil(n/size), never less than one.
func TotalPages(n, size int) int {
	if size <= 0 || n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Clamp restricts page to [1, total].
func Clamp(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// Paginate returns the requested page of items. An out-of-range page index is
// clamped rather than producing an empty page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	total := TotalPages(len(items), size)
	page = Clamp(page, total)

	start := (page - 1) * size
	end := start + size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	out := make([]T, end-start)
	copy(out, items[start:end])

	return Page[T]{
		Items:      out,
		Page:       page,
		PageSize:   size,
		TotalItems: len(items),
		TotalPages: total,
		Pages:      Window(page, total),
	}
}

// Window returns at most VisibleWindow page numbers centred on page where possible.
func Window(page, total int) []int {
	start := page - VisibleWindow/2
	if start < 1 {
		start = 1
	}
	end := start + VisibleWindow - 1
	if end > total {
		end = total
		start = end - VisibleWindow + 1
		if start < 1 {
			start = 1
		}
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}
