package tgui

import "fmt"

// Page is one window of a paged list. Index is 0-based and already clamped.
type Page[T any] struct {
	Items   []T
	Index   int
	Pages   int
	From    int // offset of Items[0] in the full list
	HasPrev bool
	HasNext bool
}

// Paginate returns page index of items, clamping index into range.
func Paginate[T any](items []T, index, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	pages := max(1, (len(items)+size-1)/size)
	index = min(max(index, 0), pages-1)
	from := index * size
	to := min(from+size, len(items))
	return Page[T]{
		Items:   items[from:to],
		Index:   index,
		Pages:   pages,
		From:    from,
		HasPrev: index > 0,
		HasNext: to < len(items),
	}
}

func (p Page[T]) Label() string {
	return fmt.Sprintf("%d/%d", p.Index+1, p.Pages)
}
