package pagination

import (
	"context"
	"errors"
	"fmt"
)

const (
	// DefaultMaxPages bounds how many pages CollectAll follows before giving up
	DefaultMaxPages = 1000
)

var (
	// ErrTooManyPages is returned when a listing does not end within the page limit
	ErrTooManyPages = errors.New("pagination did not finish within the page limit")

	// ErrCursorLoop is returned when the server hands out a cursor it already returned
	ErrCursorLoop = errors.New("pagination cursor repeated")
)

// Page is one page of a cursor-paginated listing
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// FetchFunc fetches the page starting at cursor. The first page has an empty cursor.
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Collector tracks progress through a cursor-paginated listing
type Collector struct {
	// NextCursor holds the pagination cursor for the next page
	NextCursor string
	// HasMore indicates if there are more pages to fetch
	HasMore bool
	// TotalItems is the total number of items collected so far
	TotalItems int
	// Pages is the number of pages seen so far
	Pages int

	maxPages int
	seen     map[string]struct{}
}

// NewCollector creates a new pagination collector. maxPages <= 0 selects DefaultMaxPages.
func NewCollector(maxPages int) *Collector {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Collector{
		HasMore:  true,
		maxPages: maxPages,
		seen:     make(map[string]struct{}),
	}
}

// Update records one page with itemCount items and the cursor the server returned
func (c *Collector) Update(nextCursor string, itemCount int) error {
	c.Pages++
	c.TotalItems += itemCount
	c.NextCursor = nextCursor
	c.HasMore = nextCursor != ""

	if !c.HasMore {
		return nil
	}
	if _, dup := c.seen[nextCursor]; dup {
		c.HasMore = false
		return fmt.Errorf("%w: %q", ErrCursorLoop, nextCursor)
	}
	c.seen[nextCursor] = struct{}{}

	if c.Pages >= c.maxPages {
		c.HasMore = false
		return fmt.Errorf("%w: %d pages", ErrTooManyPages, c.maxPages)
	}
	return nil
}

// CollectAll follows cursors until the server stops returning one and returns
// every item in server order.
func CollectAll[T any](ctx context.Context, maxPages int, fetch FetchFunc[T]) ([]T, error) {
	collector := NewCollector(maxPages)
	items := make([]T, 0)

	for collector.HasMore {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, collector.NextCursor)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)

		if err := collector.Update(page.NextCursor, len(page.Items)); err != nil {
			return nil, err
		}
	}

	return items, nil
}
