package media

import "github.com/desertthunder/postsiva/internal/backend"

// Cursor describes the last loaded page. Offset+Count never exceeds Total.
type Cursor struct {
	Total   int
	Limit   int
	Offset  int
	Count   int
	HasMore bool
}

// Next is the offset of the page after this one.
func (c Cursor) Next() int { return c.Offset + c.Count }

func cursorFrom(page *backend.MediaPage, requested, limit int) Cursor {
	c := Cursor{Total: page.Total, Limit: page.Limit, Offset: page.Offset, Count: page.Count}
	if c.Limit == 0 {
		c.Limit = limit
	}
	if c.Offset == 0 && requested > 0 {
		c.Offset = requested
	}
	if c.Count == 0 {
		c.Count = len(page.Media)
	}
	return c.settle()
}

// removed accounts for n loaded items deleted locally.
func (c Cursor) removed(n int) Cursor {
	for range n {
		if c.Count > 0 {
			c.Count--
		} else if c.Offset > 0 {
			c.Offset--
		}
		if c.Total > 0 {
			c.Total--
		}
	}
	return c.settle()
}

func (c Cursor) settle() Cursor {
	if c.Total < c.Next() {
		c.Total = c.Next()
	}
	c.HasMore = c.Next() < c.Total
	return c
}
