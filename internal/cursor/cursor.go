// Package cursor encodes and decodes connection cursors.
// A cursor is the decimal text of a 1-based page number. Cursors are not
// signed, so a client can forge one for any page.
package cursor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FirstPage is the page served when no cursor is given.
const FirstPage = 1

// ErrInvalidCursor reports a cursor that is not a positive page number.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is an opaque page token.
type Cursor string

// Encode returns the cursor for a page number.
func Encode(page int) Cursor {
	return Cursor(strconv.Itoa(page))
}

// Page parses the cursor into its page number.
func (c Cursor) Page() (int, error) {
	raw := strings.TrimSpace(string(c))
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a page number", ErrInvalidCursor, string(c))
	}
	if page < FirstPage {
		return 0, fmt.Errorf("%w: page %d must be at least %d", ErrInvalidCursor, page, FirstPage)
	}
	return page, nil
}

// PageOf resolves an optional cursor; nil means the first page.
func PageOf(c *Cursor) (int, error) {
	if c == nil {
		return FirstPage, nil
	}
	return c.Page()
}

// Next returns the cursor of the page after page.
func Next(page int) Cursor {
	return Encode(page + 1)
}
