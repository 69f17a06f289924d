package feed

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCursor reports a cursor that is not a timestamp.
var ErrInvalidCursor = errors.New("invalid cursor")

// ParseCursor decodes a cursor. An empty string means the first page.
func ParseCursor(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCursor, s)
	}
	t = t.UTC()
	return &t, nil
}

// FormatCursor encodes t for the next_cursor field.
func FormatCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
