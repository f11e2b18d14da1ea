// Package lifetime parses token lifetimes written as an integer followed by
// a single unit letter, e.g. "15m" or "7d".
package lifetime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidLifetime = errors.New("invalid lifetime")

const maxDuration = time.Duration(1<<63 - 1)

var units = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// Parse rejects unknown units and non-positive values instead of guessing.
func Parse(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if len(value) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLifetime, value)
	}

	unit, ok := units[value[len(value)-1]]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit in %q", ErrInvalidLifetime, value)
	}

	n, err := strconv.ParseInt(value[:len(value)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLifetime, value)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: must be positive, got %q", ErrInvalidLifetime, value)
	}
	if n > int64(maxDuration/unit) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidLifetime, value)
	}

	return time.Duration(n) * unit, nil
}

func MustParse(value string) time.Duration {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}
