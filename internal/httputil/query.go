package httputil

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Page bounds for list endpoints.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Page is an offset/limit window over a newest-first list.
type Page struct {
	Offset int
	Limit  int
}

// Apply returns the slice of items covered by the page.
func Apply[T any](p Page, items []T) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := min(p.Offset+p.Limit, len(items))
	return items[p.Offset:end]
}

// ParsePage reads the offset and limit query parameters. offset defaults to 0 and
// limit to DefaultPageLimit, capped at MaxPageLimit.
func ParsePage(c *gin.Context) (Page, error) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return Page{}, fmt.Errorf("invalid offset parameter: must be a non-negative integer")
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageLimit)))
	if err != nil || limit < 1 || limit > MaxPageLimit {
		return Page{}, fmt.Errorf("invalid limit parameter: must be between 1 and %d", MaxPageLimit)
	}

	return Page{Offset: offset, Limit: limit}, nil
}

// ParseWindow reads a Go duration query parameter such as "24h", bounded to (0, max].
func ParseWindow(c *gin.Context, param string, def, max time.Duration) (time.Duration, error) {
	raw, ok := c.GetQuery(param)
	if !ok || raw == "" {
		return def, nil
	}
	window, err := time.ParseDuration(raw)
	if err != nil || window <= 0 || window > max {
		return 0, fmt.Errorf("invalid %s parameter: must be a positive duration up to %s", param, max)
	}
	return window, nil
}
