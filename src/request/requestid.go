package request

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewRequestID returns "<prefix>_<unix ms>_<9 random chars>"
func NewRequestID(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = Interactive.RequestIDPrefix
	}
	id := strings.ToLower(ulid.Make().String())
	// the tail of a ULID is its random part
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), id[len(id)-9:])
}
