package change

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator issues change entry ids of the form
// "<unix-millis>-<random-suffix>". Entries created within the same
// millisecond share the prefix, so the generator remembers the ids it
// handed out for the current millisecond and redraws the suffix on a
// collision.
type IDGenerator struct {
	mu     sync.Mutex
	millis int64
	issued map[string]struct{}
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{issued: make(map[string]struct{})}
}

func (g *IDGenerator) Next(now time.Time) string {
	ms := now.UnixMilli()

	g.mu.Lock()
	defer g.mu.Unlock()

	if ms != g.millis {
		g.millis = ms
		g.issued = make(map[string]struct{})
	}
	for {
		id := fmt.Sprintf("%d-%s", ms, uuid.NewString()[:8])
		if _, taken := g.issued[id]; taken {
			continue
		}
		g.issued[id] = struct{}{}
		return id
	}
}
