package node

import (
	"crypto/sha256"
	"sync"
	"time"

	"meshchat/internal/util"
)

var now = time.Now

type seenEntry struct {
	key [sha256.Size]byte
	at  time.Time
}

// seenCache remembers recently flooded wire lines. The wire format carries
// no message id, so identical lines from the same sender inside the window
// are treated as one message.
type seenCache struct {
	mu     sync.Mutex
	window time.Duration
	at     map[[sha256.Size]byte]time.Time
	order  *util.RingBuffer[seenEntry]
}

func newSeenCache(size int, window time.Duration) *seenCache {
	return &seenCache{
		window: window,
		at:     make(map[[sha256.Size]byte]time.Time, size),
		order:  util.NewRingBuffer[seenEntry](size),
	}
}

// Add records line and reports whether it was new.
func (c *seenCache) Add(line []byte, t time.Time) bool {
	key := sha256.Sum256(line)

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.at[key]; ok && t.Sub(last) < c.window {
		return false
	}
	c.at[key] = t
	if old, evicted := c.order.Push(seenEntry{key: key, at: t}); evicted {
		if c.at[old.key].Equal(old.at) {
			delete(c.at, old.key)
		}
	}
	return true
}

func (c *seenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.at)
}
