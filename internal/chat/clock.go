package chat

import (
	"hash/fnv"
	"sync"
	"time"
)

// clock hands out strictly increasing UTC timestamps at microsecond
// resolution, the precision of a Postgres timestamptz.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock(now func() time.Time) *clock {
	if now == nil {
		now = time.Now
	}
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

const roomLockStripes = 64

// roomLocks serializes commit+publish per room. Unrelated rooms may share a
// stripe.
type roomLocks struct {
	stripes [roomLockStripes]sync.Mutex
}

func (l *roomLocks) lock(roomID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	m := &l.stripes[h.Sum32()%roomLockStripes]
	m.Lock()
	return m.Unlock
}
