package channel

import (
	"bytes"
	"sync"
)

// capture collects process output up to a limit. Writes past the limit
// are accepted and discarded so the writer never blocks the child.
type capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func newCapture(limit int64) *capture {
	return &capture{limit: limit}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.limit - int64(c.buf.Len())
	switch {
	case room <= 0:
		c.truncated = len(p) > 0 || c.truncated
	case int64(len(p)) > room:
		c.buf.Write(p[:room])
		c.truncated = true
	default:
		c.buf.Write(p)
	}
	return len(p), nil
}

func (c *capture) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

func (c *capture) String() string {
	return string(c.Bytes())
}

func (c *capture) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}
