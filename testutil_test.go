package ddtracer

import "sync"

// memCollector records every batch handed to it, for assertions.
type memCollector struct {
	mu      sync.Mutex
	batches [][]*SpanData
	closed  bool
}

func (c *memCollector) Collect(spans []*SpanData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, spans)
	return nil
}

func (c *memCollector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *memCollector) Batches() [][]*SpanData {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]*SpanData, len(c.batches))
	copy(out, c.batches)
	return out
}
