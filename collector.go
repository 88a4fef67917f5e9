package ddtracer

// Collector accepts a fully owned batch of finished span records belonging
// to one trace segment. Delivery is fire-and-forget from the segment's point
// of view; any retry logic lives behind this interface.
type Collector interface {
	Collect(spans []*SpanData) error
	Close() error
}

// NopCollector implements Collector but performs no work.
type NopCollector struct{}

// Collect implements Collector.
func (NopCollector) Collect([]*SpanData) error { return nil }

// Close implements Collector.
func (NopCollector) Close() error { return nil }
