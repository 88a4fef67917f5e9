package ddtracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerAppliesSpanDefaults(t *testing.T) {
	collector := &memCollector{}
	tracer := NewTracer(
		WithCollector(collector),
		WithSpanDefaults(SpanDefaults{
			Service:     "svc",
			ServiceType: "web",
			Tags:        map[string]string{"env": "prod"},
		}),
	)

	span := tracer.StartSpan("op", SpanConfig{})
	span.Finish()

	batches := collector.Batches()
	require.Len(t, batches, 1)
	data := batches[0][0]
	assert.Equal(t, "svc", data.Service)
	assert.Equal(t, "web", data.ServiceType)
	assert.Equal(t, "op", data.Name)
	assert.Equal(t, "op", data.Resource, "resource falls back to the operation name")
	env, ok := data.Tags.Lookup("env")
	require.True(t, ok)
	assert.Equal(t, "prod", env)
}

func TestTracerConfigOverridesDefaults(t *testing.T) {
	collector := &memCollector{}
	tracer := NewTracer(
		WithCollector(collector),
		WithSpanDefaults(SpanDefaults{Service: "default-svc"}),
	)

	span := tracer.StartSpan("op", SpanConfig{Service: "override-svc", Resource: "GET /"})
	span.Finish()

	batches := collector.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, "override-svc", batches[0][0].Service)
	assert.Equal(t, "GET /", batches[0][0].Resource)
}

func TestTracerCustomIDGenerator(t *testing.T) {
	next := uint64(100)
	tracer := NewTracer(WithIDGenerator(func() uint64 {
		next++
		return next
	}))

	root := tracer.StartSpan("root", SpanConfig{})
	assert.Equal(t, uint64(101), root.TraceID())
	assert.Equal(t, uint64(101), root.ID())

	child := root.StartChild(SpanConfig{Name: "child"})
	assert.Equal(t, uint64(101), child.TraceID())
	assert.Equal(t, uint64(102), child.ID())

	child.Finish()
	root.Finish()
}

func TestTracerCloseClosesCollector(t *testing.T) {
	collector := &memCollector{}
	tracer := NewTracer(WithCollector(collector))
	require.NoError(t, tracer.Close())
	assert.True(t, collector.closed)
}

func TestDefaultIDGeneratorProducesDistinctNonzeroIDs(t *testing.T) {
	seen := make(map[uint64]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := defaultIDGenerator()
		assert.NotZero(t, id)
		assert.Less(t, id, uint64(1)<<63, "ids stay in the positive int64 range")
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}
