package ddtracer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentFlushesExactlyOnceWhenAllSpansFinish(t *testing.T) {
	collector := &memCollector{}
	tracer := NewTracer(WithCollector(collector))

	root := tracer.StartSpan("root", SpanConfig{Service: "svc"})
	children := make([]*Span, 0, 3)
	for i := 0; i < 3; i++ {
		children = append(children, root.StartChild(SpanConfig{Name: fmt.Sprintf("child.%d", i)}))
	}

	for _, child := range children {
		child.Finish()
		assert.Empty(t, collector.Batches(), "must not flush while the root is open")
	}
	root.Finish()

	batches := collector.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 4)
}

func TestSegmentConcurrentRegisterAndFinish(t *testing.T) {
	const workers = 64
	collector := &memCollector{}
	tracer := NewTracer(WithCollector(collector))

	root := tracer.StartSpan("root", SpanConfig{Service: "svc"})

	var wg sync.WaitGroup
	spans := make(chan *Span, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			spans <- root.StartChild(SpanConfig{Name: fmt.Sprintf("worker.%d", i)})
		}(i)
	}
	wg.Wait()
	close(spans)

	for span := range spans {
		span := span
		wg.Add(1)
		go func() {
			defer wg.Done()
			span.Finish()
		}()
	}
	wg.Wait()
	root.Finish()

	batches := collector.Batches()
	require.Len(t, batches, 1, "exactly one flush regardless of interleaving")
	assert.Len(t, batches[0], workers+1)
}

func TestSegmentFinishedCountNeverExceedsRegistered(t *testing.T) {
	collector := &memCollector{}
	tracer := NewTracer(WithCollector(collector))

	root := tracer.StartSpan("root", SpanConfig{})
	child := root.StartChild(SpanConfig{Name: "child"})

	child.Finish()
	child.Finish() // second finish is a no-op
	assert.Empty(t, collector.Batches())

	root.Finish()
	require.Len(t, collector.Batches(), 1)
}

func TestSamplingDecisionRecordedOnFlush(t *testing.T) {
	collector := &memCollector{}
	tracer := NewTracer(
		WithCollector(collector),
		WithTraceSampler(AlwaysSample()),
	)

	root := tracer.StartSpan("root", SpanConfig{Service: "svc"})
	segment := root.TraceSegment()
	root.Finish()

	decision, ok := segment.SamplingDecision()
	require.True(t, ok)
	assert.Equal(t, PriorityAutoKeep, decision.Priority)
	assert.Equal(t, MechanismRuleRate, decision.Mechanism)
	assert.True(t, decision.HasRate)
	assert.Equal(t, 1.0, decision.Rate)

	batches := collector.Batches()
	require.Len(t, batches, 1)
	rootData := batches[0][0]
	assert.Equal(t, float64(PriorityAutoKeep), rootData.Metrics[metricSamplingPriority])
	assert.Equal(t, 1.0, rootData.Metrics[metricRuleRate])
	dm, ok := rootData.Tags.Lookup(tagDecisionMaker)
	require.True(t, ok)
	assert.Equal(t, "-3", dm)
}

func TestManualOverrideIsSticky(t *testing.T) {
	collector := &memCollector{}
	tracer := NewTracer(
		WithCollector(collector),
		WithTraceSampler(AlwaysSample()),
	)

	root := tracer.StartSpan("root", SpanConfig{})
	segment := root.TraceSegment()
	segment.OverrideSamplingPriority(PriorityUserReject)
	root.Finish()

	decision, ok := segment.SamplingDecision()
	require.True(t, ok)
	assert.Equal(t, PriorityUserReject, decision.Priority)
	assert.Equal(t, MechanismManual, decision.Mechanism)
	assert.False(t, decision.Keep())
}

func TestDroppedTraceConsultsSpanSampler(t *testing.T) {
	collector := &memCollector{}
	tracer := NewTracer(
		WithCollector(collector),
		WithTraceSampler(NeverSample()),
		WithSpanSampler(SpanSamplerFunc(func(data *SpanData) (float64, bool) {
			return 0.5, data.Name == "keep.me"
		})),
	)

	root := tracer.StartSpan("root", SpanConfig{})
	child := root.StartChild(SpanConfig{Name: "keep.me"})
	child.Finish()
	root.Finish()

	batches := collector.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	kept := batches[0][1]
	require.Equal(t, "keep.me", kept.Name)
	assert.Equal(t, float64(MechanismSpanRate), kept.Metrics[metricSpanSamplingMechanism])
	assert.Equal(t, 0.5, kept.Metrics[metricSpanSamplingRate])
	assert.NotContains(t, batches[0][0].Metrics, metricSpanSamplingMechanism)
}

func TestVisitSpansHoldsConsistentView(t *testing.T) {
	tracer := NewTracer()
	root := tracer.StartSpan("root", SpanConfig{})
	child := root.StartChild(SpanConfig{Name: "child"})

	var names []string
	root.TraceSegment().VisitSpans(func(spans []*SpanData) {
		for _, span := range spans {
			names = append(names, span.Name)
		}
	})
	assert.Equal(t, []string{"root", "child"}, names)

	child.Finish()
	root.Finish()
}

func TestExtractDelegationAbsentIsNoOp(t *testing.T) {
	tracer := NewTracer(WithDelegatedSampling(true))
	root := tracer.StartSpan("root", SpanConfig{})
	segment := root.TraceSegment()

	require.NoError(t, segment.ExtractDelegation(HTTPHeadersCarrier{}))
	_, ok := segment.SamplingDecision()
	assert.False(t, ok)
	root.Finish()
}

func TestExtractDelegationMalformedIsRecoverable(t *testing.T) {
	collector := &memCollector{}
	tracer := NewTracer(WithCollector(collector), WithDelegatedSampling(true))
	root := tracer.StartSpan("root", SpanConfig{})
	segment := root.TraceSegment()

	carrier := HTTPHeadersCarrier{}
	carrier.Set("x-datadog-sampling-decision", "not-a-number")
	err := segment.ExtractDelegation(carrier)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x-datadog-sampling-decision")

	// The trace still completes and flushes without a decision.
	root.Finish()
	require.Len(t, collector.Batches(), 1)
}

func TestExtractDelegationAdoptsDecision(t *testing.T) {
	tracer := NewTracer(WithDelegatedSampling(true))
	root := tracer.StartSpan("root", SpanConfig{})
	segment := root.TraceSegment()

	carrier := HTTPHeadersCarrier{}
	carrier.Set("x-datadog-sampling-decision", "2;rate=0.25")
	require.NoError(t, segment.ExtractDelegation(carrier))

	decision, ok := segment.SamplingDecision()
	require.True(t, ok)
	assert.Equal(t, PriorityUserKeep, decision.Priority)
	assert.Equal(t, MechanismDelegated, decision.Mechanism)
	assert.True(t, decision.HasRate)
	assert.Equal(t, 0.25, decision.Rate)
	root.Finish()
}

func TestDelegationInjectOnlyWhilePending(t *testing.T) {
	tracer := NewTracer(WithDelegatedSampling(true))
	root := tracer.StartSpan("root", SpanConfig{})
	segment := root.TraceSegment()

	carrier := HTTPHeadersCarrier{}
	segment.InjectDelegation(carrier)
	assert.Equal(t, []string{"1"}, carrier["X-Datadog-Delegate-Trace-Sampling"])

	segment.OverrideSamplingPriority(PriorityUserKeep)
	second := HTTPHeadersCarrier{}
	segment.InjectDelegation(second)
	assert.Empty(t, second)
	root.Finish()
}
