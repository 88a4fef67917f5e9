package ddtracer

import "math"

// SamplingPriority is the keep/drop outcome communicated to the agent and to
// downstream services. Negative and zero values drop, positive values keep.
type SamplingPriority int

// Available sampling priorities.
const (
	PriorityUserReject SamplingPriority = -1
	PriorityAutoReject SamplingPriority = 0
	PriorityAutoKeep   SamplingPriority = 1
	PriorityUserKeep   SamplingPriority = 2
)

// SamplingMechanism records which part of the system produced a decision.
type SamplingMechanism int

// Available sampling mechanisms.
const (
	MechanismDefault   SamplingMechanism = 0
	MechanismAgentRate SamplingMechanism = 1
	MechanismRuleRate  SamplingMechanism = 3
	MechanismManual    SamplingMechanism = 4
	MechanismDelegated SamplingMechanism = 5
	MechanismSpanRate  SamplingMechanism = 8
)

// SamplingDecision is the immutable outcome attached at most once to a trace:
// the priority, the mechanism that produced it, and, for rate-based
// mechanisms, the rate that was applied.
type SamplingDecision struct {
	Priority  SamplingPriority
	Mechanism SamplingMechanism
	Rate      float64 // meaningful only when HasRate
	HasRate   bool
}

// Keep reports whether the trace should be sent to the agent.
func (d SamplingDecision) Keep() bool { return d.Priority > 0 }

// TraceSampler decides whether a new trace should be kept, as a pure
// function of the trace id and the root span's service and operation name.
// The boolean result is false when the sampler has no opinion.
type TraceSampler interface {
	SampleTrace(traceID uint64, service, name string) (SamplingDecision, bool)
}

// TraceSamplerFunc adapts a function to the TraceSampler interface.
type TraceSamplerFunc func(traceID uint64, service, name string) (SamplingDecision, bool)

// SampleTrace implements TraceSampler.
func (f TraceSamplerFunc) SampleTrace(traceID uint64, service, name string) (SamplingDecision, bool) {
	return f(traceID, service, name)
}

// SpanSampler decides whether an individual span of a dropped trace should
// be kept anyway. The returned rate is recorded on the span when ok is true.
type SpanSampler interface {
	SampleSpan(data *SpanData) (rate float64, ok bool)
}

// SpanSamplerFunc adapts a function to the SpanSampler interface.
type SpanSamplerFunc func(data *SpanData) (rate float64, ok bool)

// SampleSpan implements SpanSampler.
func (f SpanSamplerFunc) SampleSpan(data *SpanData) (float64, bool) { return f(data) }

// knuthFactor spreads sequential trace ids over the uint64 range so that a
// threshold comparison behaves like a uniform coin flip.
const knuthFactor = 1111111111111111111

// sampledByRate reports whether id falls under rate using the Knuth
// multiplicative hash shared by all Datadog tracers, so every tracer in a
// distributed system agrees on the same ids.
func sampledByRate(id uint64, rate float64) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return id*knuthFactor < uint64(rate*math.MaxUint64)
}

// NewRateSampler returns a TraceSampler that keeps the given fraction of
// traces with MechanismRuleRate provenance. The rate is clamped to [0, 1].
func NewRateSampler(rate float64) TraceSampler {
	if rate < 0 {
		rate = 0
	} else if rate > 1 {
		rate = 1
	}
	return TraceSamplerFunc(func(traceID uint64, _, _ string) (SamplingDecision, bool) {
		priority := PriorityAutoReject
		if sampledByRate(traceID, rate) {
			priority = PriorityAutoKeep
		}
		return SamplingDecision{
			Priority:  priority,
			Mechanism: MechanismRuleRate,
			Rate:      rate,
			HasRate:   true,
		}, true
	})
}

// AlwaysSample keeps every trace.
func AlwaysSample() TraceSampler { return NewRateSampler(1) }

// NeverSample drops every trace.
func NeverSample() TraceSampler { return NewRateSampler(0) }
