package ddtracer

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// TraceSegment is the process-local view of one trace: the single,
// concurrency-safe owner of the trace's span records and sampling state, and
// the boundary for propagation and flush.
//
// All mutation goes through one mutex. The lock covers only in-memory
// bookkeeping; the hand-off to the Collector happens after the critical
// section, with the payload detached while still consistent.
type TraceSegment struct {
	mu sync.Mutex

	logger       Logger
	collector    Collector
	traceSampler TraceSampler
	spanSampler  SpanSampler

	defaults          SpanDefaults
	injectionStyles   PropagationStyles
	hostname          string
	origin            string
	tagsHeaderMaxSize int
	traceTags         TagMap

	spans                     []*SpanData
	numFinished               int
	samplingDecision          *SamplingDecision
	awaitingDelegatedDecision bool
}

// segmentConfig collects the immutable-at-construction collaborators and
// settings of a TraceSegment.
type segmentConfig struct {
	logger            Logger
	collector         Collector
	traceSampler      TraceSampler
	spanSampler       SpanSampler
	defaults          SpanDefaults
	injectionStyles   PropagationStyles
	hostname          string
	origin            string
	tagsHeaderMaxSize int
	traceTags         map[string]string
	samplingDecision  *SamplingDecision
	delegateSampling  bool
}

// newTraceSegment creates a segment owning localRoot as its first span.
func newTraceSegment(cfg segmentConfig, localRoot *SpanData) *TraceSegment {
	s := &TraceSegment{
		logger:                    cfg.logger,
		collector:                 cfg.collector,
		traceSampler:              cfg.traceSampler,
		spanSampler:               cfg.spanSampler,
		defaults:                  cfg.defaults,
		injectionStyles:           cfg.injectionStyles,
		hostname:                  cfg.hostname,
		origin:                    cfg.origin,
		tagsHeaderMaxSize:         cfg.tagsHeaderMaxSize,
		samplingDecision:          cfg.samplingDecision,
		awaitingDelegatedDecision: cfg.delegateSampling && cfg.samplingDecision == nil,
		spans:                     []*SpanData{localRoot},
	}
	if s.logger == nil {
		s.logger = NewNopLogger()
	}
	if s.collector == nil {
		s.collector = NopCollector{}
	}
	for k, v := range cfg.traceTags {
		s.traceTags.Set(k, v)
	}
	return s
}

// Defaults returns the segment's default span attributes.
func (s *TraceSegment) Defaults() SpanDefaults { return s.defaults }

// Hostname returns the reporting hostname, or "" when not configured.
func (s *TraceSegment) Hostname() string { return s.hostname }

// Origin returns the trace origin, or "" when none propagated in.
func (s *TraceSegment) Origin() string { return s.origin }

// Logger returns the segment's logger.
func (s *TraceSegment) Logger() Logger { return s.logger }

// SamplingDecision returns a copy of the current decision, if any. The copy
// is immutable data; holders may read it without further synchronization.
func (s *TraceSegment) SamplingDecision() (SamplingDecision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samplingDecision == nil {
		return SamplingDecision{}, false
	}
	return *s.samplingDecision, true
}

// RegisterSpan takes ownership of a newly created span record. It is the
// only mutator that increases the number of expected completions, and it is
// safe to call concurrently with SpanFinished and the read accessors.
func (s *TraceSegment) RegisterSpan(data *SpanData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, data)
}

// SpanFinished is called exactly once per span when its handle finishes.
// When the finished count reaches the number of registered spans, the
// sampling decision is finalized (unless a delegated decision is still
// pending an answer, in which case the trace is sent with what it has) and
// the whole span set is handed to the Collector, exactly once.
func (s *TraceSegment) SpanFinished() {
	s.mu.Lock()

	s.numFinished++
	if s.numFinished < len(s.spans) {
		s.mu.Unlock()
		return
	}

	s.makeSamplingDecisionLocked()
	decision := SamplingDecision{Priority: PriorityAutoReject}
	if s.samplingDecision != nil {
		decision = *s.samplingDecision
	}

	spans := s.spans
	s.spans = nil
	s.numFinished = 0
	s.applySamplingTagsLocked(spans, decision)
	s.mu.Unlock()

	// Fire and forget: delivery failures are the Collector's concern and
	// do not roll back completed-span bookkeeping.
	if err := s.collector.Collect(spans); err != nil {
		s.logger.Log("msg", "failed to hand finished trace to collector", "err", err)
	}
}

// makeSamplingDecisionLocked finalizes the decision if none exists and no
// delegated answer is pending. An existing decision is never overwritten.
// The caller holds s.mu.
func (s *TraceSegment) makeSamplingDecisionLocked() {
	if s.samplingDecision != nil && !s.awaitingDelegatedDecision {
		return
	}
	if s.awaitingDelegatedDecision {
		// The downstream service owns the decision. If it never answered,
		// the trace is sent without one and the agent applies its default.
		return
	}
	if s.traceSampler == nil || len(s.spans) == 0 {
		return
	}
	root := s.spans[0]
	if decision, ok := s.traceSampler.SampleTrace(root.TraceID, root.Service, root.Name); ok {
		s.samplingDecision = &decision
	}
}

// applySamplingTagsLocked records the decision and its provenance on the
// outgoing records: the priority in the root's metrics, the decision maker
// in the propagated tags, the applied rate under its mechanism's key, and
// span-sampling marks on kept spans of dropped traces.
func (s *TraceSegment) applySamplingTagsLocked(spans []*SpanData, decision SamplingDecision) {
	if len(spans) == 0 {
		return
	}
	root := spans[0]
	root.setMetric(metricSamplingPriority, float64(decision.Priority))
	if decision.Keep() {
		s.traceTags.Set(tagDecisionMaker, "-"+strconv.Itoa(int(decision.Mechanism)))
	}
	if decision.HasRate {
		switch decision.Mechanism {
		case MechanismAgentRate:
			root.setMetric(metricAgentRate, decision.Rate)
		case MechanismRuleRate:
			root.setMetric(metricRuleRate, decision.Rate)
		}
	}
	s.traceTags.Visit(func(name, value string) {
		root.Tags.Set(name, value)
	})
	if s.origin != "" {
		root.Tags.Set(tagOrigin, s.origin)
	}

	if !decision.Keep() && s.spanSampler != nil {
		for _, span := range spans {
			if rate, ok := s.spanSampler.SampleSpan(span); ok {
				span.setMetric(metricSpanSamplingMechanism, float64(MechanismSpanRate))
				span.setMetric(metricSpanSamplingRate, rate)
			}
		}
	}
}

// Inject writes trace propagation headers for current, which must be a span
// record owned by this segment. A sampling decision is finalized first if
// none exists, so downstream services always see a definite priority.
func (s *TraceSegment) Inject(writer DictWriter, current *SpanData) {
	s.mu.Lock()
	s.makeSamplingDecisionLocked()
	decision := SamplingDecision{Priority: PriorityAutoReject}
	if s.samplingDecision != nil {
		decision = *s.samplingDecision
	}
	tagsHeader, dropped := serializeTraceTags(&s.traceTags, s.tagsHeaderMaxSize)
	styles := s.injectionStyles
	origin := s.origin
	s.mu.Unlock()

	if dropped {
		s.logger.Log("msg", "trace tags exceed the configured header size; dropping the overflow",
			"max", s.tagsHeaderMaxSize)
	}

	if styles.Datadog {
		writer.Set(headerTraceID, strconv.FormatUint(current.TraceID, 10))
		writer.Set(headerParentID, strconv.FormatUint(current.SpanID, 10))
		writer.Set(headerSamplingPriority, strconv.Itoa(int(decision.Priority)))
		if origin != "" {
			writer.Set(headerOrigin, origin)
		}
		if tagsHeader != "" {
			writer.Set(headerTraceTags, tagsHeader)
		}
	}
	if styles.B3 {
		writer.Set(headerB3TraceID, strconv.FormatUint(current.TraceID, 16))
		writer.Set(headerB3SpanID, strconv.FormatUint(current.SpanID, 16))
		sampled := "0"
		if decision.Keep() {
			sampled = "1"
		}
		writer.Set(headerB3Sampled, sampled)
	}
}

// InjectDelegation asks a downstream service to make the sampling decision
// on this trace's behalf. It writes nothing unless the segment was
// configured to delegate and no decision has been fixed yet.
func (s *TraceSegment) InjectDelegation(writer DictWriter) {
	s.mu.Lock()
	pending := s.awaitingDelegatedDecision && s.samplingDecision == nil
	s.mu.Unlock()
	if pending {
		writer.Set(headerDelegateSampling, "1")
	}
}

// ExtractDelegation reads a previously delegated sampling decision from
// reader. Absent headers are a successful no-op; malformed headers are a
// recoverable error and leave the segment without a decision.
func (s *TraceSegment) ExtractDelegation(reader DictReader) error {
	var raw string
	err := reader.ForeachKey(func(key, value string) error {
		if strings.EqualFold(key, headerSamplingDecision) {
			raw = value
		}
		return nil
	})
	if err != nil {
		return err
	}
	if raw == "" {
		return nil
	}

	priorityPart, ratePart, hasRate := cutString(raw, ';')
	priority, err := strconv.Atoi(priorityPart)
	if err != nil {
		return fmt.Errorf("malformed %s header %q: %w", headerSamplingDecision, raw, err)
	}
	decision := SamplingDecision{
		Priority:  SamplingPriority(priority),
		Mechanism: MechanismDelegated,
	}
	if hasRate {
		rate, err := strconv.ParseFloat(strings.TrimPrefix(ratePart, "rate="), 64)
		if err != nil {
			return fmt.Errorf("malformed %s header %q: %w", headerSamplingDecision, raw, err)
		}
		decision.Rate = rate
		decision.HasRate = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaitingDelegatedDecision {
		s.samplingDecision = &decision
		s.awaitingDelegatedDecision = false
	}
	return nil
}

// OverrideSamplingPriority force-sets a manual keep/drop outcome. A manual
// decision is sticky: subsequent automatic arbitration never overwrites it.
func (s *TraceSegment) OverrideSamplingPriority(priority SamplingPriority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplingDecision = &SamplingDecision{
		Priority:  priority,
		Mechanism: MechanismManual,
	}
	s.awaitingDelegatedDecision = false
}

// VisitSpans exposes a read-only view of the span sequence to visitor. The
// segment's lock is held for the duration of the visit, so the slice and the
// records must not be retained or mutated.
func (s *TraceSegment) VisitSpans(visitor func(spans []*SpanData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	visitor(s.spans)
}
