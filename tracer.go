package ddtracer

import (
	"os"

	"github.com/zoobzio/clockz"
)

const defaultTagsHeaderMaxSize = 512

// TracerOptions allows creating a customized Tracer.
type TracerOptions struct {
	defaults          SpanDefaults
	collector         Collector
	logger            Logger
	traceSampler      TraceSampler
	spanSampler       SpanSampler
	injectionStyles   PropagationStyles
	hostname          string
	tagsHeaderMaxSize int
	delegateSampling  bool
	clock             clockz.Clock
	generateID        func() uint64
}

// TracerOption allows for functional options.
// See: http://dave.cheney.net/2014/10/17/functional-options-for-friendly-apis
type TracerOption func(opts *TracerOptions)

// WithSpanDefaults sets the service-wide defaults applied to every span.
func WithSpanDefaults(defaults SpanDefaults) TracerOption {
	return func(opts *TracerOptions) { opts.defaults = defaults }
}

// WithCollector sets the delivery sink for finished traces.
func WithCollector(collector Collector) TracerOption {
	return func(opts *TracerOptions) { opts.collector = collector }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger Logger) TracerOption {
	return func(opts *TracerOptions) { opts.logger = logger }
}

// WithTraceSampler sets the sampler consulted when a trace needs a local
// sampling decision.
func WithTraceSampler(sampler TraceSampler) TracerOption {
	return func(opts *TracerOptions) { opts.traceSampler = sampler }
}

// WithSpanSampler sets the sampler consulted for individual spans of dropped
// traces.
func WithSpanSampler(sampler SpanSampler) TracerOption {
	return func(opts *TracerOptions) { opts.spanSampler = sampler }
}

// WithPropagationStyles selects the header conventions injection writes.
func WithPropagationStyles(styles PropagationStyles) TracerOption {
	return func(opts *TracerOptions) { opts.injectionStyles = styles }
}

// WithHostname sets the reporting hostname. Without this option the
// operating system's hostname is used.
func WithHostname(hostname string) TracerOption {
	return func(opts *TracerOptions) { opts.hostname = hostname }
}

// WithTagsHeaderMaxSize caps the serialized size of the trace-tags
// propagation header.
func WithTagsHeaderMaxSize(n int) TracerOption {
	return func(opts *TracerOptions) { opts.tagsHeaderMaxSize = n }
}

// WithDelegatedSampling makes new segments defer their sampling decision to
// a downstream service.
func WithDelegatedSampling(enabled bool) TracerOption {
	return func(opts *TracerOptions) { opts.delegateSampling = enabled }
}

// WithClock injects a clock, enabling deterministic tests.
func WithClock(clock clockz.Clock) TracerOption {
	return func(opts *TracerOptions) { opts.clock = clock }
}

// WithIDGenerator injects the span/trace id source.
func WithIDGenerator(generate func() uint64) TracerOption {
	return func(opts *TracerOptions) { opts.generateID = generate }
}

// Tracer is the factory for trace segments and their root spans. It carries
// the collaborators every segment shares: collector, samplers, logger,
// clock, and id source.
type Tracer struct {
	opts TracerOptions
}

// NewTracer creates a Tracer. Without options it keeps every trace and
// discards it in a nop collector; real deployments configure at least a
// collector and a sampler.
func NewTracer(options ...TracerOption) *Tracer {
	opts := TracerOptions{
		collector:         NopCollector{},
		logger:            NewNopLogger(),
		traceSampler:      AlwaysSample(),
		injectionStyles:   PropagationStyles{Datadog: true},
		tagsHeaderMaxSize: defaultTagsHeaderMaxSize,
		clock:             clockz.RealClock,
		generateID:        defaultIDGenerator,
	}
	for _, o := range options {
		o(&opts)
	}
	if opts.hostname == "" {
		if hostname, err := os.Hostname(); err == nil {
			opts.hostname = hostname
		}
	}
	return &Tracer{opts: opts}
}

// StartSpan creates a new local trace: a fresh segment whose root span has a
// newly generated trace id.
func (t *Tracer) StartSpan(name string, config SpanConfig) *Span {
	if config.Name == "" {
		config.Name = name
	}
	data := &SpanData{}
	data.applyConfig(t.opts.defaults, config, t.opts.clock)
	data.TraceID = t.opts.generateID()
	data.SpanID = data.TraceID

	segment := newTraceSegment(t.segmentConfig("", nil, nil), data)
	return newSpan(data, segment, t.opts.generateID, t.opts.clock)
}

// ExtractSpan continues a trace whose context arrives in reader: the new
// segment adopts the remote trace id, sampling decision, origin, and trace
// tags, and its root span is a child of the remote parent. It returns
// ErrNoSpanContext when the carrier holds no trace headers.
func (t *Tracer) ExtractSpan(reader DictReader, name string, config SpanConfig) (*Span, error) {
	extracted, err := extractDatadog(reader)
	if err != nil {
		return nil, err
	}

	if config.Name == "" {
		config.Name = name
	}
	data := &SpanData{}
	data.applyConfig(t.opts.defaults, config, t.opts.clock)
	data.TraceID = extracted.TraceID
	data.ParentID = extracted.ParentID
	data.SpanID = t.opts.generateID()

	segment := newTraceSegment(
		t.segmentConfig(extracted.Origin, extracted.TraceTags, extracted.Decision), data)
	return newSpan(data, segment, t.opts.generateID, t.opts.clock), nil
}

// Close flushes and shuts down the collector, best effort.
func (t *Tracer) Close() error {
	return t.opts.collector.Close()
}

func (t *Tracer) segmentConfig(origin string, traceTags map[string]string, decision *SamplingDecision) segmentConfig {
	return segmentConfig{
		logger:            t.opts.logger,
		collector:         t.opts.collector,
		traceSampler:      t.opts.traceSampler,
		spanSampler:       t.opts.spanSampler,
		defaults:          t.opts.defaults,
		injectionStyles:   t.opts.injectionStyles,
		hostname:          t.opts.hostname,
		origin:            origin,
		tagsHeaderMaxSize: t.opts.tagsHeaderMaxSize,
		traceTags:         traceTags,
		samplingDecision:  decision,
		delegateSampling:  t.opts.delegateSampling,
	}
}
