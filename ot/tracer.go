// Package ot bridges the tracer to the OpenTracing API, so instrumentation
// written against opentracing-go can drive Datadog-style trace segments
// without knowing about them.
package ot

import (
	"time"

	opentracing "github.com/opentracing/opentracing-go"

	ddtracer "github.com/apm-contrib/datadog-tracer-go"
)

type tracerImpl struct {
	tracer *ddtracer.Tracer
	opts   *TracerOptions
}

// Wrap receives a ddtracer.Tracer and returns an opentracing tracer.
func Wrap(tr *ddtracer.Tracer, opts ...TracerOption) opentracing.Tracer {
	t := &tracerImpl{
		tracer: tr,
		opts:   &TracerOptions{},
	}
	for _, o := range opts {
		o(t.opts)
	}
	return t
}

func (t *tracerImpl) StartSpan(operationName string, opts ...opentracing.StartSpanOption) opentracing.Span {
	var startSpanOptions opentracing.StartSpanOptions
	for _, opt := range opts {
		opt.Apply(&startSpanOptions)
	}

	config := ddtracer.SpanConfig{
		Name:  operationName,
		Start: startSpanOptions.StartTime,
		Tags:  stringifyTags(startSpanOptions.Tags),
	}

	var (
		span      *ddtracer.Span
		startTime = startSpanOptions.StartTime
	)
	if startTime.IsZero() {
		startTime = time.Now()
	}

	if parent := parentContext(startSpanOptions.References); parent != nil {
		switch {
		case parent.span != nil:
			span = parent.span.StartChild(config)
		case parent.captured != nil:
			extracted, err := t.tracer.ExtractSpan(mapReader(parent.captured), operationName, config)
			if err == nil {
				span = extracted
			}
		}
	}
	if span == nil {
		span = t.tracer.StartSpan(operationName, config)
	}

	sp := &spanImpl{
		span:      span,
		tracer:    t,
		startTime: startTime,
	}
	if t.opts.observer != nil {
		observer, _ := t.opts.observer.OnStartSpan(sp, operationName, startSpanOptions)
		sp.observer = observer
	}
	return sp
}

func parentContext(references []opentracing.SpanReference) *SpanContext {
	for _, ref := range references {
		if sc, ok := ref.ReferencedContext.(*SpanContext); ok {
			return sc
		}
	}
	return nil
}

func (t *tracerImpl) Inject(sc opentracing.SpanContext, format interface{}, carrier interface{}) error {
	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
	default:
		return opentracing.ErrUnsupportedFormat
	}
	context, ok := sc.(*SpanContext)
	if !ok || context.span == nil {
		return opentracing.ErrInvalidSpanContext
	}
	writer, ok := carrier.(opentracing.TextMapWriter)
	if !ok {
		return opentracing.ErrInvalidCarrier
	}
	context.span.Inject(dictWriter{writer})
	return nil
}

func (t *tracerImpl) Extract(format interface{}, carrier interface{}) (opentracing.SpanContext, error) {
	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
	default:
		return nil, opentracing.ErrUnsupportedFormat
	}
	reader, ok := carrier.(opentracing.TextMapReader)
	if !ok {
		return nil, opentracing.ErrInvalidCarrier
	}

	// Capture the carrier's entries; the span is materialized when the
	// caller starts one with this context as parent.
	captured := make(map[string]string)
	err := reader.ForeachKey(func(key, value string) error {
		captured[key] = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(captured) == 0 {
		return nil, opentracing.ErrSpanContextNotFound
	}
	return &SpanContext{captured: captured}, nil
}

// SpanContext holds either a live local parent span or the captured headers
// of a remote one.
type SpanContext struct {
	span     *ddtracer.Span
	captured map[string]string
}

// ForeachBaggageItem belongs to the opentracing.SpanContext interface.
// Baggage is not supported by this tracer.
func (c *SpanContext) ForeachBaggageItem(handler func(k, v string) bool) {}
