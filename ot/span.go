package ot

import (
	"fmt"
	"time"

	otobserver "github.com/opentracing-contrib/go-observer"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"

	ddtracer "github.com/apm-contrib/datadog-tracer-go"
)

type spanImpl struct {
	tracer    *tracerImpl
	span      *ddtracer.Span
	observer  otobserver.SpanObserver
	startTime time.Time
}

func (s *spanImpl) SetOperationName(operationName string) opentracing.Span {
	if s.observer != nil {
		s.observer.OnSetOperationName(operationName)
	}
	s.span.SetOperationName(operationName)
	return s
}

func (s *spanImpl) SetTag(key string, value interface{}) opentracing.Span {
	if s.observer != nil {
		s.observer.OnSetTag(key, value)
	}

	switch key {
	case string(ext.SamplingPriority):
		if priority, ok := priorityFromTag(value); ok {
			s.span.TraceSegment().OverrideSamplingPriority(priority)
		}
		return s
	case "service.name":
		name, _ := value.(string)
		s.span.SetServiceName(name)
		return s
	case string(ext.Error):
		if isError, ok := value.(bool); ok {
			s.span.SetError(isError)
			return s
		}
	case "resource.name":
		name, _ := value.(string)
		s.span.SetResourceName(name)
		return s
	}

	s.span.SetTag(key, fmt.Sprint(value))
	return s
}

// priorityFromTag maps the opentracing sampling.priority convention (0 drop,
// positive keep) onto manual user decisions.
func priorityFromTag(value interface{}) (ddtracer.SamplingPriority, bool) {
	var n int
	switch v := value.(type) {
	case uint16:
		n = int(v)
	case int:
		n = v
	default:
		return 0, false
	}
	if n > 0 {
		return ddtracer.PriorityUserKeep, true
	}
	return ddtracer.PriorityUserReject, true
}

func (s *spanImpl) LogKV(keyValues ...interface{}) {
	fields, err := otlog.InterleavedKVToFields(keyValues...)
	if err != nil {
		return
	}
	s.LogFields(fields...)
}

func (s *spanImpl) LogFields(fields ...otlog.Field) {
	for _, field := range fields {
		if field.Key() == "error" || field.Key() == "message" {
			s.span.SetErrorMessage(fmt.Sprint(field.Value()))
			continue
		}
		s.span.SetTag(field.Key(), fmt.Sprint(field.Value()))
	}
}

func (s *spanImpl) LogEvent(event string) {
	s.Log(opentracing.LogData{Event: event})
}

func (s *spanImpl) LogEventWithPayload(event string, payload interface{}) {
	s.Log(opentracing.LogData{Event: event, Payload: payload})
}

func (s *spanImpl) Log(ld opentracing.LogData) {
	if ld.Event != "" {
		s.span.SetTag(ld.Event, fmt.Sprint(ld.Payload))
	}
}

func (s *spanImpl) Finish() {
	if s.observer != nil {
		s.observer.OnFinish(opentracing.FinishOptions{})
	}
	s.span.Finish()
}

func (s *spanImpl) FinishWithOptions(opts opentracing.FinishOptions) {
	if s.observer != nil {
		s.observer.OnFinish(opts)
	}
	if !opts.FinishTime.IsZero() {
		s.span.SetEndTime(opts.FinishTime)
	}
	s.span.Finish()
}

func (s *spanImpl) Tracer() opentracing.Tracer {
	return s.tracer
}

func (s *spanImpl) Context() opentracing.SpanContext {
	return &SpanContext{span: s.span}
}

// SetBaggageItem is a no-op; baggage is not supported by this tracer.
func (s *spanImpl) SetBaggageItem(key, val string) opentracing.Span {
	return s
}

// BaggageItem always returns "".
func (s *spanImpl) BaggageItem(key string) string {
	return ""
}
