package ddtracer

import (
	"time"

	"github.com/zoobzio/clockz"
)

// Span is the user-facing handle around one unit of work. It holds a
// non-owning reference to its record (the record's true owner is the
// TraceSegment) and a shared reference to the segment itself, so the segment
// outlives every handle that points into it.
//
// A Span finishes exactly once. After Finish the handle is inert: further
// calls on it are no-ops, and a second Finish does not notify the segment
// again.
type Span struct {
	segment        *TraceSegment
	data           *SpanData
	generateSpanID func() uint64
	clock          clockz.Clock
	endTime        time.Time
}

// newSpan binds a handle to an existing record. All four collaborators are
// required.
func newSpan(data *SpanData, segment *TraceSegment, generateSpanID func() uint64, clock clockz.Clock) *Span {
	if data == nil || segment == nil || generateSpanID == nil || clock == nil {
		panic("ddtracer: span requires a record, a segment, an id generator, and a clock")
	}
	return &Span{
		segment:        segment,
		data:           data,
		generateSpanID: generateSpanID,
		clock:          clock,
	}
}

// ID returns the span id.
func (s *Span) ID() uint64 { return s.data.SpanID }

// TraceID returns the trace id shared by all spans of the segment.
func (s *Span) TraceID() uint64 { return s.data.TraceID }

// TraceSegment returns the segment this span belongs to.
func (s *Span) TraceSegment() *TraceSegment { return s.segment }

// StartChild creates a new span under this one: segment defaults overlaid by
// config, the parent's trace id, a freshly generated span id, and this span
// as parent. The new record is registered with the segment before the handle
// is returned.
//
// A child of a finished span is never registered anywhere: the returned
// handle is inert from birth, like its parent.
func (s *Span) StartChild(config SpanConfig) *Span {
	defaults := SpanDefaults{}
	if s.segment != nil {
		defaults = s.segment.Defaults()
	}
	data := &SpanData{}
	data.applyConfig(defaults, config, s.clock)
	data.TraceID = s.data.TraceID
	data.ParentID = s.data.SpanID
	data.SpanID = s.generateSpanID()

	if s.segment == nil {
		return &Span{data: data, generateSpanID: s.generateSpanID, clock: s.clock}
	}
	s.segment.RegisterSpan(data)
	return newSpan(data, s.segment, s.generateSpanID, s.clock)
}

// SetTag sets a tag on the span. Names under the reserved internal prefix
// are silently ignored; that namespace belongs to system diagnostics.
func (s *Span) SetTag(name, value string) {
	if s.segment == nil || isInternalTag(name) {
		return
	}
	s.data.Tags.Set(name, value)
}

// LookupTag returns a tag's value. Reserved internal tags are invisible.
func (s *Span) LookupTag(name string) (string, bool) {
	if isInternalTag(name) {
		return "", false
	}
	return s.data.Tags.Lookup(name)
}

// RemoveTag removes a tag. Reserved internal tags cannot be removed.
func (s *Span) RemoveTag(name string) {
	if s.segment == nil || isInternalTag(name) {
		return
	}
	s.data.Tags.Remove(name)
}

// SetServiceName sets the span's service.
func (s *Span) SetServiceName(service string) {
	if s.segment == nil {
		return
	}
	s.data.Service = service
}

// SetServiceType sets the span's service type.
func (s *Span) SetServiceType(serviceType string) {
	if s.segment == nil {
		return
	}
	s.data.ServiceType = serviceType
}

// SetResourceName sets the span's resource.
func (s *Span) SetResourceName(resource string) {
	if s.segment == nil {
		return
	}
	s.data.Resource = resource
}

// SetOperationName sets the span's operation name.
func (s *Span) SetOperationName(name string) {
	if s.segment == nil {
		return
	}
	s.data.Name = name
}

// SetErrorMessage flags the span as errored and records the message under
// the error tag.
func (s *Span) SetErrorMessage(message string) {
	if s.segment == nil {
		return
	}
	s.data.Error = true
	s.data.Tags.Set(tagErrorMessage, message)
}

// SetError sets or clears the error flag. Clearing also removes the error
// message tag.
func (s *Span) SetError(isError bool) {
	if s.segment == nil {
		return
	}
	s.data.Error = isError
	if !isError {
		s.data.Tags.Remove(tagErrorMessage)
	}
}

// SetEndTime records an explicit end time to use instead of "now" when the
// span finishes, allowing callers to backdate completion.
func (s *Span) SetEndTime(endTime time.Time) {
	if s.segment == nil {
		return
	}
	s.endTime = endTime
}

// Inject writes trace propagation headers with this span as the current
// span.
func (s *Span) Inject(writer DictWriter) {
	if s.segment == nil {
		return
	}
	s.segment.Inject(writer, s.data)
}

// Finish finalizes the span's duration and notifies the segment. It runs at
// most once per handle; subsequent calls are no-ops. It is safe to call from
// a different goroutine than the one that created the span.
func (s *Span) Finish() {
	if s.segment == nil {
		return
	}
	if s.endTime.IsZero() {
		s.data.Duration = s.clock.Now().Sub(s.data.Start)
	} else {
		s.data.Duration = s.endTime.Sub(s.data.Start)
	}
	segment := s.segment
	s.segment = nil
	segment.SpanFinished()
}
