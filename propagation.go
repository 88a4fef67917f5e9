package ddtracer

import (
	"errors"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
)

// DictWriter is the key/value sink used for propagation injection. HTTP
// headers, gRPC metadata, and message-bus attributes all satisfy it through
// thin adapters.
type DictWriter interface {
	Set(key, value string)
}

// DictReader is the key/value source used for propagation extraction. Keys
// are matched case-insensitively.
type DictReader interface {
	ForeachKey(handler func(key, value string) error) error
}

// PropagationStyles selects which header conventions injection writes.
// Multiple styles may be enabled at once; each writes its own keys for the
// same semantic values.
type PropagationStyles struct {
	Datadog bool
	B3      bool
}

// Datadog propagation headers.
const (
	headerTraceID          = "x-datadog-trace-id"
	headerParentID         = "x-datadog-parent-id"
	headerSamplingPriority = "x-datadog-sampling-priority"
	headerOrigin           = "x-datadog-origin"
	headerTraceTags        = "x-datadog-tags"
)

// B3 propagation headers.
const (
	headerB3TraceID = "x-b3-traceid"
	headerB3SpanID  = "x-b3-spanid"
	headerB3Sampled = "x-b3-sampled"
)

// Sampling-delegation headers. These are deliberately distinct from trace
// propagation: the request side asks the downstream service to decide, and
// the response side carries the decision back.
const (
	headerDelegateSampling = "x-datadog-delegate-trace-sampling"
	headerSamplingDecision = "x-datadog-sampling-decision"
)

// ErrNoSpanContext is returned by extraction when the carrier holds no trace
// headers at all.
var ErrNoSpanContext = errors.New("no trace context found in carrier")

// HTTPHeadersCarrier adapts http.Header-shaped maps to DictWriter and
// DictReader.
type HTTPHeadersCarrier map[string][]string

// Set implements DictWriter.
func (c HTTPHeadersCarrier) Set(key, value string) {
	c[textproto.CanonicalMIMEHeaderKey(key)] = []string{value}
}

// ForeachKey implements DictReader.
func (c HTTPHeadersCarrier) ForeachKey(handler func(key, value string) error) error {
	for key, values := range c {
		for _, value := range values {
			if err := handler(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// serializeTraceTags renders the propagated ("_dd.p.") subset of tags as
// "key=value" pairs joined by commas, dropping whole entries once maxSize
// would be exceeded. Entries are never truncated mid-value. The boolean
// result reports whether anything was dropped.
func serializeTraceTags(tags *TagMap, maxSize int) (string, bool) {
	var builder strings.Builder
	dropped := false
	tags.Visit(func(name, value string) {
		if !strings.HasPrefix(name, propagatedTagPrefix) {
			return
		}
		entry := len(name) + len(value) + 1 // '='
		if builder.Len() > 0 {
			entry++ // ','
		}
		if builder.Len()+entry > maxSize {
			dropped = true
			return
		}
		if builder.Len() > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(name)
		builder.WriteByte('=')
		builder.WriteString(value)
	})
	return builder.String(), dropped
}

// parseTraceTags is the inverse of serializeTraceTags.
func parseTraceTags(header string) (map[string]string, error) {
	out := make(map[string]string)
	if header == "" {
		return out, nil
	}
	for _, entry := range strings.Split(header, ",") {
		name, value, found := cutString(entry, '=')
		if !found || name == "" {
			return nil, fmt.Errorf("malformed trace tags header entry %q", entry)
		}
		out[name] = value
	}
	return out, nil
}

// cutString splits s around the first occurrence of sep.
func cutString(s string, sep byte) (before, after string, found bool) {
	if i := strings.IndexByte(s, sep); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// ExtractedContext is the result of reading trace propagation headers from
// an inbound request. It seeds a new TraceSegment.
type ExtractedContext struct {
	TraceID   uint64
	ParentID  uint64
	Origin    string
	TraceTags map[string]string
	Decision  *SamplingDecision
}

// extractDatadog reads the Datadog-style headers from reader. It returns
// ErrNoSpanContext when no trace id is present, and a descriptive error when
// headers are present but malformed.
func extractDatadog(reader DictReader) (*ExtractedContext, error) {
	var traceID, parentID, priority, origin, tags string
	err := reader.ForeachKey(func(key, value string) error {
		switch strings.ToLower(key) {
		case headerTraceID:
			traceID = value
		case headerParentID:
			parentID = value
		case headerSamplingPriority:
			priority = value
		case headerOrigin:
			origin = value
		case headerTraceTags:
			tags = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if traceID == "" {
		return nil, ErrNoSpanContext
	}

	out := &ExtractedContext{Origin: origin}
	out.TraceID, err = strconv.ParseUint(traceID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed %s header %q: %w", headerTraceID, traceID, err)
	}
	if parentID != "" {
		out.ParentID, err = strconv.ParseUint(parentID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed %s header %q: %w", headerParentID, parentID, err)
		}
	}
	if priority != "" {
		p, perr := strconv.Atoi(priority)
		if perr != nil {
			return nil, fmt.Errorf("malformed %s header %q: %w", headerSamplingPriority, priority, perr)
		}
		out.Decision = &SamplingDecision{
			Priority:  SamplingPriority(p),
			Mechanism: MechanismDefault,
		}
	}
	out.TraceTags, err = parseTraceTags(tags)
	if err != nil {
		return nil, err
	}
	return out, nil
}
