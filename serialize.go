package ddtracer

import (
	"github.com/apm-contrib/datadog-tracer-go/msgpack"
)

// Span records encode as maps with these keys, the layout the agent's trace
// ingestion endpoint expects.
const (
	keyService  = "service"
	keyName     = "name"
	keyResource = "resource"
	keyTraceID  = "trace_id"
	keySpanID   = "span_id"
	keyParentID = "parent_id"
	keyStart    = "start"
	keyDuration = "duration"
	keyError    = "error"
	keyMeta     = "meta"
	keyMetrics  = "metrics"
	keyType     = "type"
)

const fieldsPerSpan = 12

// EncodePayload appends the wire encoding of a batch of trace chunks: an
// array of traces, each an array of span maps.
func EncodePayload(buf []byte, chunks [][]*SpanData) ([]byte, error) {
	buf, err := msgpack.PackArray(buf, uint64(len(chunks)))
	if err != nil {
		return buf, err
	}
	for _, chunk := range chunks {
		if buf, err = EncodeChunk(buf, chunk); err != nil {
			return buf, err
		}
	}
	return buf, nil
}

// EncodeChunk appends the wire encoding of one trace's span records.
func EncodeChunk(buf []byte, spans []*SpanData) ([]byte, error) {
	buf, err := msgpack.PackArray(buf, uint64(len(spans)))
	if err != nil {
		return buf, err
	}
	for _, span := range spans {
		if buf, err = encodeSpan(buf, span); err != nil {
			return buf, err
		}
	}
	return buf, nil
}

func encodeSpan(buf []byte, span *SpanData) ([]byte, error) {
	buf, err := msgpack.PackMap(buf, fieldsPerSpan)
	if err != nil {
		return buf, err
	}

	if buf, err = packStrPair(buf, keyService, span.Service); err != nil {
		return buf, err
	}
	if buf, err = packStrPair(buf, keyName, span.Name); err != nil {
		return buf, err
	}
	if buf, err = packStrPair(buf, keyResource, span.Resource); err != nil {
		return buf, err
	}

	if buf, err = msgpack.PackStr(buf, keyTraceID); err != nil {
		return buf, err
	}
	buf = msgpack.PackUint(buf, span.TraceID)
	if buf, err = msgpack.PackStr(buf, keySpanID); err != nil {
		return buf, err
	}
	buf = msgpack.PackUint(buf, span.SpanID)
	if buf, err = msgpack.PackStr(buf, keyParentID); err != nil {
		return buf, err
	}
	buf = msgpack.PackUint(buf, span.ParentID)

	if buf, err = msgpack.PackStr(buf, keyStart); err != nil {
		return buf, err
	}
	buf = msgpack.PackInt(buf, span.Start.UnixNano())
	if buf, err = msgpack.PackStr(buf, keyDuration); err != nil {
		return buf, err
	}
	buf = msgpack.PackInt(buf, int64(span.Duration))

	if buf, err = msgpack.PackStr(buf, keyError); err != nil {
		return buf, err
	}
	errorFlag := int64(0)
	if span.Error {
		errorFlag = 1
	}
	buf = msgpack.PackInt(buf, errorFlag)

	if buf, err = msgpack.PackStr(buf, keyMeta); err != nil {
		return buf, err
	}
	if buf, err = msgpack.PackMap(buf, uint64(span.Tags.Len())); err != nil {
		return buf, err
	}
	var packErr error
	span.Tags.Visit(func(name, value string) {
		if packErr != nil {
			return
		}
		buf, packErr = packStrPair(buf, name, value)
	})
	if packErr != nil {
		return buf, packErr
	}

	if buf, err = msgpack.PackStr(buf, keyMetrics); err != nil {
		return buf, err
	}
	if buf, err = msgpack.PackMap(buf, uint64(len(span.Metrics))); err != nil {
		return buf, err
	}
	for name, value := range span.Metrics {
		if buf, err = msgpack.PackStr(buf, name); err != nil {
			return buf, err
		}
		buf = msgpack.PackDouble(buf, value)
	}

	if buf, err = packStrPair(buf, keyType, span.ServiceType); err != nil {
		return buf, err
	}
	return buf, nil
}

func packStrPair(buf []byte, key, value string) ([]byte, error) {
	buf, err := msgpack.PackStr(buf, key)
	if err != nil {
		return buf, err
	}
	return msgpack.PackStr(buf, value)
}
