package ddtracer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apm-contrib/datadog-tracer-go/msgpack"
)

func decodeSpanMaps(t *testing.T, payload []byte) [][]map[string]interface{} {
	t.Helper()
	value, rest, err := msgpack.Decode(payload)
	require.NoError(t, err)
	require.Empty(t, rest, "payload decodes in full")

	chunks, ok := value.([]interface{})
	require.True(t, ok)

	out := make([][]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		spans, ok := chunk.([]interface{})
		require.True(t, ok)
		decoded := make([]map[string]interface{}, 0, len(spans))
		for _, span := range spans {
			raw, ok := span.(map[interface{}]interface{})
			require.True(t, ok)
			m := make(map[string]interface{}, len(raw))
			for k, v := range raw {
				m[k.(string)] = v
			}
			decoded = append(decoded, m)
		}
		out = append(out, decoded)
	}
	return out
}

func TestEncodeChunkFields(t *testing.T) {
	start := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	span := &SpanData{
		TraceID:     10,
		SpanID:      11,
		ParentID:    12,
		Service:     "svc",
		ServiceType: "web",
		Name:        "op",
		Resource:    "GET /users",
		Start:       start,
		Duration:    1500 * time.Microsecond,
		Error:       true,
		Metrics:     map[string]float64{"_sampling_priority_v1": 1},
	}
	span.Tags.Set("env", "prod")
	span.Tags.Set("version", "1.2.3")

	payload, err := EncodePayload(nil, [][]*SpanData{{span}})
	require.NoError(t, err)

	chunks := decodeSpanMaps(t, payload)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0], 1)
	m := chunks[0][0]

	require.Len(t, m, 12)
	assert.Equal(t, "svc", m["service"])
	assert.Equal(t, "op", m["name"])
	assert.Equal(t, "GET /users", m["resource"])
	assert.Equal(t, "web", m["type"])
	assert.Equal(t, int64(10), m["trace_id"])
	assert.Equal(t, int64(11), m["span_id"])
	assert.Equal(t, int64(12), m["parent_id"])
	assert.Equal(t, start.UnixNano(), m["start"])
	assert.Equal(t, int64(1500000), m["duration"])
	assert.Equal(t, int64(1), m["error"])

	meta, ok := m["meta"].(map[interface{}]interface{})
	require.True(t, ok)
	assert.Equal(t, "prod", meta["env"])
	assert.Equal(t, "1.2.3", meta["version"])

	metrics, ok := m["metrics"].(map[interface{}]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, metrics["_sampling_priority_v1"])
}

func TestEncodeChunkZeroValues(t *testing.T) {
	payload, err := EncodeChunk(nil, []*SpanData{{}})
	require.NoError(t, err)

	value, _, err := msgpack.Decode(payload)
	require.NoError(t, err)
	spans := value.([]interface{})
	require.Len(t, spans, 1)
	m := spans[0].(map[interface{}]interface{})
	assert.Equal(t, int64(0), m["error"])
	assert.Equal(t, int64(0), m["parent_id"])
	meta := m["meta"].(map[interface{}]interface{})
	assert.Empty(t, meta)
}

func TestEncodePayloadMultipleChunks(t *testing.T) {
	a := &SpanData{Name: "a"}
	b := &SpanData{Name: "b"}
	c := &SpanData{Name: "c"}

	payload, err := EncodePayload(nil, [][]*SpanData{{a, b}, {c}})
	require.NoError(t, err)

	chunks := decodeSpanMaps(t, payload)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 1)
	assert.Equal(t, "a", chunks[0][0]["name"])
	assert.Equal(t, "c", chunks[1][0]["name"])
}

func TestEncodePayloadAppendsToBuffer(t *testing.T) {
	prefix := []byte{0xde, 0xad}
	payload, err := EncodePayload(prefix, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0x90}, payload)
}
