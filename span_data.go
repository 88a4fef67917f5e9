package ddtracer

import (
	"time"

	"github.com/zoobzio/clockz"
)

// TagMap is a string-to-string mapping that remembers insertion order, so
// that serialized output and header construction are deterministic. The zero
// value is ready to use. TagMap is not safe for concurrent use; callers
// synchronize through the owning TraceSegment.
type TagMap struct {
	keys   []string
	values map[string]string
}

// Set inserts or replaces the value for name. A replaced key keeps its
// original position.
func (m *TagMap) Set(name, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = value
}

// Lookup returns the value for name and whether it is present.
func (m *TagMap) Lookup(name string) (string, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Remove deletes name from the map.
func (m *TagMap) Remove(name string) {
	if _, ok := m.values[name]; !ok {
		return
	}
	delete(m.values, name)
	for i, k := range m.keys {
		if k == name {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *TagMap) Len() int { return len(m.keys) }

// Visit calls f for each entry in insertion order.
func (m *TagMap) Visit(f func(name, value string)) {
	for _, k := range m.keys {
		f(k, m.values[k])
	}
}

// Copy returns a deep copy.
func (m *TagMap) Copy() TagMap {
	var out TagMap
	m.Visit(out.Set)
	return out
}

// SpanData is the record behind one span: identity, timing, and tags. It is
// owned by the TraceSegment that registered it; the Span handle keeps a
// non-owning reference for the segment's lifetime. TraceID and SpanID are
// assigned at construction and never change.
type SpanData struct {
	TraceID  uint64
	SpanID   uint64
	ParentID uint64 // zero for the local root

	Service     string
	ServiceType string
	Name        string
	Resource    string

	Start    time.Time
	Duration time.Duration // unset until the owning Span finishes
	Error    bool

	Tags    TagMap
	Metrics map[string]float64
}

func (d *SpanData) setMetric(name string, value float64) {
	if d.Metrics == nil {
		d.Metrics = make(map[string]float64)
	}
	d.Metrics[name] = value
}

// SpanDefaults are the service-wide attributes applied to every span before
// the caller's SpanConfig overrides them.
type SpanDefaults struct {
	Service     string
	ServiceType string
	Name        string
	Resource    string
	Tags        map[string]string
}

// SpanConfig carries caller-supplied attributes for a new span. Zero fields
// fall back to the segment defaults; a zero Start means "now".
type SpanConfig struct {
	Service     string
	ServiceType string
	Name        string
	Resource    string
	Start       time.Time
	Tags        map[string]string
}

// applyConfig fills d from defaults overlaid by config, reading the clock
// when no explicit start time was given.
func (d *SpanData) applyConfig(defaults SpanDefaults, config SpanConfig, clock clockz.Clock) {
	d.Service = defaults.Service
	if config.Service != "" {
		d.Service = config.Service
	}
	d.ServiceType = defaults.ServiceType
	if config.ServiceType != "" {
		d.ServiceType = config.ServiceType
	}
	d.Name = defaults.Name
	if config.Name != "" {
		d.Name = config.Name
	}
	d.Resource = defaults.Resource
	if config.Resource != "" {
		d.Resource = config.Resource
	}
	// The span's name doubles as its resource when neither is configured
	// more specifically.
	if d.Resource == "" {
		d.Resource = d.Name
	}
	if config.Start.IsZero() {
		d.Start = clock.Now()
	} else {
		d.Start = config.Start
	}
	for k, v := range defaults.Tags {
		d.Tags.Set(k, v)
	}
	for k, v := range config.Tags {
		d.Tags.Set(k, v)
	}
}
