package ddtracer

import (
	"github.com/openzipkin/zipkin-go/model"
	"github.com/openzipkin/zipkin-go/reporter"
)

// ZipkinCollector implements Collector by converting finished trace chunks
// to Zipkin's span model and forwarding them to a zipkin-go reporter. It
// lets this tracer feed a Zipkin-compatible backend instead of (or next to)
// the Datadog agent.
type ZipkinCollector struct {
	reporter  reporter.Reporter
	localName string
}

// NewZipkinCollector wraps a zipkin-go reporter. localServiceName names the
// local endpoint attached to every reported span.
func NewZipkinCollector(r reporter.Reporter, localServiceName string) *ZipkinCollector {
	return &ZipkinCollector{reporter: r, localName: localServiceName}
}

// Collect implements Collector.
func (c *ZipkinCollector) Collect(spans []*SpanData) error {
	for _, span := range spans {
		c.reporter.Send(c.convert(span))
	}
	return nil
}

// Close implements Collector.
func (c *ZipkinCollector) Close() error { return c.reporter.Close() }

func (c *ZipkinCollector) convert(span *SpanData) model.SpanModel {
	var parentID *model.ID
	if span.ParentID != 0 {
		id := model.ID(span.ParentID)
		parentID = &id
	}

	tags := make(map[string]string, span.Tags.Len())
	span.Tags.Visit(func(name, value string) {
		tags[name] = value
	})
	if span.Resource != "" {
		tags["resource.name"] = span.Resource
	}
	if span.Error {
		tags["error"] = "true"
	}

	serviceName := span.Service
	if serviceName == "" {
		serviceName = c.localName
	}

	return model.SpanModel{
		SpanContext: model.SpanContext{
			TraceID:  model.TraceID{Low: span.TraceID},
			ID:       model.ID(span.SpanID),
			ParentID: parentID,
		},
		Name:          span.Name,
		Timestamp:     span.Start,
		Duration:      span.Duration,
		LocalEndpoint: &model.Endpoint{ServiceName: serviceName},
		Tags:          tags,
	}
}

var _ Collector = (*ZipkinCollector)(nil)
