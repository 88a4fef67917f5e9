// Package grpcmd adapts gRPC metadata to the tracer's propagation carrier
// interfaces, so trace context can cross gRPC calls the same way it crosses
// HTTP requests.
package grpcmd

import (
	"google.golang.org/grpc/metadata"
)

// Carrier wraps a metadata.MD as both a DictWriter and a DictReader. gRPC
// metadata keys are lowercased by the transport, which matches the tracer's
// case-insensitive header handling.
type Carrier metadata.MD

// New returns a carrier over md. The metadata is written in place.
func New(md metadata.MD) Carrier { return Carrier(md) }

// Set implements ddtracer.DictWriter.
func (c Carrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

// ForeachKey implements ddtracer.DictReader. For repeated metadata values
// the last one wins, mirroring HTTP header semantics.
func (c Carrier) ForeachKey(handler func(key, value string) error) error {
	for key, values := range c {
		for _, value := range values {
			if err := handler(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}
