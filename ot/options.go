package ot

import (
	otobserver "github.com/opentracing-contrib/go-observer"
)

// TracerOptions allows creating a customized bridge tracer.
type TracerOptions struct {
	observer otobserver.Observer
}

// TracerOption allows for functional options.
type TracerOption func(opts *TracerOptions)

// WithObserver assigns an initialized observer to opts.observer.
func WithObserver(observer otobserver.Observer) TracerOption {
	return func(opts *TracerOptions) {
		opts.observer = observer
	}
}
