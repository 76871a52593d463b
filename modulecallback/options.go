package modulecallback

import (
	"github.com/pipestream/broker/breaker"
	"github.com/pipestream/broker/clog"
	metrics "github.com/pipestream/broker/metrics"
)

// Option configures a Client at construction time.
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	brk    breaker.Breaker
}

// WithLogger injects a logger; the client appends the "modulecallback" namespace.
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("modulecallback")
		}
	}
}

// WithMeter injects a metrics meter.
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithBreaker wraps every GetServiceRegistration call in the given circuit
// breaker, keyed by module name.
func WithBreaker(b breaker.Breaker) Option {
	return func(o *options) {
		o.brk = b
	}
}
