package coordinator

import (
	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/dlock"
	"github.com/pipestream/broker/events"
	"github.com/pipestream/broker/idem"
	"github.com/pipestream/broker/metrics"
	"github.com/pipestream/broker/ratelimit"
)

// Option configures a Coordinator at construction time.
type Option func(*options)

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	idem      idem.Idempotency
	lock      dlock.Locker
	publisher events.Publisher

	limiter      ratelimit.Limiter
	registerRate ratelimit.Limit
}

// WithLogger injects a logger.
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("coordinator")
		}
	}
}

// WithMeter injects a metrics meter.
func WithMeter(m metrics.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithIdempotency dedups concurrent/repeat Register calls by service_id. If
// omitted, every call runs the pipeline unconditionally (no dedup).
func WithIdempotency(i idem.Idempotency) Option {
	return func(o *options) { o.idem = i }
}

// WithLock serializes C5's write per service_id across coordinator
// instances. If omitted, only the in-process idem lock (if any) serializes.
func WithLock(l dlock.Locker) Option {
	return func(o *options) { o.lock = l }
}

// WithPublisher wires the fire-and-forget Event Publisher. If omitted,
// lifecycle events are simply not published.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithRateLimiter gates Register at the coordinator's front door: each call
// consumes one token from a bucket keyed by the registrant name. If
// omitted, Register is never throttled at this layer (the gRPC transport
// may still apply its own interceptor-level limiting).
func WithRateLimiter(l ratelimit.Limiter, limit ratelimit.Limit) Option {
	return func(o *options) {
		o.limiter = l
		o.registerRate = limit
	}
}
