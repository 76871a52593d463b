package schemaarchive

import (
	"net/http"

	"github.com/pipestream/broker/breaker"
	"github.com/pipestream/broker/clog"
)

// Option configures the Client at construction time.
type Option func(*options)

type options struct {
	logger     clog.Logger
	brk        breaker.Breaker
	httpClient *http.Client
}

// WithLogger injects a logger; the client appends the "schemaarchive" namespace.
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("schemaarchive")
		}
	}
}

// WithBreaker wraps every request in the given circuit breaker, keyed by
// the request's artifact id.
func WithBreaker(b breaker.Breaker) Option {
	return func(o *options) { o.brk = b }
}

// WithHTTPClient overrides the default *http.Client (useful in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}
