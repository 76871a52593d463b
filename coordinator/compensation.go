package coordinator

import (
	"context"

	"github.com/pipestream/broker/clog"
)

// compensationStack is the LIFO undo list described in §4.1's rollback
// policy: handlers are pushed as forward stages succeed and unwound in
// reverse order on failure. Every handler is best-effort — its error is
// logged, never surfaced.
type compensationStack struct {
	logger   clog.Logger
	handlers []func(ctx context.Context) error
}

func newCompensationStack(logger clog.Logger) *compensationStack {
	return &compensationStack{logger: logger}
}

func (s *compensationStack) push(handler func(ctx context.Context) error) {
	s.handlers = append(s.handlers, handler)
}

// unwind runs every pushed handler in reverse order with the ctx it is
// given; the pipeline passes detachedContext(ctx) so a cancelled request
// context doesn't abort cleanup of work that context already caused.
func (s *compensationStack) unwind(ctx context.Context) {
	for i := len(s.handlers) - 1; i >= 0; i-- {
		if err := s.handlers[i](ctx); err != nil {
			s.logger.Warn("compensation handler failed", clog.Error(err))
		}
	}
	s.handlers = nil
}
