// Package coordinator implements the Registration Coordinator (C1): the
// streaming state machine that drives one Register request end-to-end
// through validation, discovery-store registration, health gating,
// module-metadata/schema acquisition, persistence, schema archival, and
// event emission, with compensating rollback on failure.
package coordinator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/pipestream/broker/api"
	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/discoverystore"
	"github.com/pipestream/broker/dlock"
	"github.com/pipestream/broker/events"
	"github.com/pipestream/broker/idem"
	"github.com/pipestream/broker/metadatarepo"
	"github.com/pipestream/broker/metrics"
	"github.com/pipestream/broker/modulecallback"
	"github.com/pipestream/broker/ratelimit"
	"github.com/pipestream/broker/schemaarchive"
)

// Coordinator is C1's public contract.
type Coordinator interface {
	// Register drives the streaming state machine and returns a channel of
	// progress events, closed once the terminal COMPLETED/FAILED event has
	// been sent.
	Register(ctx context.Context, req api.RegisterRequest) <-chan api.RegistrationEvent

	Unregister(ctx context.Context, req api.UnregisterRequest) (*api.UnregisterResponse, error)
}

type coordinator struct {
	store    discoverystore.Adapter
	repo     metadatarepo.Repository
	archive  schemaarchive.Client
	callback modulecallback.Client

	idem      idem.Idempotency
	lock      dlock.Locker
	publisher events.Publisher

	limiter      ratelimit.Limiter
	registerRate ratelimit.Limit

	cfg    Config
	logger clog.Logger
	meter  metrics.Meter
	tracer oteltrace.Tracer
}

// New builds a Coordinator. archive/callback may be nil (a service-only
// deployment has no modules to fetch metadata for or archive schemas from);
// store and repo are required since every pipeline registers and persists.
func New(store discoverystore.Adapter, repo metadatarepo.Repository, archive schemaarchive.Client, callback modulecallback.Client, cfg *Config, opts ...Option) (Coordinator, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if repo == nil {
		return nil, ErrRepoNil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	if opt.logger == nil {
		opt.logger, _ = clog.New(&clog.Config{Level: "info", Format: "console", Output: "stdout"})
		opt.logger = opt.logger.WithNamespace("coordinator")
	}
	if opt.meter == nil {
		opt.meter = metrics.Discard()
	}

	return &coordinator{
		store: store, repo: repo, archive: archive, callback: callback,
		idem: opt.idem, lock: opt.lock, publisher: opt.publisher,
		limiter: opt.limiter, registerRate: opt.registerRate,
		cfg: *cfg, logger: opt.logger, meter: opt.meter,
		tracer: otel.Tracer("coordinator"),
	}, nil
}

func now() time.Time { return time.Now() }
