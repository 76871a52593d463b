// Package modulecallback implements the Module Callback Client (C4):
// it resolves a logical module name to a healthy instance, opens (or
// reuses) a gRPC channel to it, and invokes the module's own
// GetServiceRegistration RPC to fetch its registration metadata.
//
// Channels are cached per logical service name, not per endpoint, using an
// idle-TTL eviction policy (otter v2, mirroring the teacher's standalone
// cache shape but keyed on *grpc.ClientConn with an eviction listener
// instead of plain values). Calls are wrapped in a circuit breaker keyed
// by module name when one is configured.
package modulecallback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/pipestream/broker/breaker"
	"github.com/pipestream/broker/clog"
	metrics "github.com/pipestream/broker/metrics"
	"github.com/pipestream/broker/xerrors"
)

// Client is C4's public surface.
type Client interface {
	// FetchModuleMetadata resolves module_name, dials a healthy instance if
	// needed, and invokes GetServiceRegistration.
	FetchModuleMetadata(ctx context.Context, moduleName string) (*ServiceRegistrationMetadata, error)

	// Close shuts down the client: no new channels may be opened afterward,
	// and every cached channel is drained.
	Close() error
}

type client struct {
	cfg      *Config
	resolver InstanceResolver
	logger   clog.Logger
	meter    metrics.Meter
	brk      breaker.Breaker

	channels     *otter.Cache[string, *grpc.ClientConn]
	shuttingDown atomic.Bool
	closeOnce    sync.Once
}

// New creates the module callback client.
//
// Parameters:
//   - resolver: resolves a logical service name to a dialable address
//     (wired to discoverystore's ListHealthyInstances by the caller)
//   - cfg: channel-cache and transport tuning
//   - opts: optional Logger/Meter/Breaker
func New(resolver InstanceResolver, cfg *Config, opts ...Option) (Client, error) {
	if resolver == nil {
		return nil, ErrResolverNil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger, _ = clog.New(&clog.Config{Level: "info", Format: "console", Output: "stdout"})
		o.logger = o.logger.WithNamespace("modulecallback")
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}

	c := &client{
		cfg:      cfg,
		resolver: resolver,
		logger:   o.logger,
		meter:    o.meter,
	}
	if o.brk != nil {
		c.brk = o.brk
	}

	c.channels = otter.Must(&otter.Options[string, *grpc.ClientConn]{
		MaximumSize:      cfg.ChannelCapacity,
		ExpiryCalculator: otter.ExpiryAccessing[string, *grpc.ClientConn](cfg.ChannelTTL),
		OnDeletion: func(e otter.DeletionEvent[string, *grpc.ClientConn]) {
			if e.Value == nil {
				return
			}
			if counter, err := c.meter.Counter(MetricChannelEvicted, "modulecallback: channels evicted from the cache"); err == nil {
				counter.Inc(context.Background())
			}
			c.closeChannel(e.Key, e.Value)
		},
	})

	return c, nil
}

// FetchModuleMetadata implements Client.
func (c *client) FetchModuleMetadata(ctx context.Context, moduleName string) (*ServiceRegistrationMetadata, error) {
	start := time.Now()
	result, err := c.fetch(ctx, moduleName)

	if hist, herr := c.meter.Histogram(MetricFetchDuration, "modulecallback: GetServiceRegistration call latency"); herr == nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		hist.Record(ctx, time.Since(start).Seconds(), metrics.L(LabelModule, moduleName), metrics.L(LabelResult, outcome))
	}
	return result, err
}

func (c *client) fetch(ctx context.Context, moduleName string) (*ServiceRegistrationMetadata, error) {
	conn, err := c.getChannel(ctx, moduleName)
	if err != nil {
		return nil, err
	}

	invoke := func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()

		var reply ServiceRegistrationMetadata
		if err := conn.Invoke(callCtx, "/broker.module.v1.ModuleCallback/GetServiceRegistration",
			&Empty{}, &reply, grpc.CallContentSubtype(codecName)); err != nil {
			return nil, xerrors.Wrapf(err, "modulecallback: GetServiceRegistration(%s)", moduleName)
		}
		return &reply, nil
	}

	var raw interface{}
	if c.brk != nil {
		raw, err = c.brk.Execute(ctx, moduleName, invoke)
	} else {
		raw, err = invoke()
	}
	if err != nil {
		return nil, err
	}
	return raw.(*ServiceRegistrationMetadata), nil
}

func (c *client) getChannel(ctx context.Context, moduleName string) (*grpc.ClientConn, error) {
	if c.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}

	if conn, ok := c.channels.GetIfPresent(moduleName); ok {
		if counter, err := c.meter.Counter(MetricChannelCacheHit, "modulecallback: channel cache hits"); err == nil {
			counter.Inc(ctx, metrics.L(LabelModule, moduleName))
		}
		return conn, nil
	}

	if counter, err := c.meter.Counter(MetricChannelCacheMiss, "modulecallback: channel cache misses"); err == nil {
		counter.Inc(ctx, metrics.L(LabelModule, moduleName))
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	addr, err := c.resolver(dialCtx, moduleName)
	if err != nil {
		return nil, xerrors.Wrapf(err, "modulecallback: resolve %s", moduleName)
	}
	if addr == "" {
		return nil, ErrNoHealthyInstance
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithInitialWindowSize(c.cfg.FlowControlWindow),
		grpc.WithInitialConnWindowSize(c.cfg.FlowControlWindow),
	)
	if err != nil {
		return nil, xerrors.Wrapf(err, "modulecallback: dial %s", moduleName)
	}
	conn.Connect()

	if c.shuttingDown.Load() {
		c.closeChannel(moduleName, conn)
		return nil, ErrShuttingDown
	}

	if existing, loaded := c.channels.SetIfAbsent(moduleName, conn); loaded {
		// lost the race with a concurrent getChannel; use the winner, close ours
		c.closeChannel(moduleName, conn)
		return existing, nil
	}

	c.logger.Debug("opened module channel", clog.String("module", moduleName), clog.String("address", addr))
	return conn, nil
}

func (c *client) closeChannel(moduleName string, conn *grpc.ClientConn) {
	done := make(chan struct{})
	go func() {
		_ = conn.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.cfg.ShutdownGrace):
		c.logger.Warn("channel close exceeded shutdown grace, no longer waiting", clog.String("module", moduleName))
	}
}

// Close implements Client: flips the shutting-down flag and drains every
// cached channel.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		c.shuttingDown.Store(true)
		c.channels.InvalidateAll()
	})
	return nil
}
