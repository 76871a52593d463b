package events

import (
	"context"
	"encoding/json"

	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/mq"
	"github.com/pipestream/broker/xerrors"
)

// Publisher is the Event Publisher collaborator referenced throughout §4.1:
// fire-and-forget notifications, one topic per {Service,Module}×{Registered,Unregistered}.
type Publisher interface {
	PublishServiceRegistered(ctx context.Context, payload RegisteredPayload)
	PublishServiceUnregistered(ctx context.Context, payload UnregisteredPayload)
	PublishModuleRegistered(ctx context.Context, payload RegisteredPayload)
	PublishModuleUnregistered(ctx context.Context, payload UnregisteredPayload)
}

type publisher struct {
	client mq.Client
	cfg    Config
	logger clog.Logger
}

// New creates a Publisher backed by an already-constructed mq.Client.
func New(client mq.Client, cfg Config, logger clog.Logger) (Publisher, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	cfg.setDefaults()
	if logger == nil {
		logger, _ = clog.New(&clog.Config{Level: "info", Format: "console", Output: "stdout"})
	}
	return &publisher{client: client, cfg: cfg, logger: logger.WithNamespace("events")}, nil
}

func (p *publisher) PublishServiceRegistered(ctx context.Context, payload RegisteredPayload) {
	p.publish(ctx, p.cfg.ServiceRegisteredTopic, payload.ServiceID, payload)
}

func (p *publisher) PublishServiceUnregistered(ctx context.Context, payload UnregisteredPayload) {
	p.publish(ctx, p.cfg.ServiceUnregisteredTopic, payload.ServiceID, payload)
}

func (p *publisher) PublishModuleRegistered(ctx context.Context, payload RegisteredPayload) {
	p.publish(ctx, p.cfg.ModuleRegisteredTopic, payload.ServiceID, payload)
}

func (p *publisher) PublishModuleUnregistered(ctx context.Context, payload UnregisteredPayload) {
	p.publish(ctx, p.cfg.ModuleUnregisteredTopic, payload.ServiceID, payload)
}

// publish is fire-and-forget: a failure is logged, never returned, since
// every call site in the coordinator treats event emission as best-effort.
func (p *publisher) publish(ctx context.Context, topic, serviceID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal event payload", clog.String("topic", topic), clog.Error(err))
		return
	}

	key := DeriveKey(serviceID).String()
	if err := p.client.Publish(ctx, topic, data, mq.WithKey(key)); err != nil {
		p.logger.Warn("failed to publish lifecycle event",
			clog.String("topic", topic), clog.String("service_id", serviceID), clog.Error(xerrors.Wrap(err, "events: publish")))
	}
}
