package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/pipestream/broker/api"
	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/discoverystore"
	"github.com/pipestream/broker/discoveryquery"
	"github.com/pipestream/broker/events"
	"github.com/pipestream/broker/metadatarepo"
	"github.com/pipestream/broker/metrics"
	"github.com/pipestream/broker/modulecallback"
	"github.com/pipestream/broker/trace"
)

// Register implements Coordinator. The returned channel is closed after the
// terminal event (COMPLETED or FAILED) has been sent.
func (c *coordinator) Register(ctx context.Context, req api.RegisterRequest) <-chan api.RegistrationEvent {
	out := make(chan api.RegistrationEvent, c.cfg.EventChannelBuffer)

	go func() {
		defer close(out)
		c.runRegister(ctx, req, out)
	}()

	return out
}

func (c *coordinator) runRegister(ctx context.Context, req api.RegisterRequest, out chan<- api.RegistrationEvent) {
	ctx, span := c.tracer.Start(ctx, "coordinator.Register", oteltrace.WithAttributes(
		attribute.String("registrant.name", req.Name),
		attribute.String("registrant.kind", req.Kind.String()),
	))
	defer span.End()

	var lastEvent api.EventType
	defer func() {
		result := "failed"
		if lastEvent == api.EventTypeCompleted {
			result = "completed"
		}
		c.recordRegistrationResult(ctx, req.Kind.String(), result)
	}()

	emit := func(evt api.RegistrationEvent) {
		evt.Timestamp = now()
		lastEvent = evt.EventType
		select {
		case out <- evt:
		case <-ctx.Done():
		}
	}

	emit(api.RegistrationEvent{EventType: api.EventTypeStarted})

	if c.limiter != nil {
		allowed, err := c.limiter.Allow(ctx, req.Name, c.registerRate)
		if err != nil || !allowed {
			emit(api.RegistrationEvent{EventType: api.EventTypeFailed, ErrorDetail: ErrRateLimited.Error()})
			return
		}
	}

	if !validateRegisterRequest(req) {
		emit(api.RegistrationEvent{EventType: api.EventTypeFailed, ErrorDetail: ErrMissingFields.Error()})
		return
	}

	serviceID := deriveServiceID(req.Name, req.Connectivity.AdvertisedHost, req.Connectivity.AdvertisedPort)

	pipeline := func(emit func(api.RegistrationEvent)) {
		emit(api.RegistrationEvent{EventType: api.EventTypeValidated, ServiceID: serviceID})
		c.runPipeline(ctx, req, serviceID, emit)
	}

	if c.idem == nil {
		pipeline(emit)
		return
	}

	key := c.cfg.IdemKeyPrefix + serviceID
	ran := false
	result, err := c.idem.Execute(ctx, key, func(ctx context.Context) (interface{}, error) {
		ran = true
		var collected []api.RegistrationEvent
		collect := func(evt api.RegistrationEvent) {
			evt.Timestamp = now()
			lastEvent = evt.EventType
			collected = append(collected, evt)
			select {
			case out <- evt:
			case <-ctx.Done():
			}
		}
		pipeline(collect)
		return collected, nil
	})

	if err != nil {
		// concurrent duplicate in flight, or an idem store error
		emit(api.RegistrationEvent{EventType: api.EventTypeFailed, ServiceID: serviceID, ErrorDetail: err.Error()})
		return
	}

	if ran {
		// fn ran live above and already streamed every event to `out`
		// through collect; nothing left to replay.
		return
	}

	// A cache hit: fn never ran for this call, so replay the sequence
	// recorded by whichever call first completed it.
	if replay, ok := decodeCachedEvents(result); ok {
		for _, evt := range replay {
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}
}

// decodeCachedEvents re-marshals the generic value idem.Execute returns on a
// cache hit (a []interface{} of map[string]interface{}, since the cache only
// remembers JSON bytes) back into typed events.
func decodeCachedEvents(v interface{}) ([]api.RegistrationEvent, bool) {
	if v == nil {
		return nil, false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out []api.RegistrationEvent
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

// runPipeline executes the CONSUL_REGISTERED→…→COMPLETED/FAILED stages,
// branching into the service or module pipeline after CONSUL_HEALTHY. Each
// stage runs under its own child span off the Register call's root span,
// per §10.
func (c *coordinator) runPipeline(ctx context.Context, req api.RegisterRequest, serviceID string, emit func(api.RegistrationEvent)) {
	comp := newCompensationStack(c.logger)

	registerCtx, registerSpan := c.tracer.Start(ctx, "coordinator.consul_register")
	in := c.buildRegisterInput(serviceID, req)
	rec := discoverystore.EncodeRecord(in)
	prober := discoverystore.NewProber(rec, req.Connectivity.InternalHost, int(req.Connectivity.InternalPort), req.Connectivity.TLSEnabled)

	if err := c.store.Register(registerCtx, rec, 0, prober); err != nil {
		trace.MarkSpanError(registerSpan, err)
		registerSpan.End()
		emit(api.RegistrationEvent{EventType: api.EventTypeFailed, ServiceID: serviceID, ErrorDetail: "Discovery store registration failed: " + err.Error()})
		return
	}
	registerSpan.End()
	comp.push(func(ctx context.Context) error {
		_, err := c.store.Deregister(ctx, serviceID)
		return err
	})

	emit(api.RegistrationEvent{EventType: api.EventTypeConsulRegistered, ServiceID: serviceID})
	emit(api.RegistrationEvent{EventType: api.EventTypeHealthCheckConfigured, ServiceID: serviceID})

	healthCtx, healthSpan := c.tracer.Start(ctx, "coordinator.health_gate")
	waitStart := now()
	healthy := c.store.WaitForHealthy(healthCtx, req.Name, serviceID)
	c.recordHealthGateWait(ctx, req.Kind.String(), now().Sub(waitStart).Seconds())
	healthSpan.End()

	if !healthy {
		comp.unwind(detachedContext(ctx))
		emit(api.RegistrationEvent{EventType: api.EventTypeFailed, ServiceID: serviceID, ErrorDetail: ErrHealthTimeout.Error()})
		return
	}

	emit(api.RegistrationEvent{EventType: api.EventTypeConsulHealthy, ServiceID: serviceID})

	if req.Kind == api.RegistrantKindService {
		c.runServicePipeline(ctx, req, serviceID, emit)
		return
	}

	c.runModulePipeline(ctx, req, serviceID, comp, emit)
}

// recordRegistrationResult implements §10's registrations_total{kind,result}
// counter. Metric creation failures are non-fatal: a nil meter/error simply
// skips recording, mirroring the lazy per-call pattern used elsewhere in the
// pack (e.g. modulecallback, dlock).
func (c *coordinator) recordRegistrationResult(ctx context.Context, kind, result string) {
	if c.meter == nil {
		return
	}
	if counter, err := c.meter.Counter(MetricRegistrationsTotal, "coordinator: Register outcomes by kind and result"); err == nil && counter != nil {
		counter.Inc(ctx, metrics.L(LabelKind, kind), metrics.L(LabelResult, result))
	}
}

// recordHealthGateWait implements §10's health_gate_wait_seconds histogram.
func (c *coordinator) recordHealthGateWait(ctx context.Context, kind string, seconds float64) {
	if c.meter == nil {
		return
	}
	if hist, err := c.meter.Histogram(MetricHealthGateWaitSeconds, "coordinator: time spent waiting for a newly registered instance to become healthy", metrics.WithUnit("s")); err == nil && hist != nil {
		hist.Record(ctx, seconds, metrics.L(LabelKind, kind))
	}
}

// buildRegisterInput converts the wire request into C2's encoding input.
func (c *coordinator) buildRegisterInput(serviceID string, req api.RegisterRequest) discoverystore.RegisterInput {
	eps := make([]discoverystore.HTTPEndpoint, 0, len(req.HTTPEndpoints))
	for _, e := range req.HTTPEndpoints {
		eps = append(eps, discoverystore.HTTPEndpoint{
			Scheme: e.Scheme, Host: e.Host, Port: int(e.Port),
			BasePath: e.BasePath, HealthPath: e.HealthPath, TLSEnabled: e.TLSEnabled,
		})
	}

	kind := "SERVICE"
	if req.Kind == api.RegistrantKindModule {
		kind = "MODULE"
	}

	return discoverystore.RegisterInput{
		ServiceID: serviceID,
		Name:      req.Name,
		Kind:      kind,
		Connectivity: discoverystore.Connectivity{
			AdvertisedHost: req.Connectivity.AdvertisedHost,
			AdvertisedPort: int(req.Connectivity.AdvertisedPort),
			InternalHost:   req.Connectivity.InternalHost,
			InternalPort:   int(req.Connectivity.InternalPort),
			TLSEnabled:     req.Connectivity.TLSEnabled,
		},
		Version:              req.Version,
		Metadata:             req.Metadata,
		Tags:                 req.Tags,
		Capabilities:         req.Capabilities,
		HTTPEndpoints:        eps,
		HTTPSchemaArtifactID: req.HTTPSchemaArtifactID,
		HTTPSchemaVersion:    req.HTTPSchemaVersion,
	}
}

// runServicePipeline implements §4.1's service pipeline steps 3-4.
func (c *coordinator) runServicePipeline(ctx context.Context, req api.RegisterRequest, serviceID string, emit func(api.RegistrationEvent)) {
	if req.HTTPSchema != "" && c.archive != nil {
		base := req.HTTPSchemaArtifactID
		if base == "" {
			base = req.Name + "-http"
		}
		version := req.HTTPSchemaVersion
		if version == "" {
			version = req.Version
		}
		if _, err := c.archive.CreateOrUpdateWithArtifactBase(ctx, base, version, req.HTTPSchema); err != nil {
			c.logger.Warn("http schema archive failed, continuing", clog.String("service_id", serviceID), clog.Error(err))
		}
	}

	if c.publisher != nil {
		c.publisher.PublishServiceRegistered(detachedContext(ctx), events.RegisteredPayload{
			ServiceID: serviceID, Name: req.Name, Kind: "SERVICE",
			Host: req.Connectivity.AdvertisedHost, Port: req.Connectivity.AdvertisedPort,
			Version: req.Version, Timestamp: now(),
		})
	}

	emit(api.RegistrationEvent{EventType: api.EventTypeCompleted, ServiceID: serviceID})
}

// runModulePipeline implements §4.1's module pipeline steps 3-7. Each remote
// call (callback, persist, archive) runs under its own child span, per §10.
func (c *coordinator) runModulePipeline(ctx context.Context, req api.RegisterRequest, serviceID string, comp *compensationStack, emit func(api.RegistrationEvent)) {
	metaCtx, metaSpan := c.tracer.Start(ctx, "coordinator.fetch_module_metadata")
	meta, err := c.fetchModuleMetadata(metaCtx, req.Name)
	if err != nil {
		trace.MarkSpanError(metaSpan, err)
		metaSpan.End()
		comp.unwind(detachedContext(ctx))
		emit(api.RegistrationEvent{EventType: api.EventTypeFailed, ServiceID: serviceID, ErrorDetail: ErrCallbackFailed.Error() + ": " + err.Error()})
		return
	}
	metaSpan.End()

	emit(api.RegistrationEvent{EventType: api.EventTypeMetadataRetrieved, ServiceID: serviceID})

	schemaJSON := meta.JSONConfigSchema
	if schemaJSON == "" {
		schemaJSON = discoveryquery.SynthesizeDefaultSchema(req.Name)
	}

	emit(api.RegistrationEvent{EventType: api.EventTypeSchemaValidated, ServiceID: serviceID})

	persistCtx, persistSpan := c.tracer.Start(ctx, "coordinator.persist_module")
	row, err := c.persistModule(persistCtx, req, serviceID, schemaJSON)
	if err != nil {
		trace.MarkSpanError(persistSpan, err)
		persistSpan.End()
		comp.unwind(detachedContext(ctx))
		emit(api.RegistrationEvent{EventType: api.EventTypeFailed, ServiceID: serviceID, ErrorDetail: ErrPersistFailed.Error() + ": " + err.Error()})
		return
	}
	persistSpan.End()
	if row != nil && row.ConfigSchemaID != nil {
		schemaID := *row.ConfigSchemaID
		comp.push(func(ctx context.Context) error {
			// Best-effort handler that marks the schema FAILED. No stage
			// after DATABASE_SAVED calls comp.unwind (archive failure is
			// non-fatal and the remaining steps cannot fail), so in this
			// pipeline the handler never runs: a rolled-back attempt only
			// deregisters from the discovery store.
			return c.repo.MarkSchemaFailed(ctx, schemaID, "rolled back")
		})
	}

	emit(api.RegistrationEvent{EventType: api.EventTypeDatabaseSaved, ServiceID: serviceID})

	c.archiveModuleSchema(ctx, req, serviceID, schemaJSON, emit)

	if c.publisher != nil {
		c.publisher.PublishModuleRegistered(detachedContext(ctx), events.RegisteredPayload{
			ServiceID: serviceID, Name: req.Name, Kind: "MODULE",
			Host: req.Connectivity.AdvertisedHost, Port: req.Connectivity.AdvertisedPort,
			Version: req.Version, Timestamp: now(),
		})
	}

	emit(api.RegistrationEvent{EventType: api.EventTypeCompleted, ServiceID: serviceID})
}

func (c *coordinator) fetchModuleMetadata(ctx context.Context, moduleName string) (*modulecallback.ServiceRegistrationMetadata, error) {
	if c.callback == nil {
		return nil, ErrCallbackFailed
	}
	return c.callback.FetchModuleMetadata(ctx, moduleName)
}

func (c *coordinator) persistModule(ctx context.Context, req api.RegisterRequest, serviceID, schemaJSON string) (*metadatarepo.ModuleRow, error) {
	run := func(ctx context.Context) (*metadatarepo.ModuleRow, error) {
		return c.repo.RegisterModule(ctx, metadatarepo.RegisterModuleInput{
			ServiceID: serviceID, ServiceName: req.Name,
			Host: req.Connectivity.AdvertisedHost, Port: int(req.Connectivity.AdvertisedPort),
			Version: req.Version, Metadata: req.Metadata, ConfigSchemaJSON: schemaJSON,
		})
	}

	if c.lock == nil {
		return run(ctx)
	}

	if err := c.lock.Lock(ctx, serviceID); err != nil {
		return nil, err
	}
	defer c.lock.Unlock(detachedContext(ctx), serviceID)

	return run(ctx)
}

// archiveModuleSchema implements step 6: non-fatal archive, with the
// source's dual-use of SCHEMA_VALIDATED on failure (§9, documented as a
// deliberately preserved open question rather than silently changed).
func (c *coordinator) archiveModuleSchema(ctx context.Context, req api.RegisterRequest, serviceID, schemaJSON string, emit func(api.RegistrationEvent)) {
	if c.archive == nil {
		return
	}

	// The relational write above may have run inside a transactional
	// context; §4.1 requires a fresh execution context here so the HTTP
	// client never inherits it.
	archiveCtx := detachedContext(ctx)
	archiveCtx, archiveSpan := c.tracer.Start(archiveCtx, "coordinator.archive_module_schema")
	defer archiveSpan.End()
	schemaID := metadatarepo.DeriveSchemaID(req.Name, req.Version)

	result, err := c.archive.CreateOrUpdateWithArtifactBase(archiveCtx, req.Name, req.Version, schemaJSON)
	if err != nil {
		trace.MarkSpanError(archiveSpan, err)
		c.logger.Warn("schema archive failed, continuing", clog.String("service_id", serviceID), clog.Error(err))
		emit(api.RegistrationEvent{EventType: api.EventTypeSchemaValidated, ServiceID: serviceID, Message: "Apicurio registry sync skipped (failure)"})
		_ = c.repo.MarkSchemaFailed(ctx, schemaID, err.Error())
		return
	}

	_ = c.repo.MarkSchemaSynced(ctx, schemaID, result.ArtifactID, result.GlobalID)
	emit(api.RegistrationEvent{EventType: api.EventTypeApicurioRegistered, ServiceID: serviceID})
}

// detachedContext strips cancellation/deadline from ctx while preserving its
// values, for compensation/cleanup work that must run even after the
// request context is gone.
func detachedContext(ctx context.Context) context.Context {
	return detachedCtx{ctx}
}

type detachedCtx struct{ context.Context }

func (detachedCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detachedCtx) Done() <-chan struct{}       { return nil }
func (detachedCtx) Err() error                  { return nil }
