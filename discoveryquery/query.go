// Package discoveryquery implements the remaining surface of Discovery
// Query & Watch (C7): listing, lookup, resolution, watch, and the
// config-schema retrieval cascade. It composes discoverystore,
// metadatarepo, schemaarchive, and modulecallback rather than owning any
// state of its own.
package discoveryquery

import (
	"context"
	"time"

	"github.com/pipestream/broker/api"
	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/discoverystore"
	"github.com/pipestream/broker/metadatarepo"
	"github.com/pipestream/broker/modulecallback"
	"github.com/pipestream/broker/schemaarchive"
	"github.com/pipestream/broker/xerrors"
)

const watchInterval = 2 * time.Second

// Query is C7's remaining public surface.
type Query interface {
	ListServices(ctx context.Context) (*api.ListSnapshot, error)
	ListModules(ctx context.Context) (*api.ListSnapshot, error)

	GetServiceByName(ctx context.Context, name string) (*api.ServiceEntry, error)
	GetServiceByID(ctx context.Context, serviceID string) (*api.ServiceEntry, error)
	GetModuleByName(ctx context.Context, name string) (*api.ServiceEntry, error)
	GetModuleByID(ctx context.Context, serviceID string) (*api.ServiceEntry, error)

	ResolveService(ctx context.Context, req api.ResolveServiceRequest) (*api.ResolveServiceResponse, error)

	// WatchServices/WatchModules return a snapshot channel closed when ctx
	// is cancelled; the first element is delivered immediately.
	WatchServices(ctx context.Context) <-chan api.ListSnapshot
	WatchModules(ctx context.Context) <-chan api.ListSnapshot

	GetModuleSchema(ctx context.Context, req api.GetModuleSchemaRequest) (*api.GetModuleSchemaResponse, error)
	GetModuleSchemaVersions(ctx context.Context, moduleName string) ([]string, error)
}

type query struct {
	store    discoverystore.Adapter
	repo     metadatarepo.Repository
	archive  schemaarchive.Client
	callback modulecallback.Client
	logger   clog.Logger
}

// New creates the C7 query surface. repo/archive/callback may be nil; the
// corresponding cascade tier or module-gated lookups degrade gracefully
// (repo is required for GetModuleSchema's first tier, but a nil repo
// simply falls through to the next tier rather than erroring).
func New(store discoverystore.Adapter, repo metadatarepo.Repository, archive schemaarchive.Client, callback modulecallback.Client, logger clog.Logger) (Query, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if logger == nil {
		logger, _ = clog.New(&clog.Config{Level: "info", Format: "console", Output: "stdout"})
	}
	return &query{store: store, repo: repo, archive: archive, callback: callback, logger: logger.WithNamespace("discoveryquery")}, nil
}

// ListServices implements Query.
func (q *query) ListServices(ctx context.Context) (*api.ListSnapshot, error) {
	return q.list(ctx, false)
}

// ListModules implements Query.
func (q *query) ListModules(ctx context.Context) (*api.ListSnapshot, error) {
	return q.list(ctx, true)
}

func (q *query) list(ctx context.Context, modulesOnly bool) (*api.ListSnapshot, error) {
	names, err := q.store.ListCatalog(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "discoveryquery: list catalog")
	}

	var entries []api.ServiceEntry
	for _, svc := range names {
		instances, err := q.store.ListHealthyInstances(ctx, svc.Name)
		if err != nil {
			continue
		}
		for _, inst := range instances {
			isModule := discoverystore.IsModule(inst.Record)
			if isModule != modulesOnly {
				continue
			}
			entries = append(entries, toServiceEntry(inst))
		}
	}

	return &api.ListSnapshot{Entries: entries, AsOf: now(), TotalCount: int32(len(entries))}, nil
}

func toServiceEntry(inst discoverystore.ServiceEntry) api.ServiceEntry {
	rec := inst.Record
	return api.ServiceEntry{
		ServiceID:     rec.ID,
		Name:          rec.Name,
		Host:          rec.Address,
		Port:          int32(rec.Port),
		Version:       rec.Meta["version"],
		Tags:          rec.Tags,
		Capabilities:  discoverystore.Capabilities(rec.Tags),
		HTTPEndpoints: toAPIEndpoints(discoverystore.DecodeHTTPEndpoints(rec.Meta)),
		Metadata:      rec.Meta,
		Healthy:       inst.Healthy,
	}
}

func toAPIEndpoints(eps []discoverystore.HTTPEndpoint) []api.HTTPEndpoint {
	out := make([]api.HTTPEndpoint, 0, len(eps))
	for _, e := range eps {
		out = append(out, api.HTTPEndpoint{
			Scheme: e.Scheme, Host: e.Host, Port: int32(e.Port),
			BasePath: e.BasePath, HealthPath: e.HealthPath, TLSEnabled: e.TLSEnabled,
		})
	}
	return out
}

// GetServiceByName implements Query.
func (q *query) GetServiceByName(ctx context.Context, name string) (*api.ServiceEntry, error) {
	return q.getByName(ctx, name, false)
}

// GetModuleByName implements Query.
func (q *query) GetModuleByName(ctx context.Context, name string) (*api.ServiceEntry, error) {
	return q.getByName(ctx, name, true)
}

func (q *query) getByName(ctx context.Context, name string, requireModule bool) (*api.ServiceEntry, error) {
	instances, err := q.store.ListHealthyInstances(ctx, name)
	if err != nil || len(instances) == 0 {
		return nil, ErrNotFound
	}
	for _, inst := range instances {
		if requireModule && !discoverystore.IsModule(inst.Record) {
			continue
		}
		entry := toServiceEntry(inst)
		return &entry, nil
	}
	return nil, ErrNotFound
}

// GetServiceByID implements Query.
func (q *query) GetServiceByID(ctx context.Context, serviceID string) (*api.ServiceEntry, error) {
	return q.getByID(ctx, serviceID, false)
}

// GetModuleByID implements Query.
func (q *query) GetModuleByID(ctx context.Context, serviceID string) (*api.ServiceEntry, error) {
	return q.getByID(ctx, serviceID, true)
}

// getByID avoids the source's "peel the last two dashes off service_id"
// heuristic (a latent bug for hostnames containing '-'): the discovery
// record already carries its own service name, so it scans the catalog and
// matches directly on the record's id instead of parsing the id.
func (q *query) getByID(ctx context.Context, serviceID string, requireModule bool) (*api.ServiceEntry, error) {
	names, err := q.store.ListCatalog(ctx)
	if err != nil {
		return nil, ErrNotFound
	}
	for _, svc := range names {
		instances, err := q.store.ListHealthyInstances(ctx, svc.Name)
		if err != nil {
			continue
		}
		for _, inst := range instances {
			if inst.Record.ID != serviceID {
				continue
			}
			if requireModule && !discoverystore.IsModule(inst.Record) {
				continue
			}
			entry := toServiceEntry(inst)
			return &entry, nil
		}
	}
	return nil, ErrNotFound
}

// ResolveService implements Query.
func (q *query) ResolveService(ctx context.Context, req api.ResolveServiceRequest) (*api.ResolveServiceResponse, error) {
	instances, err := q.store.ListHealthyInstances(ctx, req.Name)
	if err != nil || len(instances) == 0 {
		return &api.ResolveServiceResponse{
			Found: false, TotalInstances: 0, HealthyInstances: 0,
			SelectionReason: "No healthy instances found", ResolvedAt: now(),
		}, nil
	}

	candidates := make([]discoverystore.ServiceEntry, 0, len(instances))
	for _, inst := range instances {
		if !hasAllTags(inst.Record.Tags, req.RequiredTags) {
			continue
		}
		if !hasAllCapabilities(inst.Record.Tags, req.RequiredCapabilities) {
			continue
		}
		candidates = append(candidates, inst)
	}

	if len(candidates) == 0 {
		return &api.ResolveServiceResponse{
			Found: false, TotalInstances: int32(len(instances)), HealthyInstances: int32(len(instances)),
			SelectionReason: "No instances match the required criteria", ResolvedAt: now(),
		}, nil
	}

	selected := candidates[0]
	reason := "first available instance"
	if req.PreferLocal {
		for _, c := range candidates {
			if c.Record.Address == "localhost" || c.Record.Address == "127.0.0.1" {
				selected = c
				reason = "preferred local instance"
				break
			}
		}
	}

	rec := selected.Record
	return &api.ResolveServiceResponse{
		Found:                true,
		Host:                 rec.Address,
		Port:                 int32(rec.Port),
		ServiceID:            rec.ID,
		Version:              rec.Meta["version"],
		Tags:                 rec.Tags,
		Capabilities:         discoverystore.Capabilities(rec.Tags),
		HTTPEndpoints:        toAPIEndpoints(discoverystore.DecodeHTTPEndpoints(rec.Meta)),
		HTTPSchemaArtifactID: rec.Meta["http_schema_artifact_id"],
		HTTPSchemaVersion:    rec.Meta["http_schema_version"],
		Metadata:             rec.Meta,
		TotalInstances:       int32(len(instances)),
		HealthyInstances:     int32(len(instances)),
		SelectionReason:      reason,
		ResolvedAt:           now(),
	}, nil
}

func hasAllTags(tags, required []string) bool {
	for _, r := range required {
		if !discoverystore.HasTag(tags, r) {
			return false
		}
	}
	return true
}

func hasAllCapabilities(tags, required []string) bool {
	have := discoverystore.Capabilities(tags)
	for _, r := range required {
		found := false
		for _, h := range have {
			if h == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// WatchServices implements Query.
func (q *query) WatchServices(ctx context.Context) <-chan api.ListSnapshot {
	return q.watch(ctx, false)
}

// WatchModules implements Query.
func (q *query) WatchModules(ctx context.Context) <-chan api.ListSnapshot {
	return q.watch(ctx, true)
}

func (q *query) watch(ctx context.Context, modulesOnly bool) <-chan api.ListSnapshot {
	out := make(chan api.ListSnapshot, 1)

	emit := func() {
		snap, err := q.list(ctx, modulesOnly)
		if err != nil {
			snap = &api.ListSnapshot{AsOf: now()}
		}
		select {
		case out <- *snap:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(out)
		emit()

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				emit()
			}
		}
	}()

	return out
}

func now() time.Time { return time.Now() }
