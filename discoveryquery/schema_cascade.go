package discoveryquery

import (
	"context"

	"github.com/pipestream/broker/api"
	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/metadatarepo"
	"github.com/pipestream/broker/xerrors"
)

// GetModuleSchema implements the four-tier schema retrieval cascade of
// §4.7: relational row → archive → live callback → synthesized default.
// Errors from the archive or callback tiers never mask the cascade's final
// NotFound: they are logged at debug level (a repo error is dropped), and
// the final error wraps ErrNotFound alone.
func (q *query) GetModuleSchema(ctx context.Context, req api.GetModuleSchemaRequest) (*api.GetModuleSchemaResponse, error) {
	if resp := q.schemaFromRepo(ctx, req); resp != nil {
		return resp, nil
	}

	if resp := q.schemaFromArchive(ctx, req); resp != nil {
		return resp, nil
	}

	if resp := q.schemaFromCallback(ctx, req); resp != nil {
		return resp, nil
	}

	return nil, xerrors.Wrapf(ErrNotFound, "Module schema not found: %s. Module may not be running or registered.", req.ModuleName)
}

func (q *query) schemaFromRepo(ctx context.Context, req api.GetModuleSchemaRequest) *api.GetModuleSchemaResponse {
	if q.repo == nil {
		return nil
	}

	var row *metadatarepo.ConfigSchemaRow
	var err error
	if req.Version != "" {
		row, err = q.repo.FindSchemaByID(ctx, metadatarepo.DeriveSchemaID(req.ModuleName, req.Version))
	} else {
		row, err = q.repo.FindLatestSchemaByName(ctx, req.ModuleName)
	}
	if err != nil || row == nil {
		return nil
	}

	createdBy := ""
	if row.CreatedBy != nil {
		createdBy = *row.CreatedBy
	}
	return &api.GetModuleSchemaResponse{
		SchemaJSON: row.JSONSchema,
		CreatedBy:  createdBy,
		SyncStatus: string(row.SyncStatus),
	}
}

func (q *query) schemaFromArchive(ctx context.Context, req api.GetModuleSchemaRequest) *api.GetModuleSchemaResponse {
	if q.archive == nil {
		return nil
	}

	version := req.Version
	if version == "" {
		version = "latest"
	}
	schemaJSON, err := q.archive.GetSchemaByName(ctx, req.ModuleName, version)
	if err != nil {
		q.logger.Debug("archive tier of schema cascade failed", clog.String("module", req.ModuleName), clog.Error(err))
		return nil
	}

	resp := &api.GetModuleSchemaResponse{SchemaJSON: schemaJSON}
	if meta, err := q.archive.GetArtifactMetadata(ctx, req.ModuleName); err == nil && meta != nil {
		// metadata failure is non-fatal; content alone is still a valid answer
		resp.CreatedBy = meta.Name
	}
	return resp
}

func (q *query) schemaFromCallback(ctx context.Context, req api.GetModuleSchemaRequest) *api.GetModuleSchemaResponse {
	if q.callback == nil {
		return nil
	}

	meta, err := q.callback.FetchModuleMetadata(ctx, req.ModuleName)
	if err != nil {
		q.logger.Debug("callback tier of schema cascade failed", clog.String("module", req.ModuleName), clog.Error(err))
		return nil
	}

	schemaJSON := meta.JSONConfigSchema
	if schemaJSON == "" {
		schemaJSON = SynthesizeDefaultSchema(req.ModuleName)
	}
	return &api.GetModuleSchemaResponse{SchemaJSON: schemaJSON}
}

// GetModuleSchemaVersions implements Query.
func (q *query) GetModuleSchemaVersions(ctx context.Context, moduleName string) ([]string, error) {
	if q.repo == nil {
		return nil, ErrNotFound
	}
	versions, err := q.repo.ListSchemaVersionsByName(ctx, moduleName)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	return versions, nil
}
