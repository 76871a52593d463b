// Package metadatarepo implements the Metadata Repository (C5): the
// relational store of registered modules and their configuration schemas,
// layered on top of the generic db component's transactional GORM handle.
package metadatarepo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pipestream/broker/clog"
	dbpkg "github.com/pipestream/broker/db"
	"github.com/pipestream/broker/xerrors"
)

// Repository is C5's public surface.
type Repository interface {
	// RegisterModule upserts a module row and its matching PENDING schema
	// row within a single transaction, per §4.5.
	RegisterModule(ctx context.Context, in RegisterModuleInput) (*ModuleRow, error)

	FindModuleByID(ctx context.Context, serviceID string) (*ModuleRow, error)
	FindModuleByName(ctx context.Context, name string) (*ModuleRow, error)

	FindSchemaByID(ctx context.Context, schemaID string) (*ConfigSchemaRow, error)
	FindLatestSchemaByName(ctx context.Context, serviceName string) (*ConfigSchemaRow, error)
	ListSchemaVersionsByName(ctx context.Context, serviceName string) ([]string, error)

	MarkSchemaSynced(ctx context.Context, schemaID, artifactID string, globalID int64) error
	MarkSchemaFailed(ctx context.Context, schemaID, syncErr string) error
}

// RegisterModuleInput carries the fields needed to upsert a module +
// schema row pair.
type RegisterModuleInput struct {
	ServiceID       string
	ServiceName     string
	Host            string
	Port            int
	Version         string
	Metadata        map[string]string
	ConfigSchemaJSON string
	CreatedBy       string
}

// DeriveSchemaID implements §4.5's deterministic schema id rule:
// "{service_name}-{schema_version}" with dots in the version sanitized to
// underscores.
func DeriveSchemaID(serviceName, schemaVersion string) string {
	return serviceName + "-" + strings.ReplaceAll(schemaVersion, ".", "_")
}

type repository struct {
	database dbpkg.DB
	logger   clog.Logger
}

// New creates the metadata repository.
func New(database dbpkg.DB, logger clog.Logger) (Repository, error) {
	if database == nil {
		return nil, ErrDBNil
	}
	if logger == nil {
		logger, _ = clog.New(&clog.Config{Level: "info", Format: "console", Output: "stdout"})
	}
	return &repository{database: database, logger: logger.WithNamespace("metadatarepo")}, nil
}

// RegisterModule implements Repository.
func (r *repository) RegisterModule(ctx context.Context, in RegisterModuleInput) (*ModuleRow, error) {
	schemaID := DeriveSchemaID(in.ServiceName, in.Version)

	var row ModuleRow
	err := r.database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		schema := ConfigSchemaRow{
			SchemaID:      schemaID,
			ServiceName:   in.ServiceName,
			SchemaVersion: in.Version,
			JSONSchema:    in.ConfigSchemaJSON,
			SyncStatus:    SyncPending,
		}
		if in.CreatedBy != "" {
			schema.CreatedBy = &in.CreatedBy
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "service_name"}, {Name: "schema_version"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"json_schema", "sync_status", "created_by",
			}),
		}).Create(&schema).Error; err != nil {
			return xerrors.Wrap(err, "metadatarepo: upsert schema row")
		}

		row = ModuleRow{
			ServiceID:      in.ServiceID,
			ServiceName:    in.ServiceName,
			Host:           in.Host,
			Port:           in.Port,
			Version:        in.Version,
			ConfigSchemaID: &schemaID,
			Metadata:       JSONMap(in.Metadata),
			Status:         "ACTIVE",
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "service_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"service_name", "host", "port", "version", "config_schema_id", "metadata", "status",
			}),
		}).Create(&row).Error; err != nil {
			return xerrors.Wrap(err, "metadatarepo: upsert module row")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindModuleByID implements Repository.
func (r *repository) FindModuleByID(ctx context.Context, serviceID string) (*ModuleRow, error) {
	var row ModuleRow
	err := r.database.DB(ctx).Where("service_id = ?", serviceID).First(&row).Error
	return firstResult(&row, err, ErrModuleNotFound)
}

// FindModuleByName implements Repository.
func (r *repository) FindModuleByName(ctx context.Context, name string) (*ModuleRow, error) {
	var row ModuleRow
	err := r.database.DB(ctx).Where("service_name = ?", name).First(&row).Error
	return firstResult(&row, err, ErrModuleNotFound)
}

// FindSchemaByID implements Repository.
func (r *repository) FindSchemaByID(ctx context.Context, schemaID string) (*ConfigSchemaRow, error) {
	var row ConfigSchemaRow
	err := r.database.DB(ctx).Where("schema_id = ?", schemaID).First(&row).Error
	return firstSchemaResult(&row, err)
}

// FindLatestSchemaByName implements Repository: highest created_at,
// tie-broken on schema_version descending lexicographically.
func (r *repository) FindLatestSchemaByName(ctx context.Context, serviceName string) (*ConfigSchemaRow, error) {
	var row ConfigSchemaRow
	err := r.database.DB(ctx).
		Where("service_name = ?", serviceName).
		Order("created_at DESC").
		Order("schema_version DESC").
		First(&row).Error
	return firstSchemaResult(&row, err)
}

// ListSchemaVersionsByName implements Repository, newest first.
func (r *repository) ListSchemaVersionsByName(ctx context.Context, serviceName string) ([]string, error) {
	var versions []string
	err := r.database.DB(ctx).Model(&ConfigSchemaRow{}).
		Where("service_name = ?", serviceName).
		Order("created_at DESC").
		Order("schema_version DESC").
		Pluck("schema_version", &versions).Error
	if err != nil {
		return nil, xerrors.Wrap(err, "metadatarepo: list schema versions")
	}
	return versions, nil
}

// MarkSchemaSynced implements Repository.
func (r *repository) MarkSchemaSynced(ctx context.Context, schemaID, artifactID string, globalID int64) error {
	now := time.Now()
	result := r.database.DB(ctx).Model(&ConfigSchemaRow{}).Where("schema_id = ?", schemaID).Updates(map[string]any{
		"sync_status":         SyncSynced,
		"archive_artifact_id": artifactID,
		"archive_global_id":   globalID,
		"last_sync_attempt":   now,
		"sync_error":          nil,
	})
	return updateResult(result, ErrSchemaNotFound)
}

// MarkSchemaFailed implements Repository.
func (r *repository) MarkSchemaFailed(ctx context.Context, schemaID, syncErr string) error {
	now := time.Now()
	result := r.database.DB(ctx).Model(&ConfigSchemaRow{}).Where("schema_id = ?", schemaID).Updates(map[string]any{
		"sync_status":       SyncFailed,
		"last_sync_attempt": now,
		"sync_error":        syncErr,
	})
	return updateResult(result, ErrSchemaNotFound)
}

func firstResult(row *ModuleRow, err error, notFound error) (*ModuleRow, error) {
	if err != nil {
		if xerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, xerrors.Wrap(err, "metadatarepo: query module row")
	}
	return row, nil
}

func firstSchemaResult(row *ConfigSchemaRow, err error) (*ConfigSchemaRow, error) {
	if err != nil {
		if xerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchemaNotFound
		}
		return nil, xerrors.Wrap(err, "metadatarepo: query schema row")
	}
	return row, nil
}

func updateResult(result *gorm.DB, notFound error) error {
	if result.Error != nil {
		return xerrors.Wrap(result.Error, "metadatarepo: update schema row")
	}
	if result.RowsAffected == 0 {
		return notFound
	}
	return nil
}
