package metadatarepo

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pipestream/broker/xerrors"
)

// JSONMap is a freeform string map stored as a jsonb column.
type JSONMap map[string]string

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return xerrors.Wrapf(xerrors.ErrInvalidInput, "metadatarepo: unsupported JSONMap source type %T", value)
		}
	}
	result := JSONMap{}
	if len(bytes) > 0 {
		if err := json.Unmarshal(bytes, &result); err != nil {
			return xerrors.Wrap(err, "metadatarepo: unmarshal JSONMap")
		}
	}
	*m = result
	return nil
}

// SyncStatus is a config_schemas row's archive-sync lifecycle.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)

// ModuleRow is the modules table: one row per registered module instance.
type ModuleRow struct {
	ServiceID      string            `gorm:"column:service_id;primaryKey"`
	ServiceName    string            `gorm:"column:service_name;index"`
	Host           string            `gorm:"column:host"`
	Port           int               `gorm:"column:port"`
	Version        string            `gorm:"column:version"`
	ConfigSchemaID *string    `gorm:"column:config_schema_id"`
	Metadata       JSONMap    `gorm:"column:metadata;type:jsonb"`
	RegisteredAt   time.Time  `gorm:"column:registered_at;autoCreateTime"`
	LastHeartbeat  *time.Time `gorm:"column:last_heartbeat"`
	Status         string     `gorm:"column:status"`
}

func (ModuleRow) TableName() string { return "modules" }

// Healthy reports whether the module's last heartbeat was within the last
// 30 seconds, per the Module row's status view.
func (m ModuleRow) Healthy(now time.Time) bool {
	return m.LastHeartbeat != nil && now.Sub(*m.LastHeartbeat) <= 30*time.Second
}

// ConfigSchemaRow is the config_schemas table: one row per
// (service_name, schema_version) pair.
type ConfigSchemaRow struct {
	SchemaID         string     `gorm:"column:schema_id;primaryKey"`
	ServiceName      string     `gorm:"column:service_name;index;uniqueIndex:idx_config_schemas_name_version"`
	SchemaVersion    string     `gorm:"column:schema_version;uniqueIndex:idx_config_schemas_name_version"`
	JSONSchema       string     `gorm:"column:json_schema;type:jsonb"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	CreatedBy        *string    `gorm:"column:created_by"`
	ArchiveArtifactID *string   `gorm:"column:archive_artifact_id"`
	ArchiveGlobalID  *int64     `gorm:"column:archive_global_id"`
	SyncStatus       SyncStatus `gorm:"column:sync_status;index;default:PENDING"`
	LastSyncAttempt  *time.Time `gorm:"column:last_sync_attempt"`
	SyncError        *string    `gorm:"column:sync_error"`
}

func (ConfigSchemaRow) TableName() string { return "config_schemas" }
