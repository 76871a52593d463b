// Package api defines the Go-level wire contract of the broker's gRPC
// surface: the message types a generated protobuf stub would carry.
// Protobuf codegen itself is out of scope; field and enum names are
// preserved verbatim from the wire contract.
package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// RegistrantKind distinguishes a plain service from a config-governed module.
type RegistrantKind int32

const (
	RegistrantKindUnspecified RegistrantKind = iota
	RegistrantKindService
	RegistrantKindModule
)

func (k RegistrantKind) String() string {
	switch k {
	case RegistrantKindService:
		return "SERVICE"
	case RegistrantKindModule:
		return "MODULE"
	default:
		return "UNSPECIFIED"
	}
}

// EventType is the ordered set of RegistrationEvent kinds emitted by Register.
type EventType int32

const (
	EventTypeStarted EventType = iota
	EventTypeValidated
	EventTypeConsulRegistered
	EventTypeHealthCheckConfigured
	EventTypeConsulHealthy
	EventTypeMetadataRetrieved
	EventTypeSchemaValidated
	EventTypeDatabaseSaved
	EventTypeApicurioRegistered
	EventTypeCompleted
	EventTypeFailed
)

var eventTypeNames = [...]string{
	"STARTED", "VALIDATED", "CONSUL_REGISTERED", "HEALTH_CHECK_CONFIGURED",
	"CONSUL_HEALTHY", "METADATA_RETRIEVED", "SCHEMA_VALIDATED", "DATABASE_SAVED",
	"APICURIO_REGISTERED", "COMPLETED", "FAILED",
}

func (e EventType) String() string {
	if int(e) < 0 || int(e) >= len(eventTypeNames) {
		return "UNKNOWN"
	}
	return eventTypeNames[e]
}

// MarshalJSON encodes the event type as its wire name (e.g. "CONSUL_HEALTHY")
// rather than its ordinal, matching the string values used throughout §6.
func (e EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON accepts the wire name produced by MarshalJSON.
func (e *EventType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range eventTypeNames {
		if n == name {
			*e = EventType(i)
			return nil
		}
	}
	return fmt.Errorf("api: unknown event type %q", name)
}

// Connectivity is the advertised/internal endpoint pair a registrant carries.
type Connectivity struct {
	AdvertisedHost string
	AdvertisedPort int32
	InternalHost   string
	InternalPort   int32
	TLSEnabled     bool
}

// HTTPEndpoint is one HTTP-reachable surface a registrant exposes.
type HTTPEndpoint struct {
	Scheme     string
	Host       string
	Port       int32
	BasePath   string
	HealthPath string
	TLSEnabled bool
}

// RegisterRequest is Register's single request message.
type RegisterRequest struct {
	Name                 string
	Kind                 RegistrantKind
	Connectivity         Connectivity
	Version              string
	Metadata             map[string]string
	Tags                 []string
	Capabilities         []string
	HTTPEndpoints        []HTTPEndpoint
	HTTPSchema           string
	HTTPSchemaArtifactID string
	HTTPSchemaVersion    string
}

// RegistrationEvent is one element of Register's response stream.
type RegistrationEvent struct {
	EventType   EventType
	Message     string
	ServiceID   string
	ErrorDetail string
	Timestamp   time.Time
}

// RegisterResponse wraps one RegistrationEvent per streamed element.
type RegisterResponse struct {
	Event RegistrationEvent
}

// UnregisterRequest identifies the instance to deregister by its computed id.
type UnregisterRequest struct {
	ServiceID string
}

// UnregisterResponse reports whether the deregister took effect.
type UnregisterResponse struct {
	Success   bool
	Message   string
	Timestamp time.Time
}

// ServiceEntry is one catalog entry as seen by a list/lookup/resolve response.
type ServiceEntry struct {
	ServiceID    string
	Name         string
	Host         string
	Port         int32
	Version      string
	Tags         []string
	Capabilities []string
	HTTPEndpoints []HTTPEndpoint
	Metadata     map[string]string
	Healthy      bool
}

// ListServicesResponse / ListModulesResponse snapshot.
type ListSnapshot struct {
	Entries    []ServiceEntry
	AsOf       time.Time
	TotalCount int32
}

// GetServiceRequest / GetModuleRequest carry a oneof {service_name, service_id}.
type GetEntryRequest struct {
	ServiceName string
	ServiceID   string
}

// ResolveServiceRequest filters and ranks the healthy set.
type ResolveServiceRequest struct {
	Name                string
	RequiredTags        []string
	RequiredCapabilities []string
	PreferLocal         bool
}

// ResolveServiceResponse is the richer resolution projection.
type ResolveServiceResponse struct {
	Found             bool
	Host              string
	Port              int32
	ServiceID         string
	Version           string
	Tags              []string
	Capabilities      []string
	HTTPEndpoints     []HTTPEndpoint
	HTTPSchema        string
	HTTPSchemaArtifactID string
	HTTPSchemaVersion string
	Metadata          map[string]string
	TotalInstances    int32
	HealthyInstances  int32
	SelectionReason   string
	ResolvedAt        time.Time
}

// WatchServicesRequest / WatchModulesRequest carry no fields beyond the
// implicit subscription to the whole catalog.
type WatchRequest struct{}

// GetModuleSchemaRequest looks up a module's config schema, optionally pinned
// to a version.
type GetModuleSchemaRequest struct {
	ModuleName string
	Version    string
}

// GetModuleSchemaResponse carries the resolved schema document plus
// response-only provenance metadata from whichever cascade tier answered.
type GetModuleSchemaResponse struct {
	SchemaJSON string
	CreatedBy  string
	SyncStatus string
}

// GetModuleSchemaVersionsRequest / Response.
type GetModuleSchemaVersionsRequest struct {
	ModuleName string
}

type GetModuleSchemaVersionsResponse struct {
	Versions []string
}
