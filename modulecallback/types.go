package modulecallback

import "context"

// Empty is the request message for GetServiceRegistration; the module side
// ignores its contents.
type Empty struct{}

// ServiceRegistrationMetadata is the module-provided metadata returned by
// GetServiceRegistration, describing a module's own shape for registration
// (name, version, optional display/schema info, tags and dependencies).
type ServiceRegistrationMetadata struct {
	ModuleName        string            `json:"module_name"`
	Version           string            `json:"version"`
	JSONConfigSchema  string            `json:"json_config_schema,omitempty"`
	DisplayName       string            `json:"display_name,omitempty"`
	Description       string            `json:"description,omitempty"`
	Owner             string            `json:"owner,omitempty"`
	DocumentationURL  string            `json:"documentation_url,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	Dependencies      []string          `json:"dependencies,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// InstanceResolver resolves a logical service name to the address of one
// healthy instance to dial. modulecallback does not own discovery itself;
// the coordinator wires it to the discovery-store adapter's
// ListHealthyInstances.
type InstanceResolver func(ctx context.Context, serviceName string) (address string, err error)
