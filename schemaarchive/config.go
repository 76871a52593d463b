package schemaarchive

import "time"

// Config configures the HTTP client used to reach the schema-registry
// backend (Apicurio Registry-compatible REST API).
type Config struct {
	// BaseURL e.g. "http://apicurio:8080/apis/registry/v3"
	BaseURL string `yaml:"base_url" json:"base_url"`

	// GroupID is the registry group artifacts are created under.
	GroupID string `yaml:"group_id" json:"group_id"`

	// RequestTimeout bounds a single HTTP call.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

func (c *Config) setDefaults() {
	if c.GroupID == "" {
		c.GroupID = "default"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
}
