// Package schemaarchive implements the Schema Archive Client (C6): an
// outbound HTTP client to an Apicurio Registry-compatible schema registry,
// wrapped in a circuit breaker. Every failure mode is surfaced uniformly as
// *ArchiveError so callers can pattern-match on it instead of the
// underlying transport/serialization cause.
package schemaarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pipestream/broker/breaker"
	"github.com/pipestream/broker/clog"
)

// Client is C6's public surface.
type Client interface {
	CreateOrUpdate(ctx context.Context, serviceName, version, schemaJSON string) (*ArtifactResult, error)
	CreateOrUpdateWithArtifactBase(ctx context.Context, base, version, schemaJSON string) (*ArtifactResult, error)
	CreateOrUpdateWithArtifactID(ctx context.Context, artifactID, version, schemaJSON string) (*ArtifactResult, error)

	GetSchemaByName(ctx context.Context, serviceName, version string) (string, error)
	GetSchemaByArtifactID(ctx context.Context, artifactID, version string) (string, error)
	GetArtifactMetadata(ctx context.Context, serviceName string) (*ArtifactMetadata, error)

	IsHealthy(ctx context.Context) bool
}

type client struct {
	cfg    *Config
	http   *http.Client
	logger clog.Logger
	brk    breaker.Breaker
}

// New creates the schema archive client.
func New(cfg *Config, opts ...Option) (Client, error) {
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
		o.logger = o.logger.WithNamespace("schemaarchive")
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &client{cfg: cfg, http: o.httpClient, logger: o.logger, brk: o.brk}, nil
}

func (c *client) CreateOrUpdate(ctx context.Context, serviceName, version, schemaJSON string) (*ArtifactResult, error) {
	return c.CreateOrUpdateWithArtifactID(ctx, DeriveArtifactID(serviceName, version), version, schemaJSON)
}

func (c *client) CreateOrUpdateWithArtifactBase(ctx context.Context, base, version, schemaJSON string) (*ArtifactResult, error) {
	return c.CreateOrUpdateWithArtifactID(ctx, DeriveArtifactIDWithBase(base, version), version, schemaJSON)
}

func (c *client) CreateOrUpdateWithArtifactID(ctx context.Context, artifactID, version, schemaJSON string) (*ArtifactResult, error) {
	raw, err := c.guarded(ctx, artifactID, func(ctx context.Context) (any, error) {
		url := fmt.Sprintf("%s/groups/%s/artifacts/%s/versions", c.cfg.BaseURL, c.cfg.GroupID, artifactID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(schemaJSON)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Registry-Version", version)

		var result ArtifactResult
		if err := c.doJSON(req, &result); err != nil {
			return nil, err
		}
		if result.ArtifactID == "" {
			result.ArtifactID = artifactID
		}
		if result.Version == "" {
			result.Version = version
		}
		return &result, nil
	})
	if err != nil {
		return nil, newArchiveError("", artifactID, err)
	}
	return raw.(*ArtifactResult), nil
}

func (c *client) GetSchemaByName(ctx context.Context, serviceName, version string) (string, error) {
	artifactID := DeriveArtifactID(serviceName, version)
	return c.GetSchemaByArtifactID(ctx, artifactID, version)
}

func (c *client) GetSchemaByArtifactID(ctx context.Context, artifactID, version string) (string, error) {
	raw, err := c.guarded(ctx, artifactID, func(ctx context.Context) (any, error) {
		versionPath := "latest"
		if version != "" && version != "latest" {
			versionPath = sanitizeVersion(version)
		}
		url := fmt.Sprintf("%s/groups/%s/artifacts/%s/versions/%s/content", c.cfg.BaseURL, c.cfg.GroupID, artifactID, versionPath)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}
		return string(body), nil
	})
	if err != nil {
		return "", newArchiveError("", artifactID, err)
	}
	return raw.(string), nil
}

func (c *client) GetArtifactMetadata(ctx context.Context, serviceName string) (*ArtifactMetadata, error) {
	raw, err := c.guarded(ctx, serviceName, func(ctx context.Context) (any, error) {
		url := fmt.Sprintf("%s/groups/%s/artifacts/%s", c.cfg.BaseURL, c.cfg.GroupID, serviceName)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return (*ArtifactMetadata)(nil), nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		var meta ArtifactMetadata
		if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
			return nil, err
		}
		return &meta, nil
	})
	if err != nil {
		return nil, newArchiveError(serviceName, "", err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*ArtifactMetadata), nil
}

func (c *client) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/system/info", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// guarded executes fn, optionally through the configured circuit breaker.
func (c *client) guarded(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	if c.brk == nil {
		return fn(ctx)
	}
	return c.brk.Execute(ctx, key, func() (interface{}, error) { return fn(ctx) })
}

func (c *client) doJSON(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dest)
}
