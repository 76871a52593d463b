package discoverystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecordFlattensHTTPEndpoints(t *testing.T) {
	in := RegisterInput{
		ServiceID: "svc-1",
		Name:      "auth-svc",
		Kind:      "MODULE",
		Connectivity: Connectivity{
			AdvertisedHost: "10.0.0.1",
			AdvertisedPort: 9000,
		},
		Version:      "1.2.3",
		Metadata:     map[string]string{"region.az": "us-east-1a"},
		Tags:         []string{"team:payments"},
		Capabilities: []string{"ocr", "classify"},
		HTTPEndpoints: []HTTPEndpoint{
			{Scheme: "https", Host: "10.0.0.1", Port: 8443, HealthPath: "/health", TLSEnabled: true},
		},
		HTTPSchemaArtifactID: "artifact-42",
		HTTPSchemaVersion:    "v2",
	}

	rec := EncodeRecord(in)

	assert.Equal(t, "svc-1", rec.ID)
	assert.Equal(t, "auth-svc", rec.Name)
	assert.Equal(t, "10.0.0.1", rec.Address)
	assert.Equal(t, 9000, rec.Port)

	assert.Equal(t, "us-east-1a", rec.Meta["region_az"], "dots must be sanitized to underscores")
	assert.Equal(t, "10.0.0.1", rec.Meta["advertised-host"])
	assert.Equal(t, "9000", rec.Meta["advertised-port"])
	assert.Equal(t, "1", rec.Meta["http_endpoint_count"])
	assert.Equal(t, "https", rec.Meta["http_endpoint_0_scheme"])
	assert.Equal(t, "8443", rec.Meta["http_endpoint_0_port"])
	assert.Equal(t, "/health", rec.Meta["http_endpoint_0_health_path"])
	assert.Equal(t, "true", rec.Meta["http_endpoint_0_tls_enabled"])
	assert.Equal(t, "artifact-42", rec.Meta["http_schema_artifact_id"])

	assert.True(t, IsModule(rec))
	assert.Contains(t, rec.Tags, "team:payments")
	assert.ElementsMatch(t, []string{"ocr", "classify"}, Capabilities(rec.Tags))
}

func TestEncodeRecordUsesInternalAddressWhenPresent(t *testing.T) {
	in := RegisterInput{
		ServiceID: "svc-2",
		Name:      "ocr-svc",
		Kind:      "SERVICE",
		Connectivity: Connectivity{
			AdvertisedHost: "api.example.com",
			AdvertisedPort: 443,
			InternalHost:   "10.1.2.3",
			InternalPort:   7001,
		},
	}

	rec := EncodeRecord(in)
	assert.Equal(t, "10.1.2.3", rec.Address)
	assert.Equal(t, 7001, rec.Port)
	assert.Equal(t, "api.example.com", rec.Meta["advertised-host"], "advertised address is preserved in meta regardless of dial target")
	assert.False(t, IsModule(rec))
}

func TestDecodeHTTPEndpointsRoundTrip(t *testing.T) {
	in := RegisterInput{
		ServiceID: "svc-3",
		Name:      "gw",
		Kind:      "SERVICE",
		HTTPEndpoints: []HTTPEndpoint{
			{Scheme: "http", Host: "h1", Port: 1, BasePath: "/a"},
			{Scheme: "https", Host: "h2", Port: 2, BasePath: "/b", TLSEnabled: true},
		},
	}
	rec := EncodeRecord(in)
	out := DecodeHTTPEndpoints(rec.Meta)
	require.Len(t, out, 2)
	assert.Equal(t, in.HTTPEndpoints[0].Host, out[0].Host)
	assert.Equal(t, in.HTTPEndpoints[1].TLSEnabled, out[1].TLSEnabled)
}

func TestDecodeHTTPEndpointsEmptyWhenAbsent(t *testing.T) {
	assert.Nil(t, DecodeHTTPEndpoints(map[string]string{}))
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	assert.Equal(t, "/broker/discovery", cfg.Namespace)
	assert.NotZero(t, cfg.DefaultTTL)
	assert.NotZero(t, cfg.HealthGateDeadline)
	assert.NotZero(t, cfg.HealthGatePollInterval)
}
