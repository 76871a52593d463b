package schemaarchive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveArtifactIDSanitizesVersionAndBlank(t *testing.T) {
	require.Equal(t, "pdf-extract-config-v2_1_0", DeriveArtifactID("pdf-extract", "2.1.0"))
	require.Equal(t, "pdf-extract-config-v1", DeriveArtifactID("pdf-extract", ""))
	require.Equal(t, "ocr-http-config-v1_0_0", DeriveArtifactIDWithBase("ocr-http", "1.0.0"))
}

func TestCreateOrUpdateRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"artifact_id":"pdf-extract-config-v2_1_0","global_id":7,"version":"2.1.0"}`))
	}))
	defer server.Close()

	c, err := New(&Config{BaseURL: server.URL})
	require.NoError(t, err)

	result, err := c.CreateOrUpdate(context.Background(), "pdf-extract", "2.1.0", `{"x":1}`)
	require.NoError(t, err)
	require.Equal(t, "pdf-extract-config-v2_1_0", result.ArtifactID)
	require.EqualValues(t, 7, result.GlobalID)
}

func TestCreateOrUpdateWrapsTransportFailureAsArchiveError(t *testing.T) {
	c, err := New(&Config{BaseURL: "http://127.0.0.1:0"})
	require.NoError(t, err)

	_, err = c.CreateOrUpdate(context.Background(), "ocr", "1.0.0", `{}`)
	require.Error(t, err)
	var archiveErr *ArchiveError
	require.ErrorAs(t, err, &archiveErr)
}

func TestGetArtifactMetadataNotFoundReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, err := New(&Config{BaseURL: server.URL})
	require.NoError(t, err)

	meta, err := c.GetArtifactMetadata(context.Background(), "missing-svc")
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestIsHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := New(&Config{BaseURL: server.URL})
	require.NoError(t, err)
	require.True(t, c.IsHealthy(context.Background()))
}
