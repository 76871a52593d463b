//go:build integration

package metadatarepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	dbpkg "github.com/pipestream/broker/db"
	"github.com/pipestream/broker/testkit"
)

func newRepoForTest(t *testing.T) (Repository, dbpkg.DB) {
	t.Helper()
	conn := testkit.NewPostgreSQLConnector(t)
	require.NoError(t, conn.Connect(context.Background()))

	database, err := dbpkg.New(conn, &dbpkg.Config{}, dbpkg.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	gormDB := database.DB(context.Background())
	require.NoError(t, gormDB.AutoMigrate(&ModuleRow{}, &ConfigSchemaRow{}))

	repo, err := New(database, testkit.NewLogger())
	require.NoError(t, err)
	return repo, database
}

func TestRegisterModuleUpsertsSchemaAndModule(t *testing.T) {
	repo, database := newRepoForTest(t)
	defer database.Close()
	ctx := context.Background()

	row, err := repo.RegisterModule(ctx, RegisterModuleInput{
		ServiceID:        "svc-1",
		ServiceName:      "pdf-extract",
		Host:             "10.0.0.1",
		Port:             9000,
		Version:          "2.1.0",
		Metadata:         map[string]string{"owner": "team-a"},
		ConfigSchemaJSON: `{"x":1}`,
	})
	require.NoError(t, err)
	require.Equal(t, "pdf-extract-2_1_0", *row.ConfigSchemaID)

	schema, err := repo.FindSchemaByID(ctx, "pdf-extract-2_1_0")
	require.NoError(t, err)
	require.Equal(t, SyncPending, schema.SyncStatus)

	// re-register with the same (name, version): schema row must stay single
	_, err = repo.RegisterModule(ctx, RegisterModuleInput{
		ServiceID:        "svc-1",
		ServiceName:      "pdf-extract",
		Host:             "10.0.0.1",
		Port:             9000,
		Version:          "2.1.0",
		ConfigSchemaJSON: `{"x":2}`,
	})
	require.NoError(t, err)

	schema, err = repo.FindSchemaByID(ctx, "pdf-extract-2_1_0")
	require.NoError(t, err)
	require.Equal(t, `{"x": 2}`, schema.JSONSchema)
}

func TestFindLatestSchemaByNamePicksHighestVersion(t *testing.T) {
	repo, database := newRepoForTest(t)
	defer database.Close()
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.1.0", "2.0.0"} {
		_, err := repo.RegisterModule(ctx, RegisterModuleInput{
			ServiceID: "svc-latest", ServiceName: "ocr", Version: v, ConfigSchemaJSON: `{}`,
		})
		require.NoError(t, err)
	}

	latest, err := repo.FindLatestSchemaByName(ctx, "ocr")
	require.NoError(t, err)
	require.Equal(t, "ocr-2_0_0", latest.SchemaID)
}

func TestMarkSchemaSyncedAndFailed(t *testing.T) {
	repo, database := newRepoForTest(t)
	defer database.Close()
	ctx := context.Background()

	_, err := repo.RegisterModule(ctx, RegisterModuleInput{
		ServiceID: "svc-2", ServiceName: "classify", Version: "1.0.0", ConfigSchemaJSON: `{}`,
	})
	require.NoError(t, err)

	require.NoError(t, repo.MarkSchemaSynced(ctx, "classify-1_0_0", "artifact-1", 42))
	schema, err := repo.FindSchemaByID(ctx, "classify-1_0_0")
	require.NoError(t, err)
	require.Equal(t, SyncSynced, schema.SyncStatus)
	require.Equal(t, "artifact-1", *schema.ArchiveArtifactID)

	require.NoError(t, repo.MarkSchemaFailed(ctx, "classify-1_0_0", "registry unreachable"))
	schema, err = repo.FindSchemaByID(ctx, "classify-1_0_0")
	require.NoError(t, err)
	require.Equal(t, SyncFailed, schema.SyncStatus)
	require.Equal(t, "registry unreachable", *schema.SyncError)
}

func TestFindModuleByIDNotFound(t *testing.T) {
	repo, database := newRepoForTest(t)
	defer database.Close()

	_, err := repo.FindModuleByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrModuleNotFound)
}
