package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pipestream/broker/testkit"
)

// testModule 测试用的最小模型
type testModule struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func TestDBPostgreSQL(t *testing.T) {
	conn := testkit.NewPostgreSQLConnector(t)
	defer conn.Close()

	require.NoError(t, conn.Connect(context.Background()))

	database, err := New(conn, &Config{}, WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	gormDB := database.DB(ctx)

	require.NoError(t, gormDB.AutoMigrate(&testModule{}))
	defer gormDB.Migrator().DropTable(&testModule{})

	t.Run("CRUD", func(t *testing.T) {
		m := testModule{Name: "discovery"}
		require.NoError(t, gormDB.Create(&m).Error)
		assert.NotZero(t, m.ID)

		var fetched testModule
		require.NoError(t, gormDB.First(&fetched, m.ID).Error)
		assert.Equal(t, "discovery", fetched.Name)

		require.NoError(t, gormDB.Delete(&testModule{}, m.ID).Error)
	})

	t.Run("Transaction commits", func(t *testing.T) {
		err := database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
			return tx.Create(&testModule{Name: "committed"}).Error
		})
		require.NoError(t, err)

		var count int64
		gormDB.Model(&testModule{}).Where("name = ?", "committed").Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Transaction rolls back on error", func(t *testing.T) {
		boom := fmt.Errorf("boom")
		err := database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
			if err := tx.Create(&testModule{Name: "rolled-back"}).Error; err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		var count int64
		gormDB.Model(&testModule{}).Where("name = ?", "rolled-back").Count(&count)
		assert.Equal(t, int64(0), count)
	})
}

func TestDBConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	assert.Equal(t, "postgres", cfg.Driver)
	assert.NoError(t, cfg.validate())
}
