//go:build integration
// +build integration

package connector

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pipestream/broker/clog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestLogger 返回测试用日志记录器
func getTestLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("connector-test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// getPostgresTestConfig 返回 PostgreSQL 测试配置
func getPostgresTestConfig() *PostgreSQLConfig {
	return &PostgreSQLConfig{
		Name:     "test-postgres",
		Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
		Port:     getEnvIntOrDefault("POSTGRES_PORT", 5432),
		Username: getEnvOrDefault("POSTGRES_USER", "broker_user"),
		Password: getEnvOrDefault("POSTGRES_PASSWORD", "broker_password"),
		Database: getEnvOrDefault("POSTGRES_DATABASE", "broker_db"),
	}
}

// getEtcdTestConfig 返回 Etcd 测试配置
func getEtcdTestConfig() *EtcdConfig {
	return &EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   []string{getEnvOrDefault("ETCD_ENDPOINTS", "localhost:2379")},
		DialTimeout: 5 * time.Second,
	}
}

// getKafkaTestConfig 返回 Kafka 测试配置
func getKafkaTestConfig() *KafkaConfig {
	return &KafkaConfig{
		Name:           "test-kafka",
		Seed:           []string{getEnvOrDefault("KAFKA_BROKERS", "localhost:9092")},
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// getEnvOrDefault 获取环境变量或返回默认值
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault 获取整数环境变量或返回默认值
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := sscanfInt(value, &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// sscanfInt 简单的整数解析
func sscanfInt(s string, i *int) (int, error) {
	n := 0
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
		} else {
			break
		}
	}
	*i = n
	return 1, nil
}

// newTestID 返回唯一的测试 ID
func newTestID() string {
	return time.Now().Format("20060102150405")
}

// TestPostgreSQLConnectorIntegration 测试 PostgreSQL 连接器
func TestPostgreSQLConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	t.Run("完整生命周期", func(t *testing.T) {
		cfg := getPostgresTestConfig()
		conn, err := NewPostgreSQL(cfg, WithLogger(getTestLogger()))
		if err != nil {
			t.Skip("PostgreSQL 配置无效或服务不可用")
		}

		assert.Equal(t, cfg.Name, conn.Name())
		assert.False(t, conn.IsHealthy())

		ctx := context.Background()

		err = conn.Connect(ctx)
		if err != nil {
			t.Skip("PostgreSQL 服务不可用")
		}
		require.NoError(t, err)
		assert.True(t, conn.IsHealthy())

		db := conn.GetClient()
		require.NotNil(t, db)

		var result int
		err = db.Raw("SELECT 1").Scan(&result).Error
		require.NoError(t, err)
		assert.Equal(t, 1, result)

		err = conn.HealthCheck(ctx)
		require.NoError(t, err)

		err = conn.Close()
		require.NoError(t, err)
		assert.False(t, conn.IsHealthy())
	})
}

// TestEtcdConnectorIntegration 测试 Etcd 连接器
func TestEtcdConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	t.Run("完整生命周期", func(t *testing.T) {
		cfg := getEtcdTestConfig()
		conn, err := NewEtcd(cfg, WithLogger(getTestLogger()))
		if err != nil {
			t.Skip("Etcd 配置无效")
		}

		ctx := context.Background()

		err = conn.Connect(ctx)
		if err != nil {
			t.Skip("Etcd 服务不可用")
		}
		require.NoError(t, err)
		assert.True(t, conn.IsHealthy())

		client := conn.GetClient()
		require.NotNil(t, client)

		testKey := "/test/connector/" + newTestID()

		_, err = client.Put(ctx, testKey, "test-value")
		require.NoError(t, err)

		resp, err := client.Get(ctx, testKey)
		require.NoError(t, err)
		assert.Len(t, resp.Kvs, 1)
		assert.Equal(t, "test-value", string(resp.Kvs[0].Value))

		_, err = client.Delete(ctx, testKey)
		require.NoError(t, err)

		err = conn.HealthCheck(ctx)
		require.NoError(t, err)

		err = conn.Close()
		require.NoError(t, err)
	})
}

// TestKafkaConnectorIntegration 测试 Kafka 连接器
func TestKafkaConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	t.Run("完整生命周期", func(t *testing.T) {
		cfg := getKafkaTestConfig()
		conn, err := NewKafka(cfg, WithLogger(getTestLogger()))
		require.NoError(t, err)

		ctx := context.Background()

		err = conn.Connect(ctx)
		if err != nil {
			t.Skip("Kafka 服务不可用")
		}
		assert.True(t, conn.IsHealthy())

		client := conn.GetClient()
		require.NotNil(t, client)

		assert.Equal(t, cfg, conn.Config())

		err = conn.HealthCheck(ctx)
		require.NoError(t, err)

		err = conn.Close()
		require.NoError(t, err)
		assert.False(t, conn.IsHealthy())
	})
}

// TestConnectorEnvVarConfig 测试环境变量配置
func TestConnectorEnvVarConfig(t *testing.T) {
	t.Run("PostgreSQL 环境变量配置", func(t *testing.T) {
		os.Setenv("POSTGRES_HOST", "localhost")
		os.Setenv("POSTGRES_PORT", "5432")
		os.Setenv("POSTGRES_USER", "test_user")
		os.Setenv("POSTGRES_PASSWORD", "test_pass")
		os.Setenv("POSTGRES_DATABASE", "test_db")
		defer func() {
			os.Unsetenv("POSTGRES_HOST")
			os.Unsetenv("POSTGRES_PORT")
			os.Unsetenv("POSTGRES_USER")
			os.Unsetenv("POSTGRES_PASSWORD")
			os.Unsetenv("POSTGRES_DATABASE")
		}()

		cfg := getPostgresTestConfig()

		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 5432, cfg.Port)
		assert.Equal(t, "test_user", cfg.Username)
		assert.Equal(t, "test_pass", cfg.Password)
		assert.Equal(t, "test_db", cfg.Database)
	})
}
