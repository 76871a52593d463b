// Package connector provides unified connection management for the
// broker's external substrates.
//
// Core traits:
//   - Uniform abstraction via the Connector interface
//   - Type safety via the generic TypedConnector[T] interface
//   - Data-source coverage: etcd (discovery store), PostgreSQL (metadata
//     repository), Kafka (event bus)
//   - Health checking with a cached status for hot paths
//   - Concurrency safety across every exported method
//   - "Whoever creates it, releases it": Close() is called by the
//     application layer, never by a component that only borrows the
//     connector
//
// Basic usage:
//
//	cfg := &connector.EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}}
//	conn, err := connector.NewEtcd(cfg, connector.WithLogger(logger))
//	if err != nil {
//		panic(err)
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		panic(err)
//	}
//
//	client := conn.GetClient()
package connector

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/gorm"
)

// =============================================================================
// 基础接口
// =============================================================================

// Connector 定义所有连接器的通用行为。
//
// 所有连接器必须实现此接口，确保一致的连接管理体验。
// 接口方法均为并发安全，可从多个协程同时调用。
type Connector interface {
	// Connect 建立连接。
	//
	// 此方法是幂等的，可安全多次调用。首次调用时建立连接，
	// 后续调用直接返回 nil。连接过程阻塞直到成功或失败。
	//
	// 返回错误：连接建立失败时返回包装后的错误（PostgreSQL 连接器包装
	// ErrConnection，etcd 与 Kafka 连接器包装底层客户端错误）。
	// 配置在构造函数中校验，Connect 不返回配置错误。
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源。
	//
	// 此方法是幂等的，可安全多次调用。关闭后，
	// GetClient() 将返回 nil，HealthCheck() 将返回 ErrClientNil。
	//
	// 重要：应在应用层通过 defer 确保调用，遵循"谁创建，谁负责释放"原则。
	Close() error

	// HealthCheck 检查连接健康状态。
	//
	// 通过发送测试请求验证连接可用性。此方法会更新内部健康状态缓存，
	// 可通过 IsHealthy() 快速读取。
	//
	// 返回错误：
	//   - ErrClientNil: 客户端未初始化或已关闭
	//   - 检查失败时返回包装后的错误（PostgreSQL 连接器包装 ErrHealthCheck，
	//     etcd 与 Kafka 连接器包装底层客户端错误）
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回缓存的健康状态。
	//
	// 此方法无阻塞，直接返回最后一次 HealthCheck() 的结果。
	// 对于实时健康检查，应使用 HealthCheck() 方法。
	IsHealthy() bool

	// Name 返回连接实例名称。
	//
	// 名称用于日志记录和指标标识，应在配置中唯一标识此连接器实例。
	Name() string
}

// =============================================================================
// 泛型接口
// =============================================================================

// TypedConnector 提供类型安全的客户端访问。
//
// 此接口组合了 Connector 基础接口，并添加了 GetClient() 方法
// 用于获取特定类型的客户端。所有具体连接器接口都应基于此定义。
//
// 类型参数 T 是客户端类型，如 *redis.Client、*gorm.DB 等。
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端实例。
	//
	// 调用者应通过此客户端执行实际的数据操作。
	// 注意：在 Connect() 之前或 Close() 之后调用可能返回 nil。
	GetClient() T
}

// =============================================================================
// 具体连接器接口
// =============================================================================

// PostgreSQLConnector PostgreSQL 连接器接口。
//
// 提供对 PostgreSQL 数据库的连接管理，基于 GORM ORM 框架。
// 支持高级数据类型（JSONB、ARRAY、GIS）、复杂查询、全文搜索等企业级特性。
type PostgreSQLConnector interface {
	TypedConnector[*gorm.DB]
}

// EtcdConnector Etcd 连接器接口。
//
// 提供对 Etcd 键值存储的连接管理，支持服务发现、健康状态上报、watch 等场景。
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// KafkaConnector Kafka 连接器接口。
//
// 提供对 Kafka 消息队列的连接管理，支持高吞吐的消息生产和消费。
// 基于 franz-go 客户端，提供现代的 Kafka 消费者组 API。
type KafkaConnector interface {
	TypedConnector[*kgo.Client]

	// Config 返回构造时传入的 Kafka 配置
	Config() *KafkaConfig
}
