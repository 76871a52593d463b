// Package idem 提供了幂等性组件，用于确保在分布式环境中操作的"一次且仅一次"执行。
//
// idem 提供了：
// - 统一的 Idempotency 接口，支持手动调用、gRPC 拦截器
// - 结果缓存：自动缓存执行结果，重复请求直接返回缓存数据
// - 并发控制：内置按幂等键加锁的机制（Memory 实现为进程内锁），防止同一幂等键的并发穿透
// - 后端可配置：目前提供单机 Memory 实现，通过 Store 接口可扩展其他后端
//
// ## 基本使用
//
//	// 创建幂等组件
//	idem, _ := idem.New(&idem.Config{
//	    Driver:     idem.DriverMemory,
//	    Prefix:     "broker:register:",
//	    DefaultTTL: 24 * time.Hour,
//	}, idem.WithLogger(logger))
//
//	// 执行幂等操作
//	result, err := idem.Execute(ctx, serviceID, func(ctx context.Context) (interface{}, error) {
//	    return coordinator.doRegister(ctx, req)
//	})
//
// ## gRPC 拦截器
//
//	s := grpc.NewServer(
//	    grpc.UnaryInterceptor(idem.UnaryServerInterceptor()),
//	)
package idem

import (
	"context"
	"time"

	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/xerrors"

	"google.golang.org/grpc"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Idempotency 幂等性组件核心接口
//
// 支持两种使用方式：
// 1. Execute: 手动调用，适合业务层直接使用
// 2. UnaryServerInterceptor: gRPC 一元拦截器，处理单次 RPC 调用幂等性
type Idempotency interface {
	// Execute 执行幂等操作
	//
	// 工作流程：
	//   1. 如果 key 已存在且完成 → 直接返回缓存结果
	//   2. 如果 key 正在处理中 → 在 WaitTimeout 内等待其结果；
	//      WaitTimeout 为 0 或等待超时时返回 ErrConcurrentRequest
	//   3. 如果 key 不存在 → 执行 fn 并缓存结果
	//
	// 参数：
	//   - ctx: 上下文，用于取消和超时控制
	//   - key: 幂等性键，全局唯一标识这次操作
	//   - fn: 业务逻辑函数，只在第一次请求时执行
	//
	// 返回：
	//   - 执行结果或缓存的结果
	//   - 错误：ErrKeyEmpty, ErrConcurrentRequest 等
	Execute(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error)

	// Consume 用于消息消费的幂等处理
	//
	// 工作流程：
	//   1. 如果 key 已存在且完成 → 直接返回 false
	//   2. 如果 key 正在处理中 → 返回 ErrConcurrentRequest
	//   3. 如果 key 不存在 → 执行 fn 并标记已处理
	//
	// 返回：
	//   - executed: 是否执行了 fn
	//   - 错误：ErrKeyEmpty, ErrConcurrentRequest 等
	Consume(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (executed bool, err error)

	// UnaryServerInterceptor 创建 gRPC 一元服务端拦截器
	//
	// 使用示例：
	//   server := grpc.NewServer(
	//       grpc.UnaryInterceptor(idem.UnaryServerInterceptor()),
	//   )
	//
	// 工作原理：
	//   1. 从 gRPC metadata 提取 x-idem-key
	//   2. 使用存储后端的幂等键锁防止并发执行
	//   3. 如果缓存命中，返回缓存的 protobuf 响应
	//   4. 如果未命中，执行 RPC handler 并缓存结果
	//
	// 参数：
	//   - opts: 拦截器选项，可自定义 metadata 键名称等
	//
	// 返回：
	//   - gRPC 一元服务端拦截器
	//
	// 注意：
	//   只支持一元 RPC 调用，不支持流式 RPC（因为流式交互的复杂性）。
	UnaryServerInterceptor(opts ...InterceptorOption) grpc.UnaryServerInterceptor
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建幂等性组件实例
//
// 这是标准的工厂函数，支持配置驱动和显式依赖注入。
//
// 参数：
//   - cfg: 幂等性配置，不可为 nil
//   - opts: 可选配置，如 WithLogger()
//
// 返回：
//   - Idempotency 组件实例
//   - 错误：配置为空或非法
//
// 使用示例：
//
//	idem, err := idem.New(&idem.Config{
//	    Driver:     idem.DriverMemory,
//	    Prefix:     "broker:register:",
//	    DefaultTTL: 24 * time.Hour,
//	    LockTTL:    30 * time.Second,
//	}, idem.WithLogger(logger))
func New(cfg *Config, opts ...Option) (Idempotency, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// 应用选项
	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	// 派生 Logger（添加 component 字段）
	logger := opt.logger
	if logger != nil {
		logger = logger.With(clog.String("component", "idem"))
	}

	switch cfg.Driver {
	case DriverMemory:
		if logger != nil {
			logger.Info("creating idem component",
				clog.String("driver", string(cfg.Driver)),
				clog.String("prefix", cfg.Prefix),
				clog.Duration("default_ttl", cfg.DefaultTTL),
				clog.Duration("lock_ttl", cfg.LockTTL))
		}
		return newIdempotency(cfg, newMemoryStore(cfg.Prefix), logger), nil
	default:
		return nil, xerrors.New("idem: unsupported driver: " + string(cfg.Driver))
	}
}
