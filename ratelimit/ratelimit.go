// Package ratelimit 提供基于内存令牌桶的限流组件。
//
// ratelimit 是 broker 治理层的核心组件，它提供了：
// - 统一的 Limiter 接口
// - 基于 golang.org/x/time/rate 的内存限流
// - 令牌桶算法，支持突发流量
// - 开箱即用的 gRPC 拦截器
// - 可注入 Logger 记录限流器的日志
//
// ## 基本使用
//
//	limiter, _ := ratelimit.NewStandalone(&ratelimit.StandaloneConfig{
//	    CleanupInterval: 1 * time.Minute,
//	    IdleTimeout:     5 * time.Minute,
//	}, ratelimit.WithLogger(logger))
//
//	// 检查是否允许请求
//	allowed, _ := limiter.Allow(ctx, "client:123", ratelimit.Limit{Rate: 10, Burst: 20})
//	if !allowed {
//	    return "rate limit exceeded"
//	}
//
// ## gRPC 拦截器
//
//	srv := grpc.NewServer(grpc.UnaryInterceptor(ratelimit.UnaryServerInterceptor(limiter, nil, func(ctx context.Context, method string) ratelimit.Limit {
//	    return ratelimit.Limit{Rate: 100, Burst: 200}
//	})))
//
// ## 可观测性
//
// 通过注入 Logger 记录日志；WithMeter 注入的 Meter 会被保存，但单机限流器不记录任何指标：
//
//	limiter, _ := ratelimit.NewStandalone(cfg,
//	    ratelimit.WithLogger(logger),
//	    ratelimit.WithMeter(meter),
//	)
package ratelimit

import (
	"context"
	"time"

	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Limit 定义限流规则（令牌桶算法）
type Limit struct {
	Rate  float64 // 令牌生成速率（每秒生成多少个令牌）
	Burst int     // 令牌桶容量（突发最大请求数）
}

// Limiter 限流器核心接口
type Limiter interface {
	// Allow 尝试获取 1 个令牌（非阻塞）
	// key: 限流标识（如 IP, ModuleID, ServiceName）
	// limit: 限流规则
	// 返回: allowed（是否允许）, error（系统错误）
	//
	// 使用示例:
	//
	//	allowed, err := limiter.Allow(ctx, "module:123", ratelimit.Limit{Rate: 10, Burst: 20})
	//	if err != nil {
	//	    // 处理系统错误
	//	}
	//	if !allowed {
	//	    // 请求被限流
	//	}
	Allow(ctx context.Context, key string, limit Limit) (bool, error)

	// AllowN 尝试获取 N 个令牌（非阻塞）
	AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error)

	// Wait 阻塞等待直到获取 1 个令牌
	Wait(ctx context.Context, key string, limit Limit) error

	// Close 关闭限流器，释放后台资源
	Close() error
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// DriverType 限流器驱动类型
type DriverType string

const (
	// DriverStandalone 单机内存限流
	DriverStandalone DriverType = "standalone"
)

// Config 限流器统一配置
type Config struct {
	// Driver 指定驱动类型，目前仅支持 standalone
	Driver DriverType `json:"driver" yaml:"driver"`

	// Standalone 单机模式配置
	Standalone *StandaloneConfig `json:"standalone" yaml:"standalone"`
}

// StandaloneConfig 单机限流配置
type StandaloneConfig struct {
	// CleanupInterval 清理过期限流器的间隔（默认：1 分钟）
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`

	// IdleTimeout 限流器空闲超时时间（默认：5 分钟）
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// setDefaults 为未设置（<= 0）的字段填充默认值
func (c *StandaloneConfig) setDefaults() {
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 1 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 根据统一配置创建限流器
func New(cfg *Config, opts ...Option) (Limiter, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	switch cfg.Driver {
	case DriverStandalone:
		return NewStandalone(cfg.Standalone, opts...)
	case "":
		return nil, xerrors.Wrap(ErrNotSupported, "ratelimit: driver is required")
	default:
		return nil, xerrors.Wrapf(ErrNotSupported, "ratelimit: unsupported driver %q", cfg.Driver)
	}
}

// NewStandalone 创建单机限流器
// 这是标准的工厂函数，支持在不依赖其他容器的情况下独立实例化
//
// 参数:
//   - cfg: 单机限流配置
//   - opts: 可选参数 (Logger, Meter)
//
// 使用示例:
//
//	limiter, _ := ratelimit.NewStandalone(&ratelimit.StandaloneConfig{
//	    CleanupInterval: 1 * time.Minute,
//	    IdleTimeout:     5 * time.Minute,
//	}, ratelimit.WithLogger(logger))
func NewStandalone(cfg *StandaloneConfig, opts ...Option) (Limiter, error) {
	if cfg == nil {
		cfg = &StandaloneConfig{
			CleanupInterval: 1 * time.Minute,
			IdleTimeout:     5 * time.Minute,
		}
	}

	// 应用选项
	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	// 派生 Logger（添加 component 字段）
	logger := opt.logger
	if logger != nil {
		logger = logger.With(clog.String("component", "ratelimit"))
	}

	if logger != nil {
		logger.Info("creating standalone rate limiter")
	}

	return newStandalone(cfg, logger, opt.meter)
}
