package idem

import (
	"github.com/pipestream/broker/clog"
)

// Option 组件初始化选项函数
type Option func(*options)

// InterceptorOption gRPC 拦截器选项函数
type InterceptorOption func(*interceptorOptions)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger clog.Logger
}

// interceptorOptions gRPC 拦截器选项配置（内部使用，小写）
type interceptorOptions struct {
	metadataKey string // 幂等键的 gRPC metadata 键名，默认 "x-idem-key"
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetadataKey 设置 gRPC 拦截器的幂等键 metadata 键名
// 默认为 "x-idem-key"
func WithMetadataKey(metadataKey string) InterceptorOption {
	return func(o *interceptorOptions) {
		if metadataKey != "" {
			o.metadataKey = metadataKey
		}
	}
}
