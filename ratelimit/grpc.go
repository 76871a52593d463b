package ratelimit

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// grpcLimiterConfig 聚合四个拦截器共用的限流判定逻辑
type grpcLimiterConfig struct {
	limiter   Limiter
	keyFunc   func(ctx context.Context, fullMethod string) string
	limitFunc func(ctx context.Context, fullMethod string) Limit
}

// newGRPCLimiterConfig 构造 grpcLimiterConfig，填充缺省的 limiter/keyFunc/limitFunc
func newGRPCLimiterConfig(
	limiter Limiter,
	keyFunc func(ctx context.Context, fullMethod string) string,
	limitFunc func(ctx context.Context, fullMethod string) Limit,
) *grpcLimiterConfig {
	if limiter == nil {
		limiter = Discard()
	}
	if keyFunc == nil {
		keyFunc = defaultGRPCKeyFunc
	}
	if limitFunc == nil {
		limitFunc = func(ctx context.Context, fullMethod string) Limit {
			return Limit{}
		}
	}
	return &grpcLimiterConfig{limiter: limiter, keyFunc: keyFunc, limitFunc: limitFunc}
}

// check 对指定方法执行一次限流判定
// 返回 (allowed, passThrough)：passThrough 为 true 时表示因无效规则或限流器错误而直接放行
func (c *grpcLimiterConfig) check(ctx context.Context, fullMethod string) (allowed bool, passThrough bool) {
	limit := c.limitFunc(ctx, fullMethod)
	if limit.Rate <= 0 || limit.Burst <= 0 {
		return false, true
	}

	key := c.keyFunc(ctx, fullMethod)
	ok, err := c.limiter.Allow(ctx, key, limit)
	if err != nil {
		return false, true
	}
	return ok, false
}

// ========================================
// 服务端拦截器 (Server Interceptor)
// ========================================

// UnaryServerInterceptor 返回 gRPC 一元调用服务端拦截器
//
// 参数:
//   - limiter: 限流器实例
//   - keyFunc: 从请求中提取限流键的函数，如果为 nil，默认使用 fullMethod
//   - limitFunc: 获取限流规则的函数
//
// 使用示例:
//
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(
//	        ratelimit.UnaryServerInterceptor(limiter,
//	            nil,
//	            func(ctx context.Context, fullMethod string) ratelimit.Limit {
//	                return ratelimit.Limit{Rate: 100, Burst: 200}
//	            }),
//	    ),
//	)
func UnaryServerInterceptor(
	limiter Limiter,
	keyFunc func(ctx context.Context, fullMethod string) string,
	limitFunc func(ctx context.Context, fullMethod string) Limit,
) grpc.UnaryServerInterceptor {
	cfg := newGRPCLimiterConfig(limiter, keyFunc, limitFunc)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		allowed, passThrough := cfg.check(ctx, info.FullMethod)
		if passThrough {
			return handler(ctx, req)
		}
		if !allowed {
			return nil, status.Error(codes.ResourceExhausted, ErrRateLimitExceeded.Error())
		}
		return handler(ctx, req)
	}
}

// ========================================
// 客户端拦截器 (Client Interceptor)
// ========================================

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
//
// 参数:
//   - limiter: 限流器实例
//   - keyFunc: 从请求中提取限流键的函数，如果为 nil，默认使用 fullMethod
//   - limitFunc: 获取限流规则的函数
//
// 使用示例:
//
//	conn, _ := grpc.Dial(
//	    "localhost:9001",
//	    grpc.WithUnaryInterceptor(
//	        ratelimit.UnaryClientInterceptor(limiter,
//	            nil,
//	            func(ctx context.Context, fullMethod string) ratelimit.Limit {
//	                return ratelimit.Limit{Rate: 100, Burst: 200}
//	            }),
//	    ),
//	)
func UnaryClientInterceptor(
	limiter Limiter,
	keyFunc func(ctx context.Context, fullMethod string) string,
	limitFunc func(ctx context.Context, fullMethod string) Limit,
) grpc.UnaryClientInterceptor {
	cfg := newGRPCLimiterConfig(limiter, keyFunc, limitFunc)

	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		allowed, passThrough := cfg.check(ctx, method)
		if passThrough {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		if !allowed {
			return status.Error(codes.ResourceExhausted, ErrRateLimitExceeded.Error())
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// ========================================
// 流式拦截器 (Stream Interceptor)
// ========================================

// StreamServerInterceptor 返回 gRPC 流式调用服务端拦截器
// 在流建立时进行一次限流检查；keyFunc 为空时使用 fullMethod
func StreamServerInterceptor(
	limiter Limiter,
	keyFunc func(ctx context.Context, fullMethod string) string,
	limitFunc func(ctx context.Context, fullMethod string) Limit,
) grpc.StreamServerInterceptor {
	cfg := newGRPCLimiterConfig(limiter, keyFunc, limitFunc)

	return func(srv interface{}, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		allowed, passThrough := cfg.check(stream.Context(), info.FullMethod)
		if !passThrough && !allowed {
			return status.Error(codes.ResourceExhausted, ErrRateLimitExceeded.Error())
		}
		return handler(srv, stream)
	}
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
// 在流建立时进行一次限流检查；keyFunc 为空时使用 fullMethod
func StreamClientInterceptor(
	limiter Limiter,
	keyFunc func(ctx context.Context, fullMethod string) string,
	limitFunc func(ctx context.Context, fullMethod string) Limit,
) grpc.StreamClientInterceptor {
	cfg := newGRPCLimiterConfig(limiter, keyFunc, limitFunc)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		allowed, passThrough := cfg.check(ctx, method)
		if !passThrough && !allowed {
			return nil, status.Error(codes.ResourceExhausted, ErrRateLimitExceeded.Error())
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

func defaultGRPCKeyFunc(ctx context.Context, fullMethod string) string {
	return fullMethod
}
