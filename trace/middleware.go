package trace

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc/stats"
)

// GRPCServerStatsHandler 返回一个可重用的 gRPC 服务器状态处理程序用于跟踪
func GRPCServerStatsHandler() stats.Handler {
	return otelgrpc.NewServerHandler()
}

// GRPCClientStatsHandler 返回一个可重用的 gRPC 客户端状态处理程序用于跟踪
func GRPCClientStatsHandler() stats.Handler {
	return otelgrpc.NewClientHandler()
}
