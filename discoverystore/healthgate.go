package discoverystore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pipestream/broker/xerrors"
)

// NewProber 构造一个健康探测函数：若记录携带至少一个 HTTP 端点，
// 探测其首个端点的 health_path；否则回退为对连接地址发起 gRPC Health Checking
// Protocol 调用。
//
// 原 Java 实现（ConsulRegistrar）固定使用 gRPC 健康检查；这里按 HTTP 优先是因为
// 发现存储记录本身就携带了 HTTP 端点信息，能更准确地探测 HTTP 网关层，
// 而非仅探测其背后的 gRPC 服务本身。
func NewProber(rec Record, internalHost string, internalPort int, tlsEnabled bool) HealthProber {
	endpoints := DecodeHTTPEndpoints(rec.Meta)
	if len(endpoints) > 0 {
		return httpProber(endpoints[0])
	}
	return grpcProber(internalHost, internalPort, tlsEnabled)
}

func httpProber(ep HTTPEndpoint) HealthProber {
	healthPath := ep.HealthPath
	if healthPath == "" {
		healthPath = "/healthz"
	}
	url := fmt.Sprintf("%s://%s:%d%s", schemeOrDefault(ep.Scheme), ep.Host, ep.Port, healthPath)

	client := &http.Client{Timeout: healthCheckInterval}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return xerrors.Wrap(err, "discoverystore: build health request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return xerrors.Wrap(err, "discoverystore: http health check")
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return xerrors.Wrapf(xerrors.ErrInvalidInput, "discoverystore: health endpoint returned %d", resp.StatusCode)
		}
		return nil
	}
}

func schemeOrDefault(scheme string) string {
	if scheme == "" {
		return "http"
	}
	return scheme
}

func grpcProber(host string, port int, tlsEnabled bool) HealthProber {
	addr := fmt.Sprintf("%s:%d", host, port)
	return func(ctx context.Context) error {
		dialCreds := grpc.WithTransportCredentials(insecure.NewCredentials())
		if tlsEnabled {
			dialCreds = grpc.WithTransportCredentials(credentials.NewTLS(nil))
		}

		conn, err := grpc.NewClient(addr, dialCreds)
		if err != nil {
			return xerrors.Wrap(err, "discoverystore: dial for grpc health check")
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(ctx, healthCheckInterval)
		defer cancel()

		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return xerrors.Wrap(err, "discoverystore: grpc health check")
		}
		if resp.Status != healthpb.HealthCheckResponse_SERVING {
			return xerrors.Wrapf(xerrors.ErrInvalidInput, "discoverystore: grpc health status %s", resp.Status)
		}
		return nil
	}
}
