// Package dlock 提供基于 etcd session/concurrency 的分布式锁组件。
//
// dlock 用于串行化跨进程的临界区操作——在本仓库中，Registration Coordinator
// 用它保证同一 service_id 的元数据写入不会被并发的重复注册请求交叉执行。
//
// ## 基本使用
//
//	locker, _ := dlock.NewEtcd(etcdConn, &dlock.Config{
//	    Prefix:     "broker:lock:",
//	    DefaultTTL: 10 * time.Second,
//	}, dlock.WithLogger(logger))
//
//	if err := locker.Lock(ctx, serviceID); err != nil {
//	    return err
//	}
//	defer locker.Unlock(ctx, serviceID)
package dlock

import (
	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/connector"
	metrics "github.com/pipestream/broker/metrics"
)

// NewEtcd 创建 Etcd 分布式锁 (独立模式)
// 这是标准的工厂函数，支持在不依赖 Container 的情况下独立实例化
//
// 参数:
//   - conn: Etcd 连接器
//   - cfg: DLock 配置
//   - opts: 可选参数 (Logger, Meter)
//
// 使用示例:
//
//	etcdConn, _ := connector.NewEtcd(etcdConfig)
//	locker, _ := dlock.NewEtcd(etcdConn, &dlock.Config{
//	    Prefix: "myapp:lock:",
//	    DefaultTTL: 30 * time.Second,
//	}, dlock.WithLogger(logger))
func NewEtcd(conn connector.EtcdConnector, cfg *Config, opts ...Option) (Locker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	logger := opt.logger
	if logger != nil {
		logger = logger.With(clog.String("component", "dlock"))
	}

	meter := opt.meter
	if meter == nil {
		meter = metrics.Discard()
	}

	return newEtcd(conn, cfg, logger, meter)
}
