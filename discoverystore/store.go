// Package discoverystore 适配一个 Consul 风格的服务发现/健康检查存储，
// 底层由 etcd 的租约 (Lease) + KeepAlive + Watch 实现：注册方写入一条带租约的
// 扁平化记录，后台探活协程周期性探测其健康状态并在连续失败超过
// deregister_after 后主动撤销租约（等价于 Consul 的 deregister_after 行为）。
//
// ## 基本使用
//
//	adapter, _ := discoverystore.New(etcdConn, &discoverystore.Config{
//	    Namespace: "/broker/discovery",
//	}, discoverystore.WithLogger(logger))
//	defer adapter.Close()
//
//	err := adapter.Register(ctx, discoverystore.EncodeRecord(input), 30*time.Second, prober)
//	healthy := adapter.WaitForHealthy(ctx, "auth-svc", serviceID)
package discoverystore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/connector"
	metrics "github.com/pipestream/broker/metrics"
	"github.com/pipestream/broker/xerrors"
)

// Adapter is C2 (Discovery-Store Adapter) + C3 (Health Gate) + the discovery
// half of C7 (list/lookup via the discovery store).
type Adapter interface {
	// Register 写入一条带租约的记录并启动其健康探测。ttl<=0 时使用配置默认值。
	Register(ctx context.Context, rec Record, ttl time.Duration, prober HealthProber) error

	// Deregister 幂等注销；"已不存在" 也视为成功
	Deregister(ctx context.Context, serviceID string) (bool, error)

	// ListCatalog 枚举所有已知服务名
	ListCatalog(ctx context.Context) ([]CatalogService, error)

	// ListHealthyInstances 返回给定服务名下当前健康的实例
	ListHealthyInstances(ctx context.Context, name string) ([]ServiceEntry, error)

	// WaitForHealthy 轮询直到指定实例健康或截止时间到达（C3）
	WaitForHealthy(ctx context.Context, serviceName, serviceID string) bool

	// Watch 监听给定服务名下的实例变化
	Watch(ctx context.Context, serviceName string) (<-chan Event, error)

	Close() error
}

// HealthProber 由调用方（coordinator）提供，封装一次探活尝试。
// 返回 nil 表示健康，非 nil 表示本轮探测失败。
type HealthProber func(ctx context.Context) error

type registration struct {
	leaseID       clientv3.LeaseID
	keepAliveCh   <-chan *clientv3.LeaseKeepAliveResponse
	cancel        context.CancelFunc
	serviceID     string
	serviceName   string
	prober        HealthProber
	healthy       atomic.Bool
	failuresSince atomic.Int64 // unix nano of first continuous failure, 0 if healthy
	closed        atomic.Bool
}

type adapter struct {
	client *clientv3.Client
	cfg    *Config
	logger clog.Logger
	meter  metrics.Meter

	mu            sync.RWMutex
	registrations map[string]*registration
	watchers      map[uint64]context.CancelFunc
	watchSeq      uint64

	wg     sync.WaitGroup
	stop   chan struct{}
	closed atomic.Bool
}

// New 创建 Adapter 实例
//
// 参数:
//   - conn: Etcd 连接器
//   - cfg: 组件配置
//   - opts: 可选参数 (Logger, Meter)
func New(conn connector.EtcdConnector, cfg *Config, opts ...Option) (Adapter, error) {
	if conn == nil {
		return nil, ErrConnectorNil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.New("discoverystore: etcd client is nil")
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	if opt.logger == nil {
		opt.logger, _ = clog.New(&clog.Config{Level: "info", Format: "console", Output: "stdout"})
		opt.logger = opt.logger.WithNamespace("discoverystore")
	}
	if opt.meter == nil {
		opt.meter = metrics.Discard()
	}

	return &adapter{
		client:        client,
		cfg:           cfg,
		logger:        opt.logger,
		meter:         opt.meter,
		registrations: make(map[string]*registration),
		watchers:      make(map[uint64]context.CancelFunc),
		stop:          make(chan struct{}),
	}, nil
}

func (a *adapter) key(name, id string) string {
	return fmt.Sprintf("%s/%s/%s", a.cfg.Namespace, name, id)
}

func (a *adapter) prefix(name string) string {
	return fmt.Sprintf("%s/%s/", a.cfg.Namespace, name)
}

// Register 实现 C2 Register + 启动 C3 探活协程
func (a *adapter) Register(ctx context.Context, rec Record, ttl time.Duration, prober HealthProber) error {
	if a.closed.Load() {
		return ErrAdapterClosed
	}
	if rec.ID == "" || rec.Name == "" {
		return ErrInvalidRecord
	}
	if ttl <= 0 {
		ttl = a.cfg.DefaultTTL
	}

	a.mu.Lock()
	if _, exists := a.registrations[rec.ID]; exists {
		a.mu.Unlock()
		return xerrors.Wrapf(ErrInvalidRecord, "discoverystore: %s already registered", rec.ID)
	}
	a.mu.Unlock()

	lease, err := a.client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return xerrors.Wrap(err, "discoverystore: grant lease")
	}

	value, err := json.Marshal(rec)
	if err != nil {
		_, _ = a.client.Revoke(ctx, lease.ID)
		return xerrors.Wrap(err, "discoverystore: marshal record")
	}

	if _, err := a.client.Put(ctx, a.key(rec.Name, rec.ID), string(value), clientv3.WithLease(lease.ID)); err != nil {
		_, _ = a.client.Revoke(ctx, lease.ID)
		return xerrors.Wrap(err, "discoverystore: put record")
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	keepAliveCh, err := a.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		_, _ = a.client.Revoke(ctx, lease.ID)
		return xerrors.Wrap(err, "discoverystore: keepalive")
	}

	reg := &registration{
		leaseID:     lease.ID,
		keepAliveCh: keepAliveCh,
		cancel:      cancel,
		serviceID:   rec.ID,
		serviceName: rec.Name,
		prober:      prober,
	}
	reg.healthy.Store(prober == nil) // 未提供探测器时视为健康（纯 SERVICE 文本记录）

	a.mu.Lock()
	a.registrations[rec.ID] = reg
	a.mu.Unlock()

	a.wg.Add(1)
	go a.monitorKeepAlive(reg)

	if prober != nil {
		a.wg.Add(1)
		go a.runHealthProbe(reg)
	}

	a.logger.Info("instance registered",
		clog.String("service_id", rec.ID), clog.String("service_name", rec.Name))
	return nil
}

func (a *adapter) monitorKeepAlive(reg *registration) {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		case _, ok := <-reg.keepAliveCh:
			if !ok {
				if reg.closed.Load() {
					return
				}
				a.logger.Error("keepalive channel closed, lease lost",
					clog.String("service_id", reg.serviceID))
				a.mu.Lock()
				delete(a.registrations, reg.serviceID)
				a.mu.Unlock()
				return
			}
		}
	}
}

// runHealthProbe 每 healthCheckInterval 调用一次 prober；
// 连续失败超过 healthDeregisterAfter 时主动撤销租约（等价 Consul deregister_after）
func (a *adapter) runHealthProbe(reg *registration) {
	defer a.wg.Done()

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), healthCheckInterval)
			err := reg.prober(ctx)
			cancel()

			if err == nil {
				reg.healthy.Store(true)
				reg.failuresSince.Store(0)
				continue
			}

			reg.healthy.Store(false)
			first := reg.failuresSince.Load()
			now := time.Now().UnixNano()
			if first == 0 {
				reg.failuresSince.Store(now)
				first = now
			}
			if time.Duration(now-first) >= healthDeregisterAfter {
				a.logger.Warn("instance failing health checks beyond deregister_after, pruning",
					clog.String("service_id", reg.serviceID))
				_, _ = a.Deregister(context.Background(), reg.serviceID)
				return
			}
		}
	}
}

// Deregister 实现 C2 Deregister：幂等，"已不存在"也视为成功
func (a *adapter) Deregister(ctx context.Context, serviceID string) (bool, error) {
	a.mu.Lock()
	reg, exists := a.registrations[serviceID]
	if !exists {
		a.mu.Unlock()
		return true, nil
	}
	delete(a.registrations, serviceID)
	a.mu.Unlock()

	reg.closed.Store(true)
	reg.cancel()

	if _, err := a.client.Revoke(ctx, reg.leaseID); err != nil {
		a.logger.Error("failed to revoke lease", clog.String("service_id", serviceID), clog.Error(err))
		return false, xerrors.Wrap(err, "discoverystore: revoke lease")
	}

	a.logger.Info("instance deregistered", clog.String("service_id", serviceID))
	return true, nil
}

// ListCatalog 实现 C7 的服务名枚举：遍历命名空间下所有 key，按第一段目录名去重
func (a *adapter) ListCatalog(ctx context.Context) ([]CatalogService, error) {
	resp, err := a.client.Get(ctx, a.cfg.Namespace+"/", clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, xerrors.Wrap(err, "discoverystore: list catalog")
	}

	seen := make(map[string]struct{})
	var names []CatalogService
	trimPrefix := a.cfg.Namespace + "/"
	for _, kv := range resp.Kvs {
		rest := strings.TrimPrefix(string(kv.Key), trimPrefix)
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 0 || parts[0] == "" {
			continue
		}
		if _, ok := seen[parts[0]]; ok {
			continue
		}
		seen[parts[0]] = struct{}{}
		names = append(names, CatalogService{Name: parts[0]})
	}
	return names, nil
}

// ListHealthyInstances 实现 C2 list_healthy_instances
func (a *adapter) ListHealthyInstances(ctx context.Context, name string) ([]ServiceEntry, error) {
	resp, err := a.client.Get(ctx, a.prefix(name), clientv3.WithPrefix())
	if err != nil {
		return nil, xerrors.Wrap(err, "discoverystore: list instances")
	}

	entries := make([]ServiceEntry, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var rec Record
		if err := json.Unmarshal(kv.Value, &rec); err != nil {
			a.logger.Warn("failed to unmarshal record", clog.String("key", string(kv.Key)), clog.Error(err))
			continue
		}

		a.mu.RLock()
		reg, ok := a.registrations[rec.ID]
		a.mu.RUnlock()
		healthy := !ok || reg.healthy.Load()
		if healthy {
			entries = append(entries, ServiceEntry{Record: rec, Healthy: true})
		}
	}
	return entries, nil
}

// WaitForHealthy 实现 C3：按固定节奏轮询 ListHealthyInstances 直到命中或截止
func (a *adapter) WaitForHealthy(ctx context.Context, serviceName, serviceID string) bool {
	deadline := time.Now().Add(a.cfg.HealthGateDeadline)
	ticker := time.NewTicker(a.cfg.HealthGatePollInterval)
	defer ticker.Stop()

	check := func() bool {
		entries, err := a.ListHealthyInstances(ctx, serviceName)
		if err != nil {
			return false
		}
		for _, e := range entries {
			if e.Record.ID == serviceID {
				return true
			}
		}
		return false
	}

	if check() {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if time.Now().After(deadline) {
				return false
			}
			if check() {
				return true
			}
		}
	}
}

// Watch 实现 C7 watch：支持因 compaction/错误自动重连
func (a *adapter) Watch(ctx context.Context, serviceName string) (<-chan Event, error) {
	if a.closed.Load() {
		return nil, ErrAdapterClosed
	}

	eventCh := make(chan Event, 100)
	prefix := a.prefix(serviceName)
	watchCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.watchSeq++
	id := a.watchSeq
	a.watchers[id] = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(eventCh)
		defer func() {
			a.mu.Lock()
			delete(a.watchers, id)
			a.mu.Unlock()
		}()

		var lastRev int64
		for {
			opts := []clientv3.OpOption{clientv3.WithPrefix()}
			if lastRev > 0 {
				opts = append(opts, clientv3.WithRev(lastRev+1))
			}
			watchCh := a.client.Watch(watchCtx, prefix, opts...)

		innerLoop:
			for watchCh != nil {
				select {
				case <-watchCtx.Done():
					return
				case wresp, ok := <-watchCh:
					if !ok {
						break innerLoop
					}
					if wresp.Err() != nil {
						if xerrors.Is(wresp.Err(), rpctypes.ErrCompacted) {
							resp, err := a.client.Get(watchCtx, prefix, clientv3.WithPrefix())
							if err == nil {
								lastRev = resp.Header.Revision
							}
						}
						break innerLoop
					}
					for _, ev := range wresp.Events {
						if ev.Kv.ModRevision > lastRev {
							lastRev = ev.Kv.ModRevision
						}
						var entry ServiceEntry
						var out Event
						switch ev.Type {
						case clientv3.EventTypePut:
							if err := json.Unmarshal(ev.Kv.Value, &entry.Record); err != nil {
								continue
							}
							entry.Healthy = true
							out = Event{Type: EventPut, Entry: entry}
						case clientv3.EventTypeDelete:
							parts := strings.Split(string(ev.Kv.Key), "/")
							entry.Record.ID = parts[len(parts)-1]
							entry.Record.Name = serviceName
							out = Event{Type: EventDelete, Entry: entry}
						}
						select {
						case eventCh <- out:
						case <-watchCtx.Done():
							return
						}
					}
				}
			}

			select {
			case <-watchCtx.Done():
				return
			default:
				time.Sleep(a.cfg.RetryInterval)
			}
		}
	}()

	return eventCh, nil
}

// Close 停止所有后台任务并撤销所有尚未清理的租约
func (a *adapter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	close(a.stop)

	a.mu.Lock()
	for _, c := range a.watchers {
		c()
	}
	a.watchers = make(map[uint64]context.CancelFunc)

	leases := make(map[string]clientv3.LeaseID, len(a.registrations))
	for id, reg := range a.registrations {
		reg.closed.Store(true)
		reg.cancel()
		leases[id] = reg.leaseID
		delete(a.registrations, id)
	}
	a.mu.Unlock()

	for id, leaseID := range leases {
		if _, err := a.client.Revoke(ctx, leaseID); err != nil {
			a.logger.Warn("failed to revoke lease during shutdown", clog.String("service_id", id), clog.Error(err))
		}
	}

	a.wg.Wait()
	a.logger.Info("discoverystore adapter stopped")
	return nil
}
