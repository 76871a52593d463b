package idem

import "github.com/pipestream/broker/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("idem: config is nil")

	// ErrKeyEmpty 幂等键为空
	ErrKeyEmpty = xerrors.New("idem: key is empty")

	// ErrConcurrentRequest 并发请求
	ErrConcurrentRequest = xerrors.New("idem: concurrent request detected")

	// ErrResultNotFound 结果未找到（内部使用）
	ErrResultNotFound = xerrors.New("idem: result not found")

	// ErrLockLost 持有的锁已丢失或被其他请求抢占，刷新/释放时 token 不匹配
	ErrLockLost = xerrors.New("idem: lock lost")
)
