package discoverystore

import "github.com/pipestream/broker/xerrors"

var (
	// ErrConnectorNil etcd 连接器为空
	ErrConnectorNil = xerrors.New("discoverystore: etcd connector is required")

	// ErrInvalidRecord 记录缺少必填字段
	ErrInvalidRecord = xerrors.New("discoverystore: invalid record")

	// ErrAdapterClosed Adapter 已关闭
	ErrAdapterClosed = xerrors.New("discoverystore: adapter is closed")

	// ErrNotFound 目标服务/实例未找到
	ErrNotFound = xerrors.New("discoverystore: not found")
)
