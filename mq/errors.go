package mq

import "github.com/pipestream/broker/xerrors"

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("mq: config is nil")

	// ErrUnsupportedDriver 不支持的驱动类型
	ErrUnsupportedDriver = xerrors.New("mq: unsupported driver")

	// ErrConnectorRequired Kafka 连接器未提供
	ErrConnectorRequired = xerrors.New("mq: kafka connector is required")
)
