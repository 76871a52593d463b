package db

import "github.com/pipestream/broker/xerrors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.New("db: invalid config")

	// ErrPostgreSQLConnectorRequired PostgreSQL 连接器未提供
	ErrPostgreSQLConnectorRequired = xerrors.New("db: postgresql connector is required")
)
