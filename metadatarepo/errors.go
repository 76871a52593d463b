package metadatarepo

import "github.com/pipestream/broker/xerrors"

var (
	// ErrDBNil the underlying db.DB handle is required
	ErrDBNil = xerrors.New("metadatarepo: db handle is required")

	// ErrModuleNotFound no module row matched
	ErrModuleNotFound = xerrors.New("metadatarepo: module not found")

	// ErrSchemaNotFound no config_schemas row matched
	ErrSchemaNotFound = xerrors.New("metadatarepo: schema not found")
)
