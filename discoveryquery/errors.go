package discoveryquery

import "github.com/pipestream/broker/xerrors"

var (
	// ErrNotFound a named/identified service, module, or schema could not be resolved
	ErrNotFound = xerrors.New("discoveryquery: not found")

	// ErrStoreNil the discovery-store adapter is required
	ErrStoreNil = xerrors.New("discoveryquery: discovery store is required")
)
