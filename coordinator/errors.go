package coordinator

import "github.com/pipestream/broker/xerrors"

var (
	// ErrStoreNil the discovery-store adapter is required
	ErrStoreNil = xerrors.New("coordinator: discovery store is required")

	// ErrRepoNil the metadata repository is required
	ErrRepoNil = xerrors.New("coordinator: metadata repository is required")

	// ErrMissingFields validation failure: a required field was empty/zero
	ErrMissingFields = xerrors.New("Missing required fields")

	// ErrHealthTimeout a newly registered instance never reported healthy
	ErrHealthTimeout = xerrors.New("registered but failed health checks")

	// ErrCallbackFailed C4's GetServiceRegistration failed or found no instance
	ErrCallbackFailed = xerrors.New("module callback failed")

	// ErrPersistFailed C5's transactional write failed
	ErrPersistFailed = xerrors.New("metadata persistence failed")

	// ErrRateLimited the configured rate limiter rejected this Register call
	ErrRateLimited = xerrors.New("registration rate limit exceeded")
)
