package modulecallback

import "github.com/pipestream/broker/xerrors"

var (
	// ErrResolverNil no InstanceResolver configured
	ErrResolverNil = xerrors.New("modulecallback: instance resolver is required")

	// ErrShuttingDown the client is tearing down; no new channels may be opened
	ErrShuttingDown = xerrors.New("modulecallback: client is shutting down")

	// ErrNoHealthyInstance resolver found no dialable address for the module
	ErrNoHealthyInstance = xerrors.New("modulecallback: no healthy instance found")
)
