package events

import "github.com/pipestream/broker/xerrors"

// ErrClientNil the underlying mq client is required
var ErrClientNil = xerrors.New("events: mq client is required")
