package application

import "errors"

var (
	// ErrUnknownDBType ...
	ErrUnknownDBType = errors.New("unknown db type")
	// ErrMissingRepoManager ...
	ErrMissingRepoManager = errors.New("missing repository manager")
	// ErrMissingChainClient ...
	ErrMissingChainClient = errors.New("missing chain client")
)
