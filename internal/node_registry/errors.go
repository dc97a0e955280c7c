package node_registry

import "errors"

var (
	ErrNodeAlreadyExists = errors.New("node already exists")
	ErrNodeNotFound      = errors.New("node not found")

	ErrInvalidNodeID      = errors.New("invalid node ID")
	ErrInvalidNodeAddress = errors.New("invalid node address")

	ErrNoHealthyNodes = errors.New("no healthy nodes available")
)
