package node_registry

// Node is one vtfs server a client can talk to.
type Node struct {
	ID      string
	Address string
	Healthy bool
}

type NodeRegistry interface {
	RegisterNode(node Node) error
	DeregisterNode(id string) error
	GetNode(id string) (Node, error)
	MarkHealthy(id string, healthy bool) error
	GetNodes() []Node
	GetHealthyNodes() ([]Node, error)
}
