package node_registry

import (
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

type InMemoryNodeRegistry struct {
	mu    sync.RWMutex
	nodes []Node
}

func NewInMemoryNodeRegistry() *InMemoryNodeRegistry {
	return &InMemoryNodeRegistry{
		nodes: []Node{},
	}
}

func (r *InMemoryNodeRegistry) indexOf(id string) int {
	return slices.IndexFunc(r.nodes, func(n Node) bool { return n.ID == id })
}

// RegisterNode adds node. Registration order is kept for listing.
func (r *InMemoryNodeRegistry) RegisterNode(node Node) error {
	if strings.TrimSpace(node.ID) == "" {
		return ErrInvalidNodeID
	}
	if strings.TrimSpace(node.Address) == "" {
		return ErrInvalidNodeAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(node.ID) >= 0 {
		return ErrNodeAlreadyExists
	}
	r.nodes = append(r.nodes, node)
	return nil
}

func (r *InMemoryNodeRegistry) DeregisterNode(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return ErrNodeNotFound
	}
	r.nodes = slices.Delete(r.nodes, i, i+1)
	return nil
}

func (r *InMemoryNodeRegistry) GetNode(id string) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return Node{}, ErrNodeNotFound
	}
	return r.nodes[i], nil
}

func (r *InMemoryNodeRegistry) MarkHealthy(id string, healthy bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return ErrNodeNotFound
	}
	r.nodes[i].Healthy = healthy
	return nil
}

func (r *InMemoryNodeRegistry) GetNodes() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.nodes)
}

func (r *InMemoryNodeRegistry) GetHealthyNodes() ([]Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var healthy []Node
	for _, n := range r.nodes {
		if n.Healthy {
			healthy = append(healthy, n)
		}
	}
	if len(healthy) == 0 {
		return nil, ErrNoHealthyNodes
	}
	return healthy, nil
}

var _ NodeRegistry = (*InMemoryNodeRegistry)(nil)
