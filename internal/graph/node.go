package graph

import (
	"time"

	"github.com/google/uuid"
)

// Node is a typed vertex in the project tree. Children are ordered; a node
// with ParentID == uuid.Nil is a root. Links holds non-hierarchical
// cross-references to other nodes.
type Node struct {
	ID         uuid.UUID
	TypeID     string
	Name       string
	CreatedAt  time.Time
	Properties map[string]any
	Children   []uuid.UUID
	ParentID   uuid.UUID
	Links      []uuid.UUID

	// Orphaned is set when the node's type is no longer present in the
	// session's schema. Orphaned nodes are kept but rejected as parents.
	Orphaned bool
}

// NewNode creates a node with a fresh ID and empty property map.
func NewNode(typeID, name string) *Node {
	return &Node{
		ID:         uuid.New(),
		TypeID:     typeID,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		Properties: map[string]any{},
	}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Properties = make(map[string]any, len(n.Properties))
	for k, v := range n.Properties {
		c.Properties[k] = v
	}
	c.Children = append([]uuid.UUID(nil), n.Children...)
	c.Links = append([]uuid.UUID(nil), n.Links...)
	return &c
}
