package command

import (
	"fmt"

	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"

	"github.com/google/uuid"
)

// CreateNode inserts a new node under ParentID (uuid.Nil creates a root).
// The node itself is built on first Apply and kept so redo restores the
// identical ID and timestamp.
type CreateNode struct {
	TypeID     string
	Name       string
	ParentID   uuid.UUID
	Properties map[string]any

	created *graph.Node
}

func (c *CreateNode) Type() string { return "CreateNode" }

func (c *CreateNode) Validate(g *graph.Graph, s schema.Provider) error {
	if c.TypeID == "" {
		return invalidf("type_id is required")
	}
	if !s.HasType(c.TypeID) {
		return invalidf("unknown node type %q", c.TypeID)
	}
	if c.ParentID != uuid.Nil {
		parent, ok := g.Node(c.ParentID)
		if !ok {
			return invalidf("parent %s not found", c.ParentID)
		}
		if parent.Orphaned {
			return invalidf("parent %s is orphaned and cannot take children", c.ParentID)
		}
		if !s.IsAllowedChild(parent.TypeID, c.TypeID) {
			return invalidf("type %q is not an allowed child of %q", c.TypeID, parent.TypeID)
		}
	}
	for propID, value := range c.Properties {
		if _, ok := s.PropertyType(c.TypeID, propID); !ok {
			return invalidf("node type %q has no property %q", c.TypeID, propID)
		}
		if v, ok := s.(valueValidator); ok {
			if err := v.ValidateValue(c.TypeID, propID, value); err != nil {
				return invalidf("%v", err)
			}
		}
	}
	return nil
}

// valueValidator is implemented by schema providers that can check property
// values, not just property existence.
type valueValidator interface {
	ValidateValue(nodeType, propertyID string, value any) error
}

func (c *CreateNode) Apply(g *graph.Graph) ([]Event, error) {
	if c.created == nil {
		n := graph.NewNode(c.TypeID, c.Name)
		for k, v := range c.Properties {
			n.Properties[k] = v
		}
		c.created = n
	}
	if err := g.AddNode(c.created, c.ParentID); err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}
	return []Event{{
		Type: EventNodeCreated,
		Data: map[string]any{
			"node_id":   c.created.ID.String(),
			"parent_id": idOrNull(c.ParentID),
			"type_id":   c.TypeID,
			"name":      c.Name,
		},
	}}, nil
}

func (c *CreateNode) Revert(g *graph.Graph) error {
	if c.created == nil {
		return fmt.Errorf("revert create: command was never applied")
	}
	if _, err := g.RemoveSubtree(c.created.ID); err != nil {
		return fmt.Errorf("revert create: %w", err)
	}
	return nil
}

// NodeID returns the created node's ID after Apply, for callers seeding
// projects.
func (c *CreateNode) NodeID() uuid.UUID {
	if c.created == nil {
		return uuid.Nil
	}
	return c.created.ID
}

// DeleteNode removes a node and its entire subtree. Apply captures the
// removed subtree, its position under the old parent, and every severed
// blocking edge and inbound link, so Revert restores the graph exactly.
type DeleteNode struct {
	NodeID uuid.UUID

	removed *graph.Subtree
}

func (c *DeleteNode) Type() string { return "DeleteNode" }

func (c *DeleteNode) Validate(g *graph.Graph, _ schema.Provider) error {
	if _, ok := g.Node(c.NodeID); !ok {
		return invalidf("node %s not found", c.NodeID)
	}
	return nil
}

func (c *DeleteNode) Apply(g *graph.Graph) ([]Event, error) {
	sub, err := g.RemoveSubtree(c.NodeID)
	if err != nil {
		return nil, fmt.Errorf("delete node: %w", err)
	}
	c.removed = sub
	return []Event{{
		Type: EventNodeDeleted,
		Data: map[string]any{
			"node_id":       c.NodeID.String(),
			"parent_id":     idOrNull(sub.ParentID),
			"removed_count": len(sub.Nodes),
		},
	}}, nil
}

func (c *DeleteNode) Revert(g *graph.Graph) error {
	if c.removed == nil {
		return fmt.Errorf("revert delete: command was never applied")
	}
	if err := g.Restore(c.removed); err != nil {
		return fmt.Errorf("revert delete: %w", err)
	}
	c.removed = nil
	return nil
}

// MoveNode reparents a node. Rejected when it would create a cycle, when
// the target parent is orphaned, or when the schema forbids the pairing.
type MoveNode struct {
	NodeID      uuid.UUID
	NewParentID uuid.UUID

	oldParentID uuid.UUID
	oldPosition int
	applied     bool
}

func (c *MoveNode) Type() string { return "MoveNode" }

func (c *MoveNode) Validate(g *graph.Graph, s schema.Provider) error {
	n, ok := g.Node(c.NodeID)
	if !ok {
		return invalidf("node %s not found", c.NodeID)
	}
	if c.NewParentID == uuid.Nil {
		return nil
	}
	parent, ok := g.Node(c.NewParentID)
	if !ok {
		return invalidf("new parent %s not found", c.NewParentID)
	}
	if parent.Orphaned {
		return invalidf("node %s is orphaned and cannot take children", c.NewParentID)
	}
	if c.NewParentID == c.NodeID || g.IsAncestor(c.NodeID, c.NewParentID) {
		return invalidf("moving %s under %s would create a cycle", c.NodeID, c.NewParentID)
	}
	if !s.IsAllowedChild(parent.TypeID, n.TypeID) {
		return invalidf("type %q is not an allowed child of %q", n.TypeID, parent.TypeID)
	}
	return nil
}

func (c *MoveNode) Apply(g *graph.Graph) ([]Event, error) {
	oldParent, oldPos, err := g.Reparent(c.NodeID, c.NewParentID)
	if err != nil {
		return nil, fmt.Errorf("move node: %w", err)
	}
	c.oldParentID = oldParent
	c.oldPosition = oldPos
	c.applied = true
	return []Event{
		{
			Type: EventNodeUnlinked,
			Data: map[string]any{
				"node_id":   c.NodeID.String(),
				"parent_id": idOrNull(oldParent),
				"relation":  "child",
			},
		},
		{
			Type: EventNodeLinked,
			Data: map[string]any{
				"node_id":   c.NodeID.String(),
				"parent_id": idOrNull(c.NewParentID),
				"relation":  "child",
			},
		},
	}, nil
}

func (c *MoveNode) Revert(g *graph.Graph) error {
	if !c.applied {
		return fmt.Errorf("revert move: command was never applied")
	}
	if err := g.ReparentAt(c.NodeID, c.oldParentID, c.oldPosition); err != nil {
		return fmt.Errorf("revert move: %w", err)
	}
	return nil
}
