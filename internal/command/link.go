package command

import (
	"fmt"

	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"

	"github.com/google/uuid"
)

// LinkNode adds a non-hierarchical cross-reference from one node to
// another. References are ordered and deduplicated.
type LinkNode struct {
	FromID uuid.UUID
	ToID   uuid.UUID

	applied bool
}

func (c *LinkNode) Type() string { return "LinkNode" }

func (c *LinkNode) Validate(g *graph.Graph, _ schema.Provider) error {
	if c.FromID == c.ToID {
		return invalidf("a node cannot reference itself")
	}
	from, ok := g.Node(c.FromID)
	if !ok {
		return invalidf("node %s not found", c.FromID)
	}
	if _, ok := g.Node(c.ToID); !ok {
		return invalidf("node %s not found", c.ToID)
	}
	for _, id := range from.Links {
		if id == c.ToID {
			return invalidf("%s already references %s", c.FromID, c.ToID)
		}
	}
	return nil
}

func (c *LinkNode) Apply(g *graph.Graph) ([]Event, error) {
	from, ok := g.Node(c.FromID)
	if !ok {
		return nil, fmt.Errorf("link node: %w: %s", graph.ErrNotFound, c.FromID)
	}
	from.Links = append(from.Links, c.ToID)
	c.applied = true
	return []Event{{
		Type: EventNodeLinked,
		Data: map[string]any{
			"from_id":  c.FromID.String(),
			"to_id":    c.ToID.String(),
			"relation": "reference",
		},
	}}, nil
}

func (c *LinkNode) Revert(g *graph.Graph) error {
	if !c.applied {
		return fmt.Errorf("revert link: command was never applied")
	}
	from, ok := g.Node(c.FromID)
	if !ok {
		return fmt.Errorf("revert link: %w: %s", graph.ErrNotFound, c.FromID)
	}
	for i := len(from.Links) - 1; i >= 0; i-- {
		if from.Links[i] == c.ToID {
			from.Links = append(from.Links[:i], from.Links[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("revert link: reference %s -> %s missing", c.FromID, c.ToID)
}

// UnlinkNode removes a cross-reference, capturing its position in the link
// order for exact restoration.
type UnlinkNode struct {
	FromID uuid.UUID
	ToID   uuid.UUID

	position int
	applied  bool
}

func (c *UnlinkNode) Type() string { return "UnlinkNode" }

func (c *UnlinkNode) Validate(g *graph.Graph, _ schema.Provider) error {
	from, ok := g.Node(c.FromID)
	if !ok {
		return invalidf("node %s not found", c.FromID)
	}
	for _, id := range from.Links {
		if id == c.ToID {
			return nil
		}
	}
	return invalidf("%s does not reference %s", c.FromID, c.ToID)
}

func (c *UnlinkNode) Apply(g *graph.Graph) ([]Event, error) {
	from, ok := g.Node(c.FromID)
	if !ok {
		return nil, fmt.Errorf("unlink node: %w: %s", graph.ErrNotFound, c.FromID)
	}
	for i, id := range from.Links {
		if id == c.ToID {
			c.position = i
			c.applied = true
			from.Links = append(from.Links[:i], from.Links[i+1:]...)
			return []Event{{
				Type: EventNodeUnlinked,
				Data: map[string]any{
					"from_id":  c.FromID.String(),
					"to_id":    c.ToID.String(),
					"relation": "reference",
				},
			}}, nil
		}
	}
	return nil, fmt.Errorf("unlink node: reference %s -> %s missing", c.FromID, c.ToID)
}

func (c *UnlinkNode) Revert(g *graph.Graph) error {
	if !c.applied {
		return fmt.Errorf("revert unlink: command was never applied")
	}
	from, ok := g.Node(c.FromID)
	if !ok {
		return fmt.Errorf("revert unlink: %w: %s", graph.ErrNotFound, c.FromID)
	}
	pos := c.position
	if pos > len(from.Links) {
		pos = len(from.Links)
	}
	from.Links = append(from.Links[:pos], append([]uuid.UUID{c.ToID}, from.Links[pos:]...)...)
	return nil
}
