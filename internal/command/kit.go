package command

import (
	"fmt"

	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"

	"github.com/google/uuid"
)

// ApplyKit clones every direct child of a kit node under a target node.
// Clones get fresh IDs and copied properties; the kit itself is left
// untouched. The clone set is built on first Apply and kept so redo
// restores identical IDs, the same way CreateNode does.
type ApplyKit struct {
	TargetID  uuid.UUID
	KitRootID uuid.UUID

	clones  []*graph.Node
	applied bool
}

func (c *ApplyKit) Type() string { return "ApplyKit" }

func (c *ApplyKit) Validate(g *graph.Graph, s schema.Provider) error {
	target, ok := g.Node(c.TargetID)
	if !ok {
		return invalidf("node %s not found", c.TargetID)
	}
	if target.Orphaned {
		return invalidf("node %s is orphaned and cannot take children", c.TargetID)
	}
	kit, ok := g.Node(c.KitRootID)
	if !ok {
		return invalidf("node %s not found", c.KitRootID)
	}
	if len(kit.Children) == 0 {
		return invalidf("kit %s has no children to apply", c.KitRootID)
	}
	for _, childID := range kit.Children {
		child, ok := g.Node(childID)
		if !ok {
			continue
		}
		if !s.IsAllowedChild(target.TypeID, child.TypeID) {
			return invalidf("type %q is not an allowed child of %q", child.TypeID, target.TypeID)
		}
	}
	return nil
}

func (c *ApplyKit) Apply(g *graph.Graph) ([]Event, error) {
	if _, ok := g.Node(c.TargetID); !ok {
		return nil, fmt.Errorf("apply kit: %w: %s", graph.ErrNotFound, c.TargetID)
	}
	kit, ok := g.Node(c.KitRootID)
	if !ok {
		return nil, fmt.Errorf("apply kit: %w: %s", graph.ErrNotFound, c.KitRootID)
	}
	if c.clones == nil {
		// Snapshot the child list first: when the kit is applied onto
		// itself the clones land in the slice being walked.
		children := append([]uuid.UUID(nil), kit.Children...)
		for _, childID := range children {
			child, ok := g.Node(childID)
			if !ok {
				continue
			}
			clone := graph.NewNode(child.TypeID, child.Name)
			for k, v := range child.Properties {
				clone.Properties[k] = v
			}
			c.clones = append(c.clones, clone)
		}
	}

	events := make([]Event, 0, len(c.clones))
	for _, clone := range c.clones {
		if err := g.AddNode(clone, c.TargetID); err != nil {
			return nil, fmt.Errorf("apply kit: %w", err)
		}
		events = append(events, Event{
			Type: EventNodeCreated,
			Data: map[string]any{
				"node_id":   clone.ID.String(),
				"parent_id": c.TargetID.String(),
				"type_id":   clone.TypeID,
				"name":      clone.Name,
			},
		})
	}
	c.applied = true
	return events, nil
}

func (c *ApplyKit) Revert(g *graph.Graph) error {
	if !c.applied {
		return fmt.Errorf("revert kit: command was never applied")
	}
	for i := len(c.clones) - 1; i >= 0; i-- {
		if _, err := g.RemoveSubtree(c.clones[i].ID); err != nil {
			return fmt.Errorf("revert kit: %w", err)
		}
	}
	return nil
}
