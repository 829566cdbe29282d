package command

import (
	"fmt"

	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"

	"github.com/google/uuid"
)

// UpdateProperty sets a property value on a node, or deletes the property
// when Value is nil. The previous value is captured at Apply time.
type UpdateProperty struct {
	NodeID     uuid.UUID
	PropertyID string
	Value      any

	oldValue any
	hadValue bool
	applied  bool
}

func (c *UpdateProperty) Type() string { return "UpdateProperty" }

func (c *UpdateProperty) Validate(g *graph.Graph, s schema.Provider) error {
	n, ok := g.Node(c.NodeID)
	if !ok {
		return invalidf("node %s not found", c.NodeID)
	}
	if n.Orphaned {
		// The node's type left the schema; there is nothing to validate
		// against, and deletes are always safe.
		if c.Value == nil {
			return nil
		}
		return invalidf("node %s is orphaned; its properties cannot be changed", c.NodeID)
	}
	if _, ok := s.PropertyType(n.TypeID, c.PropertyID); !ok {
		return invalidf("node type %q has no property %q", n.TypeID, c.PropertyID)
	}
	if c.Value == nil {
		return nil
	}
	if v, ok := s.(valueValidator); ok {
		if err := v.ValidateValue(n.TypeID, c.PropertyID, c.Value); err != nil {
			return invalidf("%v", err)
		}
	}
	return nil
}

func (c *UpdateProperty) Apply(g *graph.Graph) ([]Event, error) {
	old, had, err := g.SetProperty(c.NodeID, c.PropertyID, c.Value)
	if err != nil {
		return nil, fmt.Errorf("update property: %w", err)
	}
	c.oldValue = old
	c.hadValue = had
	c.applied = true

	if c.Value == nil {
		return []Event{{
			Type: EventPropertyDeleted,
			Data: map[string]any{
				"node_id":     c.NodeID.String(),
				"property_id": c.PropertyID,
				"old_value":   old,
			},
		}}, nil
	}
	return []Event{{
		Type: EventPropertyChanged,
		Data: map[string]any{
			"node_id":     c.NodeID.String(),
			"property_id": c.PropertyID,
			"old_value":   old,
			"new_value":   c.Value,
		},
	}}, nil
}

func (c *UpdateProperty) Revert(g *graph.Graph) error {
	if !c.applied {
		return fmt.Errorf("revert property update: command was never applied")
	}
	restore := c.oldValue
	if !c.hadValue {
		restore = nil
	}
	if _, _, err := g.SetProperty(c.NodeID, c.PropertyID, restore); err != nil {
		return fmt.Errorf("revert property update: %w", err)
	}
	return nil
}
