package command

import (
	"fmt"

	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"

	"github.com/google/uuid"
)

// UpdateBlocking sets or clears the node blocking BlockedID. A node has at
// most one blocker. Blocking cycles are rejected eagerly here, before
// commit, rather than detected lazily by score computation.
type UpdateBlocking struct {
	BlockedID  uuid.UUID
	BlockingID uuid.UUID // uuid.Nil clears the edge

	prevBlockingID uuid.UUID
	hadPrev        bool
	applied        bool
}

func (c *UpdateBlocking) Type() string { return "UpdateBlockingRelationship" }

func (c *UpdateBlocking) Validate(g *graph.Graph, _ schema.Provider) error {
	if _, ok := g.Node(c.BlockedID); !ok {
		return invalidf("node %s not found", c.BlockedID)
	}
	if c.BlockingID == uuid.Nil {
		return nil
	}
	if _, ok := g.Node(c.BlockingID); !ok {
		return invalidf("node %s not found", c.BlockingID)
	}
	if g.WouldBlockCycle(c.BlockedID, c.BlockingID) {
		return invalidf("blocking %s by %s would create a blocking cycle", c.BlockedID, c.BlockingID)
	}
	return nil
}

func (c *UpdateBlocking) Apply(g *graph.Graph) ([]Event, error) {
	if _, ok := g.Node(c.BlockedID); !ok {
		return nil, fmt.Errorf("update blocking: %w: %s", graph.ErrNotFound, c.BlockedID)
	}
	c.prevBlockingID, c.hadPrev = g.Blocking(c.BlockedID)
	c.applied = true
	g.SetBlocking(c.BlockedID, c.BlockingID)

	if c.BlockingID == uuid.Nil {
		return []Event{{
			Type: EventNodeUnlinked,
			Data: map[string]any{
				"blocked_node_id":  c.BlockedID.String(),
				"blocking_node_id": idOrNull(c.prevBlockingID),
				"relation":         "blocking",
			},
		}}, nil
	}
	return []Event{{
		Type: EventNodeLinked,
		Data: map[string]any{
			"blocked_node_id":  c.BlockedID.String(),
			"blocking_node_id": c.BlockingID.String(),
			"relation":         "blocking",
		},
	}}, nil
}

func (c *UpdateBlocking) Revert(g *graph.Graph) error {
	if !c.applied {
		return fmt.Errorf("revert blocking update: command was never applied")
	}
	if c.hadPrev {
		g.SetBlocking(c.BlockedID, c.prevBlockingID)
	} else {
		g.SetBlocking(c.BlockedID, uuid.Nil)
	}
	return nil
}
