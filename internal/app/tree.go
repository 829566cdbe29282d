package app

import (
	"time"

	"blueprint/api/internal/graph"

	"github.com/google/uuid"
)

// TreeNode is the nested serialization of one node, children inline in
// stored order.
type TreeNode struct {
	ID         string         `json:"id"`
	TypeID     string         `json:"type"`
	Name       string         `json:"name"`
	CreatedAt  time.Time      `json:"created_at"`
	Properties map[string]any `json:"properties"`
	Links      []string       `json:"links,omitempty"`
	BlockedBy  string         `json:"blocked_by,omitempty"`
	Orphaned   bool           `json:"orphaned,omitempty"`
	Children   []TreeNode     `json:"children"`
}

// GraphPayload is the tree view returned by graph endpoints and command
// responses.
type GraphPayload struct {
	Roots     []TreeNode `json:"roots"`
	NodeCount int        `json:"node_count"`
}

func serializeGraph(g *graph.Graph) GraphPayload {
	payload := GraphPayload{
		Roots:     []TreeNode{},
		NodeCount: g.Len(),
	}
	for _, rootID := range g.Roots() {
		if tn, ok := serializeNode(g, rootID); ok {
			payload.Roots = append(payload.Roots, tn)
		}
	}
	return payload
}

func serializeNode(g *graph.Graph, id uuid.UUID) (TreeNode, bool) {
	n, ok := g.Node(id)
	if !ok {
		return TreeNode{}, false
	}
	// Payloads are encoded after the session lock is released, so the
	// property map must be copied, never aliased.
	props := make(map[string]any, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v
	}
	tn := TreeNode{
		ID:         n.ID.String(),
		TypeID:     n.TypeID,
		Name:       n.Name,
		CreatedAt:  n.CreatedAt,
		Properties: props,
		Orphaned:   n.Orphaned,
		Children:   []TreeNode{},
	}
	for _, link := range n.Links {
		tn.Links = append(tn.Links, link.String())
	}
	if blocker, blocked := g.Blocking(id); blocked {
		tn.BlockedBy = blocker.String()
	}
	for _, childID := range n.Children {
		if child, ok := serializeNode(g, childID); ok {
			tn.Children = append(tn.Children, child)
		}
	}
	return tn, true
}
