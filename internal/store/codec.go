package store

import (
	"encoding/json"
	"fmt"
	"time"

	"blueprint/api/internal/graph"

	"github.com/google/uuid"
)

// FormatVersion is written into every encoded snapshot. Decoding rejects
// anything else.
const FormatVersion = "1.0"

type encodedGraph struct {
	Version  string                 `json:"version"`
	Roots    []uuid.UUID            `json:"roots"`
	Nodes    map[string]encodedNode `json:"nodes"`
	Blocking map[string]uuid.UUID   `json:"blocking,omitempty"`
}

type encodedNode struct {
	ID         uuid.UUID      `json:"id"`
	TypeID     string         `json:"type"`
	Name       string         `json:"name"`
	CreatedAt  time.Time      `json:"created_at"`
	Properties map[string]any `json:"properties,omitempty"`
	Children   []uuid.UUID    `json:"children,omitempty"`
	ParentID   *uuid.UUID     `json:"parent_id,omitempty"`
	Links      []uuid.UUID    `json:"links,omitempty"`
	Orphaned   bool           `json:"orphaned,omitempty"`
}

// EncodeGraph serializes a graph to the versioned JSON snapshot format.
func EncodeGraph(g *graph.Graph) ([]byte, error) {
	enc := encodedGraph{
		Version: FormatVersion,
		Roots:   g.Roots(),
		Nodes:   make(map[string]encodedNode, g.Len()),
	}
	for _, n := range g.Nodes() {
		en := encodedNode{
			ID:         n.ID,
			TypeID:     n.TypeID,
			Name:       n.Name,
			CreatedAt:  n.CreatedAt,
			Properties: n.Properties,
			Children:   n.Children,
			Links:      n.Links,
			Orphaned:   n.Orphaned,
		}
		if n.ParentID != uuid.Nil {
			pid := n.ParentID
			en.ParentID = &pid
		}
		enc.Nodes[n.ID.String()] = en
	}
	edges := g.BlockingEdges()
	if len(edges) > 0 {
		enc.Blocking = make(map[string]uuid.UUID, len(edges))
		for blocked, blocker := range edges {
			enc.Blocking[blocked.String()] = blocker
		}
	}
	return json.Marshal(enc)
}

// DecodeGraph parses a snapshot back into a graph, verifying the format
// version and referential consistency.
func DecodeGraph(data []byte) (*graph.Graph, error) {
	var enc encodedGraph
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if enc.Version != FormatVersion {
		return nil, fmt.Errorf("decode snapshot: unsupported format version %q", enc.Version)
	}

	nodes := make([]*graph.Node, 0, len(enc.Nodes))
	for key, en := range enc.Nodes {
		if en.ID == uuid.Nil {
			id, err := uuid.Parse(key)
			if err != nil {
				return nil, fmt.Errorf("decode snapshot: node key %q: %w", key, err)
			}
			en.ID = id
		}
		n := &graph.Node{
			ID:         en.ID,
			TypeID:     en.TypeID,
			Name:       en.Name,
			CreatedAt:  en.CreatedAt,
			Properties: en.Properties,
			Children:   en.Children,
			Links:      en.Links,
			Orphaned:   en.Orphaned,
		}
		if n.Properties == nil {
			n.Properties = map[string]any{}
		}
		if en.ParentID != nil {
			n.ParentID = *en.ParentID
		}
		nodes = append(nodes, n)
	}

	blocking := make(map[uuid.UUID]uuid.UUID, len(enc.Blocking))
	for blockedKey, blocker := range enc.Blocking {
		blocked, err := uuid.Parse(blockedKey)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: blocking key %q: %w", blockedKey, err)
		}
		blocking[blocked] = blocker
	}

	g, err := graph.FromParts(nodes, enc.Roots, blocking)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return g, nil
}
