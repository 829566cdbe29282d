// Package graph holds the in-memory project tree: a table of typed nodes,
// an ordered root list, and the blocking-relationship edge map. A Graph is
// owned by exactly one session and is mutated only through commands.
package graph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("node not found")
	ErrInvalidParent = errors.New("invalid parent")
	ErrCycle         = errors.New("cycle detected")
)

type Graph struct {
	nodes map[uuid.UUID]*Node
	roots []uuid.UUID

	// blocking maps a blocked node to the single node blocking it.
	blocking map[uuid.UUID]uuid.UUID
}

func New() *Graph {
	return &Graph{
		nodes:    map[uuid.UUID]*Node{},
		blocking: map[uuid.UUID]uuid.UUID{},
	}
}

// Node returns the node with the given ID.
func (g *Graph) Node(id uuid.UUID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Roots returns the ordered root ID list.
func (g *Graph) Roots() []uuid.UUID {
	return append([]uuid.UUID(nil), g.roots...)
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns every node in the graph, in no particular order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// FromParts assembles a graph from decoded persistence state. It verifies
// referential consistency: every root, parent, child, link, and blocking
// endpoint must name a node in the set.
func FromParts(nodes []*Node, roots []uuid.UUID, blocking map[uuid.UUID]uuid.UUID) (*Graph, error) {
	g := New()
	for _, n := range nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node %s", n.ID)
		}
		g.nodes[n.ID] = n
	}
	for _, n := range nodes {
		if n.ParentID != uuid.Nil {
			if _, ok := g.nodes[n.ParentID]; !ok {
				return nil, fmt.Errorf("node %s: parent %s: %w", n.ID, n.ParentID, ErrNotFound)
			}
		}
		for _, child := range n.Children {
			if _, ok := g.nodes[child]; !ok {
				return nil, fmt.Errorf("node %s: child %s: %w", n.ID, child, ErrNotFound)
			}
		}
		for _, link := range n.Links {
			if _, ok := g.nodes[link]; !ok {
				return nil, fmt.Errorf("node %s: link %s: %w", n.ID, link, ErrNotFound)
			}
		}
	}
	for _, id := range roots {
		if _, ok := g.nodes[id]; !ok {
			return nil, fmt.Errorf("root %s: %w", id, ErrNotFound)
		}
	}
	g.roots = append(g.roots, roots...)
	for blocked, blocker := range blocking {
		if _, ok := g.nodes[blocked]; !ok {
			return nil, fmt.Errorf("blocked node %s: %w", blocked, ErrNotFound)
		}
		if _, ok := g.nodes[blocker]; !ok {
			return nil, fmt.Errorf("blocking node %s: %w", blocker, ErrNotFound)
		}
		g.blocking[blocked] = blocker
	}
	return g, nil
}

// AddNode inserts node as the last child of parentID, or as a root when
// parentID is uuid.Nil. The node keeps its own ID; its ParentID is set here.
func (g *Graph) AddNode(n *Node, parentID uuid.UUID) error {
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("node %s already present", n.ID)
	}
	if parentID == uuid.Nil {
		n.ParentID = uuid.Nil
		g.nodes[n.ID] = n
		g.roots = append(g.roots, n.ID)
		return nil
	}
	parent, ok := g.nodes[parentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidParent, parentID)
	}
	n.ParentID = parentID
	g.nodes[n.ID] = n
	parent.Children = append(parent.Children, n.ID)
	return nil
}

// Subtree is the captured state of a removed subtree, sufficient to restore
// every node, its position under the old parent, and any blocking edges or
// inbound links that were severed by the removal.
type Subtree struct {
	RootID   uuid.UUID
	ParentID uuid.UUID
	Position int
	Nodes    []*Node

	// Blocking edges (blocked -> blocking) that touched the subtree.
	Blocking map[uuid.UUID]uuid.UUID

	// Links from surviving nodes into the subtree, with their index in the
	// linking node's Links slice.
	InboundLinks []InboundLink
}

type InboundLink struct {
	FromID   uuid.UUID
	ToID     uuid.UUID
	Position int
}

// RemoveSubtree detaches id and all its descendants from the graph and
// returns the captured subtree. Blocking edges and inbound links touching
// removed nodes are severed and captured as well.
func (g *Graph) RemoveSubtree(id uuid.UUID) (*Subtree, error) {
	root, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	removed := map[uuid.UUID]bool{}
	var order []*Node
	var collect func(n *Node)
	collect = func(n *Node) {
		removed[n.ID] = true
		order = append(order, n)
		for _, childID := range n.Children {
			if child, ok := g.nodes[childID]; ok {
				collect(child)
			}
		}
	}
	collect(root)

	sub := &Subtree{
		RootID:   id,
		ParentID: root.ParentID,
		Position: g.detach(root),
		Nodes:    order,
		Blocking: map[uuid.UUID]uuid.UUID{},
	}

	for blocked, blocking := range g.blocking {
		if removed[blocked] || removed[blocking] {
			sub.Blocking[blocked] = blocking
			delete(g.blocking, blocked)
		}
	}

	for _, n := range g.nodes {
		if removed[n.ID] {
			continue
		}
		for i := len(n.Links) - 1; i >= 0; i-- {
			if removed[n.Links[i]] {
				sub.InboundLinks = append(sub.InboundLinks, InboundLink{
					FromID:   n.ID,
					ToID:     n.Links[i],
					Position: i,
				})
				n.Links = append(n.Links[:i], n.Links[i+1:]...)
			}
		}
	}

	for _, n := range order {
		delete(g.nodes, n.ID)
	}
	return sub, nil
}

// Restore reattaches a subtree removed by RemoveSubtree, restoring node
// identity, child ordering, blocking edges, and inbound links.
func (g *Graph) Restore(sub *Subtree) error {
	for _, n := range sub.Nodes {
		if _, exists := g.nodes[n.ID]; exists {
			return fmt.Errorf("restore: node %s already present", n.ID)
		}
	}
	for _, n := range sub.Nodes {
		g.nodes[n.ID] = n
	}
	if err := g.attachAt(sub.RootID, sub.ParentID, sub.Position); err != nil {
		return err
	}
	for blocked, blocking := range sub.Blocking {
		g.blocking[blocked] = blocking
	}
	// Inbound links were captured back-to-front per node; reinsert in
	// reverse so positions land where they were.
	for i := len(sub.InboundLinks) - 1; i >= 0; i-- {
		link := sub.InboundLinks[i]
		from, ok := g.nodes[link.FromID]
		if !ok {
			return fmt.Errorf("restore: linking node %s missing", link.FromID)
		}
		if link.Position > len(from.Links) {
			link.Position = len(from.Links)
		}
		from.Links = append(from.Links[:link.Position], append([]uuid.UUID{link.ToID}, from.Links[link.Position:]...)...)
	}
	return nil
}

// Reparent moves id under newParentID (uuid.Nil makes it a root), appending
// it to the new parent's children. It returns the old parent and position
// for undo capture. Fails with ErrCycle when newParentID is id itself or a
// descendant of id.
func (g *Graph) Reparent(id, newParentID uuid.UUID) (oldParent uuid.UUID, oldPos int, err error) {
	n, ok := g.nodes[id]
	if !ok {
		return uuid.Nil, 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if newParentID != uuid.Nil {
		if _, ok := g.nodes[newParentID]; !ok {
			return uuid.Nil, 0, fmt.Errorf("%w: %s", ErrInvalidParent, newParentID)
		}
		if newParentID == id || g.IsAncestor(id, newParentID) {
			return uuid.Nil, 0, fmt.Errorf("%w: %s is within subtree of %s", ErrCycle, newParentID, id)
		}
	}
	oldParent = n.ParentID
	oldPos = g.detach(n)
	if err := g.attachAt(id, newParentID, -1); err != nil {
		return uuid.Nil, 0, err
	}
	return oldParent, oldPos, nil
}

// ReparentAt is Reparent with an explicit insertion position, used when
// undoing a move to restore the original child ordering.
func (g *Graph) ReparentAt(id, parentID uuid.UUID, pos int) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	g.detach(n)
	return g.attachAt(id, parentID, pos)
}

// SetProperty stores value under propertyID and returns the previous value
// and whether one existed. A nil value deletes the property. No schema
// validation happens here; that is the command's job.
func (g *Graph) SetProperty(id uuid.UUID, propertyID string, value any) (old any, had bool, err error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	old, had = n.Properties[propertyID]
	if value == nil {
		delete(n.Properties, propertyID)
	} else {
		n.Properties[propertyID] = value
	}
	return old, had, nil
}

// IsAncestor reports whether ancestorID lies on the parent chain of id.
func (g *Graph) IsAncestor(ancestorID, id uuid.UUID) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	for n.ParentID != uuid.Nil {
		if n.ParentID == ancestorID {
			return true
		}
		parent, ok := g.nodes[n.ParentID]
		if !ok {
			return false
		}
		n = parent
	}
	return false
}

// Blocking returns the node blocking id, if any.
func (g *Graph) Blocking(id uuid.UUID) (uuid.UUID, bool) {
	b, ok := g.blocking[id]
	return b, ok
}

// BlockingEdges returns a copy of the blocking edge map (blocked -> blocking).
func (g *Graph) BlockingEdges() map[uuid.UUID]uuid.UUID {
	out := make(map[uuid.UUID]uuid.UUID, len(g.blocking))
	for k, v := range g.blocking {
		out[k] = v
	}
	return out
}

// SetBlocking records blockingID as the blocker of blockedID. blockingID ==
// uuid.Nil clears the edge. Cycle validation happens in the command.
func (g *Graph) SetBlocking(blockedID, blockingID uuid.UUID) {
	if blockingID == uuid.Nil {
		delete(g.blocking, blockedID)
		return
	}
	g.blocking[blockedID] = blockingID
}

// WouldBlockCycle reports whether adding blocked -> blocking would create a
// cycle in the blocking chain. Each node has at most one blocker, so this is
// a walk along the chain starting at the proposed blocker.
func (g *Graph) WouldBlockCycle(blockedID, blockingID uuid.UUID) bool {
	if blockedID == blockingID {
		return true
	}
	seen := map[uuid.UUID]bool{}
	cur := blockingID
	for {
		next, ok := g.blocking[cur]
		if !ok {
			return false
		}
		if next == blockedID {
			return true
		}
		if seen[next] {
			return false
		}
		seen[next] = true
		cur = next
	}
}

// FlagOrphans marks every node whose type is absent from the given type set
// as orphaned and clears the flag on the rest. It returns the IDs newly
// flagged. Existing children are never detached by a schema change.
func (g *Graph) FlagOrphans(hasType func(string) bool) []uuid.UUID {
	var flagged []uuid.UUID
	for _, n := range g.nodes {
		orphaned := !hasType(n.TypeID)
		if orphaned && !n.Orphaned {
			flagged = append(flagged, n.ID)
		}
		n.Orphaned = orphaned
	}
	return flagged
}

// Clone returns a deep copy of the graph, used for snapshot comparisons.
func (g *Graph) Clone() *Graph {
	c := New()
	for id, n := range g.nodes {
		c.nodes[id] = n.Clone()
	}
	c.roots = append([]uuid.UUID(nil), g.roots...)
	for k, v := range g.blocking {
		c.blocking[k] = v
	}
	return c
}

// detach removes n from its parent's child list (or the root list) and
// returns the position it occupied.
func (g *Graph) detach(n *Node) int {
	list := &g.roots
	if n.ParentID != uuid.Nil {
		if parent, ok := g.nodes[n.ParentID]; ok {
			list = &parent.Children
		}
	}
	for i, id := range *list {
		if id == n.ID {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return i
		}
	}
	return -1
}

// attachAt inserts id into parentID's child list (or the root list) at pos;
// pos < 0 or past the end appends.
func (g *Graph) attachAt(id, parentID uuid.UUID, pos int) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	list := &g.roots
	if parentID != uuid.Nil {
		parent, ok := g.nodes[parentID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidParent, parentID)
		}
		list = &parent.Children
	}
	n.ParentID = parentID
	if pos < 0 || pos >= len(*list) {
		*list = append(*list, id)
		return nil
	}
	*list = append((*list)[:pos], append([]uuid.UUID{id}, (*list)[pos:]...)...)
	return nil
}
