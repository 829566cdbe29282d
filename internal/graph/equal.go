package graph

import (
	"reflect"

	"github.com/google/uuid"
)

// Equal reports structural equality of two graphs: same node table (IDs,
// types, names, properties, child ordering, parents, links, orphan flags),
// same root ordering, and same blocking edges. CreatedAt participates so an
// undone delete must restore original timestamps.
func Equal(a, b *Graph) bool {
	if a.Len() != b.Len() {
		return false
	}
	if !equalIDSlices(a.roots, b.roots) {
		return false
	}
	if len(a.blocking) != len(b.blocking) {
		return false
	}
	for blocked, blocker := range a.blocking {
		if other, ok := b.blocking[blocked]; !ok || other != blocker {
			return false
		}
	}
	for id, an := range a.nodes {
		bn, ok := b.nodes[id]
		if !ok {
			return false
		}
		if an.TypeID != bn.TypeID || an.Name != bn.Name || an.ParentID != bn.ParentID ||
			an.Orphaned != bn.Orphaned || !an.CreatedAt.Equal(bn.CreatedAt) {
			return false
		}
		if !reflect.DeepEqual(an.Properties, bn.Properties) {
			return false
		}
		if !equalIDSlices(an.Children, bn.Children) || !equalIDSlices(an.Links, bn.Links) {
			return false
		}
	}
	return true
}

func equalIDSlices(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
