package command

import (
	"encoding/json"
	"errors"
	"testing"

	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"

	"github.com/google/uuid"
)

// fakeSchema allows everything except what the test forbids.
type fakeSchema struct {
	types     map[string]bool
	forbidden map[[2]string]bool // parent type -> child type pairs to reject
}

func newFakeSchema(types ...string) *fakeSchema {
	m := map[string]bool{}
	for _, t := range types {
		m[t] = true
	}
	return &fakeSchema{types: m, forbidden: map[[2]string]bool{}}
}

func (f *fakeSchema) HasType(t string) bool { return f.types[t] }
func (f *fakeSchema) IsAllowedChild(parent, child string) bool {
	if !f.types[parent] || !f.types[child] {
		return false
	}
	return !f.forbidden[[2]string{parent, child}]
}
func (f *fakeSchema) PropertyType(nodeType, propertyID string) (schema.PropertyType, bool) {
	if !f.types[nodeType] {
		return "", false
	}
	return schema.TypeText, true
}

func mustApply(t *testing.T, g *graph.Graph, s schema.Provider, c Command) []Event {
	t.Helper()
	if err := c.Validate(g, s); err != nil {
		t.Fatalf("Validate(%s): %v", c.Type(), err)
	}
	events, err := c.Apply(g)
	if err != nil {
		t.Fatalf("Apply(%s): %v", c.Type(), err)
	}
	return events
}

func seedNode(t *testing.T, g *graph.Graph, typeID, name string, parent uuid.UUID) *graph.Node {
	t.Helper()
	n := graph.NewNode(typeID, name)
	if err := g.AddNode(n, parent); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return n
}

func TestCreateNodeInverseLaw(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("project", "task")
	root := seedNode(t, g, "project", "P", uuid.Nil)
	before := g.Clone()

	c := &CreateNode{TypeID: "task", Name: "Buy bolts", ParentID: root.ID}
	events := mustApply(t, g, s, c)
	if len(events) != 1 || events[0].Type != EventNodeCreated {
		t.Fatalf("events = %+v", events)
	}
	if g.Len() != 2 {
		t.Fatalf("node count = %d, want 2", g.Len())
	}

	if err := c.Revert(g); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("undo(execute(C, G)) != G")
	}

	// Redo restores the identical node ID.
	firstID := c.NodeID()
	if _, err := c.Apply(g); err != nil {
		t.Fatalf("re-Apply: %v", err)
	}
	if c.NodeID() != firstID {
		t.Fatalf("redo changed node identity: %s vs %s", c.NodeID(), firstID)
	}
}

func TestCreateNodeValidation(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("project", "task")
	root := seedNode(t, g, "project", "P", uuid.Nil)
	s.forbidden[[2]string{"project", "task"}] = true

	cases := []struct {
		name string
		cmd  *CreateNode
	}{
		{"unknown type", &CreateNode{TypeID: "widget", Name: "W"}},
		{"missing parent", &CreateNode{TypeID: "task", Name: "T", ParentID: uuid.New()}},
		{"schema forbids pairing", &CreateNode{TypeID: "task", Name: "T", ParentID: root.ID}},
	}
	for _, tc := range cases {
		err := tc.cmd.Validate(g, s)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: err = %v, want ValidationError", tc.name, err)
		}
	}
	if g.Len() != 1 {
		t.Fatalf("graph mutated by validation")
	}
}

func TestCreateUnderOrphanedParentRejected(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("project", "task")
	root := seedNode(t, g, "project", "P", uuid.Nil)
	root.Orphaned = true

	err := (&CreateNode{TypeID: "task", Name: "T", ParentID: root.ID}).Validate(g, s)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestDeleteNodeRestoresSubtreeExactly(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("project", "phase", "task")
	root := seedNode(t, g, "project", "P", uuid.Nil)
	phase := seedNode(t, g, "phase", "Engine", root.ID)
	t1 := seedNode(t, g, "task", "Pull motor", phase.ID)
	seedNode(t, g, "task", "Hone cylinders", phase.ID)
	t1.Properties["status"] = "open"
	before := g.Clone()

	c := &DeleteNode{NodeID: phase.ID}
	events := mustApply(t, g, s, c)
	if events[0].Data["removed_count"] != 3 {
		t.Fatalf("removed_count = %v, want 3", events[0].Data["removed_count"])
	}
	if g.Len() != 1 {
		t.Fatalf("node count = %d, want 1", g.Len())
	}

	if err := c.Revert(g); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("delete undo did not restore IDs, properties and ordering")
	}
}

func TestMoveNodeCycleLeavesGraphUntouched(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("phase")
	a := seedNode(t, g, "phase", "A", uuid.Nil)
	b := seedNode(t, g, "phase", "B", a.ID)
	c := seedNode(t, g, "phase", "C", b.ID)
	before := g.Clone()

	cmd := &MoveNode{NodeID: a.ID, NewParentID: c.ID}
	err := cmd.Validate(g, s)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("graph changed by rejected move")
	}
}

func TestMoveNodeInverseRestoresPosition(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("project", "phase")
	root := seedNode(t, g, "project", "P", uuid.Nil)
	seedNode(t, g, "phase", "First", root.ID)
	mover := seedNode(t, g, "phase", "Second", root.ID)
	seedNode(t, g, "phase", "Third", root.ID)
	other := seedNode(t, g, "project", "Q", uuid.Nil)
	before := g.Clone()

	c := &MoveNode{NodeID: mover.ID, NewParentID: other.ID}
	events := mustApply(t, g, s, c)
	if len(events) != 2 || events[0].Type != EventNodeUnlinked || events[1].Type != EventNodeLinked {
		t.Fatalf("events = %+v", events)
	}

	if err := c.Revert(g); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("move undo did not restore middle position")
	}
}

func TestMoveOntoOrphanRejected(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("phase")
	a := seedNode(t, g, "phase", "A", uuid.Nil)
	b := seedNode(t, g, "phase", "B", uuid.Nil)
	b.Orphaned = true

	err := (&MoveNode{NodeID: a.ID, NewParentID: b.ID}).Validate(g, s)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestUpdatePropertyInverse(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("task")
	n := seedNode(t, g, "task", "T", uuid.Nil)
	n.Properties["status"] = "open"
	before := g.Clone()

	c := &UpdateProperty{NodeID: n.ID, PropertyID: "status", Value: "done"}
	events := mustApply(t, g, s, c)
	if events[0].Type != EventPropertyChanged {
		t.Fatalf("event = %s", events[0].Type)
	}
	if events[0].Data["old_value"] != "open" || events[0].Data["new_value"] != "done" {
		t.Fatalf("old/new = %v/%v", events[0].Data["old_value"], events[0].Data["new_value"])
	}

	if err := c.Revert(g); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("property undo did not restore old value")
	}
}

func TestUpdatePropertyDeleteAndUndo(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("task")
	n := seedNode(t, g, "task", "T", uuid.Nil)
	n.Properties["notes"] = "check torque"
	before := g.Clone()

	c := &UpdateProperty{NodeID: n.ID, PropertyID: "notes", Value: nil}
	events := mustApply(t, g, s, c)
	if events[0].Type != EventPropertyDeleted {
		t.Fatalf("event = %s", events[0].Type)
	}
	if _, ok := n.Properties["notes"]; ok {
		t.Fatalf("property not deleted")
	}
	if err := c.Revert(g); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("deleted property not restored")
	}
}

func TestLinkUnlinkInverse(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("task")
	a := seedNode(t, g, "task", "A", uuid.Nil)
	b := seedNode(t, g, "task", "B", uuid.Nil)
	c := seedNode(t, g, "task", "C", uuid.Nil)

	mustApply(t, g, s, &LinkNode{FromID: a.ID, ToID: b.ID})
	mustApply(t, g, s, &LinkNode{FromID: a.ID, ToID: c.ID})
	before := g.Clone()

	// Unlink the first reference; undo must restore its position.
	u := &UnlinkNode{FromID: a.ID, ToID: b.ID}
	mustApply(t, g, s, u)
	if len(a.Links) != 1 || a.Links[0] != c.ID {
		t.Fatalf("links after unlink = %v", a.Links)
	}
	if err := u.Revert(g); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("unlink undo did not restore link ordering")
	}

	// Duplicate link rejected.
	err := (&LinkNode{FromID: a.ID, ToID: b.ID}).Validate(g, s)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("duplicate link err = %v, want ValidationError", err)
	}
}

func TestUpdateBlockingCycleRejectedEagerly(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("task")
	a := seedNode(t, g, "task", "A", uuid.Nil)
	b := seedNode(t, g, "task", "B", uuid.Nil)
	c := seedNode(t, g, "task", "C", uuid.Nil)

	mustApply(t, g, s, &UpdateBlocking{BlockedID: a.ID, BlockingID: b.ID})
	mustApply(t, g, s, &UpdateBlocking{BlockedID: b.ID, BlockingID: c.ID})

	err := (&UpdateBlocking{BlockedID: c.ID, BlockingID: a.ID}).Validate(g, s)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestUpdateBlockingReplaceAndUndo(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("task")
	a := seedNode(t, g, "task", "A", uuid.Nil)
	b := seedNode(t, g, "task", "B", uuid.Nil)
	c := seedNode(t, g, "task", "C", uuid.Nil)

	mustApply(t, g, s, &UpdateBlocking{BlockedID: a.ID, BlockingID: b.ID})
	before := g.Clone()

	replace := &UpdateBlocking{BlockedID: a.ID, BlockingID: c.ID}
	mustApply(t, g, s, replace)
	if blocker, _ := g.Blocking(a.ID); blocker != c.ID {
		t.Fatalf("blocker = %s, want %s", blocker, c.ID)
	}
	if err := replace.Revert(g); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("blocking undo did not restore previous blocker")
	}

	clear := &UpdateBlocking{BlockedID: a.ID}
	events := mustApply(t, g, s, clear)
	if events[0].Type != EventNodeUnlinked {
		t.Fatalf("clear event = %s", events[0].Type)
	}
	if err := clear.Revert(g); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("clear undo did not restore edge")
	}
}

func TestApplyKitClonesChildrenWithUndoRedo(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("phase", "task")
	kit := seedNode(t, g, "phase", "Brake kit", uuid.Nil)
	pads := seedNode(t, g, "task", "Fit pads", kit.ID)
	pads.Properties["status"] = "todo"
	seedNode(t, g, "task", "Bleed lines", kit.ID)
	target := seedNode(t, g, "phase", "Front axle", uuid.Nil)
	before := g.Clone()

	c := &ApplyKit{TargetID: target.ID, KitRootID: kit.ID}
	events := mustApply(t, g, s, c)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	for _, e := range events {
		if e.Type != EventNodeCreated {
			t.Fatalf("event type = %s", e.Type)
		}
	}

	if len(target.Children) != 2 {
		t.Fatalf("target children = %d, want 2", len(target.Children))
	}
	firstIDs := append([]uuid.UUID(nil), target.Children...)
	clone, ok := g.Node(target.Children[0])
	if !ok {
		t.Fatalf("clone missing from graph")
	}
	if clone.ID == pads.ID {
		t.Fatalf("clone reused the original's ID")
	}
	if clone.Name != "Fit pads" || clone.Properties["status"] != "todo" {
		t.Fatalf("clone = %q %v", clone.Name, clone.Properties)
	}
	clone.Properties["status"] = "done"
	if pads.Properties["status"] != "todo" {
		t.Fatalf("clone shares the original's property map")
	}
	clone.Properties["status"] = "todo"

	if err := c.Revert(g); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !graph.Equal(before, g) {
		t.Fatalf("revert did not restore the graph")
	}

	if _, err := c.Apply(g); err != nil {
		t.Fatalf("re-Apply: %v", err)
	}
	for i, id := range target.Children {
		if id != firstIDs[i] {
			t.Fatalf("redo changed clone IDs: %v vs %v", target.Children, firstIDs)
		}
	}
}

func TestApplyKitValidation(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("phase", "task", "project")
	kit := seedNode(t, g, "phase", "Brake kit", uuid.Nil)
	seedNode(t, g, "task", "Fit pads", kit.ID)
	empty := seedNode(t, g, "phase", "Empty kit", uuid.Nil)
	target := seedNode(t, g, "phase", "Front axle", uuid.Nil)

	c := &ApplyKit{TargetID: target.ID, KitRootID: uuid.New()}
	if err := c.Validate(g, s); err == nil {
		t.Fatalf("unknown kit accepted")
	}
	c = &ApplyKit{TargetID: target.ID, KitRootID: empty.ID}
	if err := c.Validate(g, s); err == nil {
		t.Fatalf("empty kit accepted")
	}

	s.forbidden[[2]string{"phase", "task"}] = true
	c = &ApplyKit{TargetID: target.ID, KitRootID: kit.ID}
	if err := c.Validate(g, s); err == nil {
		t.Fatalf("forbidden child pairing accepted")
	}
}

func TestOrphanedNodePropertyRules(t *testing.T) {
	g := graph.New()
	s := newFakeSchema("task")
	n := seedNode(t, g, "task", "Stray", uuid.Nil)
	n.Properties["status"] = "todo"
	n.Orphaned = true

	set := &UpdateProperty{NodeID: n.ID, PropertyID: "status", Value: "done"}
	if err := set.Validate(g, s); err == nil {
		t.Fatalf("property write on orphaned node accepted")
	}

	del := &UpdateProperty{NodeID: n.ID, PropertyID: "status"}
	mustApply(t, g, s, del)
	if _, ok := n.Properties["status"]; ok {
		t.Fatalf("property delete on orphaned node did not apply")
	}
}

func TestFromRequest(t *testing.T) {
	id := uuid.New().String()
	cases := []struct {
		commandType string
		data        string
		wantErr     bool
	}{
		{"CreateNode", `{"type_id":"task","name":"T"}`, false},
		{"CreateNode", `{"type_id":"task","parent_id":"not-a-uuid"}`, true},
		{"DeleteNode", `{"node_id":"` + id + `"}`, false},
		{"DeleteNode", `{}`, true},
		{"UpdateProperty", `{"node_id":"` + id + `","property_id":"status","value":"done"}`, false},
		{"UpdateProperty", `{"node_id":"` + id + `"}`, true},
		{"MoveNode", `{"node_id":"` + id + `","new_parent_id":""}`, false},
		{"LinkNode", `{"from_id":"` + id + `","to_id":"` + id + `"}`, false},
		{"UpdateBlockingRelationship", `{"blocked_node_id":"` + id + `"}`, false},
		{"ApplyKit", `{"target_id":"` + id + `","kit_root_id":"` + id + `"}`, false},
		{"ApplyKit", `{"target_id":"` + id + `"}`, true},
		{"RenameGraph", `{}`, true},
	}
	for _, tc := range cases {
		_, err := FromRequest(tc.commandType, json.RawMessage(tc.data))
		if (err != nil) != tc.wantErr {
			t.Errorf("FromRequest(%s, %s) err = %v, wantErr = %v", tc.commandType, tc.data, err, tc.wantErr)
		}
		if err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("FromRequest(%s) error type = %T, want ValidationError", tc.commandType, err)
			}
		}
	}
}
