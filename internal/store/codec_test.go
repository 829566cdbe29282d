package store

import (
	"encoding/json"
	"strings"
	"testing"

	"blueprint/api/internal/graph"

	"github.com/google/uuid"
)

func buildGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()

	project := graph.NewNode("project", "Garage Restomod")
	phase := graph.NewNode("phase", "Teardown")
	task := graph.NewNode("task", "Pull engine")
	part := graph.NewNode("part", "Engine hoist")

	if err := g.AddNode(project, uuid.Nil); err != nil {
		t.Fatalf("add project: %v", err)
	}
	if err := g.AddNode(phase, project.ID); err != nil {
		t.Fatalf("add phase: %v", err)
	}
	if err := g.AddNode(task, phase.ID); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if err := g.AddNode(part, phase.ID); err != nil {
		t.Fatalf("add part: %v", err)
	}

	if _, _, err := g.SetProperty(task.ID, "status", "in_progress"); err != nil {
		t.Fatalf("set property: %v", err)
	}
	task.Links = append(task.Links, part.ID)
	g.SetBlocking(part.ID, task.ID)
	return g
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g := buildGraph(t)

	data, err := EncodeGraph(g)
	if err != nil {
		t.Fatalf("EncodeGraph: %v", err)
	}
	decoded, err := DecodeGraph(data)
	if err != nil {
		t.Fatalf("DecodeGraph: %v", err)
	}
	if !graph.Equal(g, decoded) {
		t.Fatalf("round trip changed the graph")
	}
}

func TestEncodedFormatShape(t *testing.T) {
	g := buildGraph(t)
	data, err := EncodeGraph(g)
	if err != nil {
		t.Fatalf("EncodeGraph: %v", err)
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	var version string
	if err := json.Unmarshal(shape["version"], &version); err != nil || version != "1.0" {
		t.Fatalf("version = %q, %v", version, err)
	}
	for _, key := range []string{"roots", "nodes", "blocking"} {
		if _, ok := shape[key]; !ok {
			t.Fatalf("encoded snapshot missing %q", key)
		}
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := DecodeGraph([]byte(`{"version":"2.0","roots":[],"nodes":{}}`))
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("err = %v, want version rejection", err)
	}
}

func TestDecodeRejectsDanglingReferences(t *testing.T) {
	g := buildGraph(t)
	data, err := EncodeGraph(g)
	if err != nil {
		t.Fatalf("EncodeGraph: %v", err)
	}

	var enc map[string]any
	if err := json.Unmarshal(data, &enc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// Point a root at a node that does not exist.
	enc["roots"] = []string{uuid.NewString()}
	broken, err := json.Marshal(enc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if _, err := DecodeGraph(broken); err == nil {
		t.Fatalf("decode accepted a dangling root")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeGraph([]byte(`{not json`)); err == nil {
		t.Fatalf("decode accepted malformed input")
	}
}

func TestRoundTripPreservesChildOrder(t *testing.T) {
	g := graph.New()
	parent := graph.NewNode("phase", "Order matters")
	if err := g.AddNode(parent, uuid.Nil); err != nil {
		t.Fatalf("add parent: %v", err)
	}
	names := []string{"first", "second", "third"}
	for _, name := range names {
		if err := g.AddNode(graph.NewNode("task", name), parent.ID); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	data, err := EncodeGraph(g)
	if err != nil {
		t.Fatalf("EncodeGraph: %v", err)
	}
	decoded, err := DecodeGraph(data)
	if err != nil {
		t.Fatalf("DecodeGraph: %v", err)
	}

	got, _ := decoded.Node(parent.ID)
	for i, childID := range got.Children {
		child, ok := decoded.Node(childID)
		if !ok || child.Name != names[i] {
			t.Fatalf("child %d = %v, want %s", i, child, names[i])
		}
	}
}
