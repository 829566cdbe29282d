package schema

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTemplate = `
id: restomod
name: Car Restomod
version: "1.0"
node_types:
  - id: project
    name: Project
    allowed_children: [phase]
    properties:
      - id: status
        name: Status
        type: select
        options:
          - id: opt-planning
            name: Planning
          - id: opt-active
            name: Active
  - id: phase
    name: Phase
    allowed_children: [task, part]
  - id: task
    name: Task
    properties:
      - id: status
        name: Status
        type: select
        options:
          - id: opt-open
            name: Open
          - id: opt-done
            name: Done
      - id: estimate_hours
        name: Estimate (hours)
        type: number
  - id: part
    name: Part
    properties:
      - id: ordered
        name: Ordered
        type: boolean
`

func writeTemplate(t *testing.T, dir, id, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, id+".yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
}

func TestLoaderListAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "restomod", sampleTemplate)
	writeTemplate(t, dir, "home_build", sampleTemplate)

	loader := NewLoader(dir)
	infos, err := loader.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("listed %d templates, want 2", len(infos))
	}
	var homeName string
	for _, info := range infos {
		if info.ID == "home_build" {
			homeName = info.Name
		}
	}
	if homeName != "Home Build" {
		t.Fatalf("display name = %q, want %q", homeName, "Home Build")
	}

	bp, err := loader.Load("restomod")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bp.ID != "restomod" || len(bp.NodeTypes) != 4 {
		t.Fatalf("blueprint = %q with %d types", bp.ID, len(bp.NodeTypes))
	}
}

func TestLoadUnknownTemplate(t *testing.T) {
	loader := NewLoader(t.TempDir())
	if _, err := loader.Load("missing"); err == nil {
		t.Fatalf("expected error for unknown template")
	}
	if _, err := loader.Load("../escape"); err == nil {
		t.Fatalf("expected error for traversal attempt")
	}
}

func TestBlueprintProvider(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "restomod", sampleTemplate)
	bp, err := NewLoader(dir).Load("restomod")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !bp.HasType("task") || bp.HasType("widget") {
		t.Fatalf("HasType wrong")
	}
	if !bp.IsAllowedChild("project", "phase") {
		t.Fatalf("phase should be allowed under project")
	}
	if bp.IsAllowedChild("project", "task") {
		t.Fatalf("task must not be allowed directly under project")
	}
	if pt, ok := bp.PropertyType("task", "estimate_hours"); !ok || pt != TypeNumber {
		t.Fatalf("PropertyType = %q, %v", pt, ok)
	}
	if status, ok := bp.DefaultStatus("project"); !ok || status != "opt-planning" {
		t.Fatalf("DefaultStatus = %q, %v", status, ok)
	}
	if rt, ok := bp.RootType(); !ok || rt.ID != "project" {
		t.Fatalf("RootType = %+v, %v", rt, ok)
	}
}

func TestValidateValue(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "restomod", sampleTemplate)
	bp, err := NewLoader(dir).Load("restomod")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cases := []struct {
		nodeType string
		prop     string
		value    any
		wantErr  bool
	}{
		{"task", "status", "opt-done", false},
		{"task", "status", "opt-bogus", true},
		{"task", "status", 3, true},
		{"task", "estimate_hours", 4.5, false},
		{"task", "estimate_hours", "soon", true},
		{"part", "ordered", true, false},
		{"part", "ordered", "yes", true},
		{"task", "nonexistent", "x", true},
	}
	for _, tc := range cases {
		err := bp.ValidateValue(tc.nodeType, tc.prop, tc.value)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateValue(%s, %s, %v) err=%v, wantErr=%v", tc.nodeType, tc.prop, tc.value, err, tc.wantErr)
		}
	}
}
