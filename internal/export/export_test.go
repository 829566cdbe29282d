package export

import (
	"strings"
	"testing"

	"blueprint/api/internal/graph"

	"github.com/google/uuid"
)

func reportGraph(t *testing.T) *graph.Graph {
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
		t.Fatalf("set status: %v", err)
	}
	if _, _, err := g.SetProperty(task.ID, "vendor", "Summit"); err != nil {
		t.Fatalf("set vendor: %v", err)
	}
	g.SetBlocking(part.ID, task.ID)
	return g
}

func TestBuildReportStructure(t *testing.T) {
	g := reportGraph(t)
	report := BuildReport("Garage Restomod", "Restomod", g)

	if report.NodeCount != 4 {
		t.Fatalf("NodeCount = %d, want 4", report.NodeCount)
	}
	if len(report.Roots) != 1 || report.Roots[0].Name != "Garage Restomod" {
		t.Fatalf("roots = %+v", report.Roots)
	}

	phase := report.Roots[0].Children[0]
	if phase.Name != "Teardown" || len(phase.Children) != 2 {
		t.Fatalf("phase = %+v", phase)
	}

	task := phase.Children[0]
	if task.Status != "in_progress" {
		t.Fatalf("task status = %q", task.Status)
	}
	if len(task.Properties) != 1 || task.Properties[0].Label != "vendor" || task.Properties[0].Value != "Summit" {
		t.Fatalf("task properties = %+v (status must not repeat there)", task.Properties)
	}

	part := phase.Children[1]
	if part.BlockedBy != "Pull engine" {
		t.Fatalf("part.BlockedBy = %q", part.BlockedBy)
	}
}

func TestRenderReportHTML(t *testing.T) {
	g := reportGraph(t)
	report := BuildReport("Garage Restomod", "Restomod", g)

	html, err := RenderReportHTML(report)
	if err != nil {
		t.Fatalf("RenderReportHTML: %v", err)
	}
	for _, want := range []string{
		"Garage Restomod",
		"Teardown",
		"Pull engine",
		"blocked by Pull engine",
		"4 nodes",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderEscapesNodeNames(t *testing.T) {
	g := graph.New()
	n := graph.NewNode("task", `<script>alert("x")</script>`)
	if err := g.AddNode(n, uuid.Nil); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	html, err := RenderReportHTML(BuildReport("Report", "T", g))
	if err != nil {
		t.Fatalf("RenderReportHTML: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("node name not escaped")
	}
}

func TestExportHTMLFormat(t *testing.T) {
	g := reportGraph(t)
	svc := NewService()

	result, err := svc.Export(Request{Title: "Garage Restomod", Format: FormatHTML}, "Restomod", g)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Errorf("MimeType = %q", result.MimeType)
	}
	if result.Filename != "Garage-Restomod.html" {
		t.Errorf("Filename = %q", result.Filename)
	}
	if !strings.Contains(string(result.Data), "Teardown") {
		t.Errorf("payload missing tree content")
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewService()
	if _, err := svc.Export(Request{Title: "X", Format: "docx"}, "T", graph.New()); err == nil {
		t.Fatalf("Export accepted unknown format")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Garage Restomod", "Garage-Restomod"},
		{"weird/../name!!", "weirdname"},
		{"", "project"},
		{strings.Repeat("a", 60), strings.Repeat("a", 50)},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b&c")
	if got != "a%20b%26c" {
		t.Errorf("percentEncodeForDataURL = %q", got)
	}
	if strings.Contains(got, "+") {
		t.Errorf("spaces must not encode as +")
	}
}
