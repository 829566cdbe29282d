package export

import (
	"fmt"
	"sort"
	"time"

	"blueprint/api/internal/graph"

	"github.com/google/uuid"
)

// Service renders project trees into downloadable reports.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export builds a report from the graph and renders it in the requested
// format. Callers hold the session lock while this reads the graph.
func (s *Service) Export(req Request, templateName string, g *graph.Graph) (*Result, error) {
	report := BuildReport(req.Title, templateName, g)

	html, err := RenderReportHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(req.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, req.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// BuildReport flattens a graph into the rendering model, walking the
// tree in stored child order.
func BuildReport(title, templateName string, g *graph.Graph) Report {
	report := Report{
		Title:        title,
		TemplateName: templateName,
		GeneratedAt:  time.Now().UTC(),
		NodeCount:    g.Len(),
	}
	for _, rootID := range g.Roots() {
		if node, ok := buildNode(g, rootID); ok {
			report.Roots = append(report.Roots, node)
		}
	}
	return report
}

func buildNode(g *graph.Graph, id uuid.UUID) (ReportNode, bool) {
	n, ok := g.Node(id)
	if !ok {
		return ReportNode{}, false
	}

	rn := ReportNode{
		Name:     n.Name,
		TypeID:   n.TypeID,
		Orphaned: n.Orphaned,
	}
	if status, ok := n.Properties["status"].(string); ok {
		rn.Status = status
	}
	if blockerID, blocked := g.Blocking(id); blocked {
		if blocker, ok := g.Node(blockerID); ok {
			rn.BlockedBy = blocker.Name
		}
	}

	keys := make([]string, 0, len(n.Properties))
	for k := range n.Properties {
		if k == "status" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rn.Properties = append(rn.Properties, ReportProperty{
			Label: k,
			Value: fmt.Sprintf("%v", n.Properties[k]),
		})
	}

	for _, childID := range n.Children {
		if child, ok := buildNode(g, childID); ok {
			rn.Children = append(rn.Children, child)
		}
	}
	return rn, true
}
