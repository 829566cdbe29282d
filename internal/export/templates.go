package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback to built-in template if file not found
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(report Report) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    ul.tree { list-style: none; padding-left: 1.25rem; }
    .type { color: #888; font-size: 0.85em; }
    .blocked { color: #b00; font-size: 0.85em; }
    .orphaned { color: #b60; font-size: 0.85em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.TemplateName}} | {{.NodeCount}} nodes | {{formatDate .GeneratedAt "Jan 2, 2006 15:04 MST"}}</div>
  {{template "nodes" .Roots}}
</body>
</html>
{{define "nodes"}}
<ul class="tree">
{{range .}}
  <li>
    <strong>{{.Name}}</strong> <span class="type">({{.TypeID}}{{if .Status}}, {{.Status}}{{end}})</span>
    {{if .BlockedBy}}<span class="blocked">blocked by {{.BlockedBy}}</span>{{end}}
    {{if .Orphaned}}<span class="orphaned">orphaned</span>{{end}}
    {{if .Children}}{{template "nodes" .Children}}{{end}}
  </li>
{{end}}
</ul>
{{end}}`
