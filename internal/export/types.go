// Package export renders a session's project tree as an HTML report or a
// PDF printed through headless Chrome.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	Title  string
	Format Format
}

// Report is the rendering model built from a session's graph.
type Report struct {
	Title        string
	TemplateName string
	GeneratedAt  time.Time
	NodeCount    int
	Roots        []ReportNode
}

// ReportNode is one node of the rendered tree.
type ReportNode struct {
	Name       string
	TypeID     string
	Status     string
	Orphaned   bool
	BlockedBy  string // name of the blocking node, empty if unblocked
	Properties []ReportProperty
	Children   []ReportNode
}

// ReportProperty is a label/value pair shown under a node.
type ReportProperty struct {
	Label string
	Value string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
