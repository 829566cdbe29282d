package search

import (
	"fmt"
	"sort"
	"strings"

	"blueprint/api/internal/graph"
)

// Result is a single node hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	TypeID    string `json:"type"`
	Name      string `json:"name"`
	Snippet   string `json:"snippet,omitempty"`
}

// Query describes a node search request. SessionID is required: search
// never crosses session boundaries.
type Query struct {
	Text         string
	SessionID    string
	FilterTypeID string // empty = all node types
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a node search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push node records into a search index.
type Indexer interface {
	IndexNodes(records []NodeRecord) error
}

// NodeRecord is the data indexed per node. Text is the node's property
// values flattened into one searchable field.
type NodeRecord struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	TypeID    string `json:"type"`
	Name      string `json:"name"`
	Text      string `json:"text"`
}

// RecordsFromGraph flattens a session's graph into indexable records.
func RecordsFromGraph(sessionID string, g *graph.Graph) []NodeRecord {
	nodes := g.Nodes()
	records := make([]NodeRecord, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, NodeRecord{
			ID:        n.ID.String(),
			SessionID: sessionID,
			TypeID:    n.TypeID,
			Name:      n.Name,
			Text:      flattenProperties(n.Properties),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

func flattenProperties(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v", props[k])
	}
	return b.String()
}
