package search

import (
	"log"

	"blueprint/api/internal/graph"
)

// Service is the facade that tries Meilisearch first and falls back to
// the in-memory index. Both indexes receive every update so the fallback
// is warm when Meilisearch drops out.
type Service struct {
	meili  *Meili
	memory *Memory
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, memory *Memory) *Service {
	if memory == nil {
		memory = NewMemory()
	}
	return &Service{meili: meili, memory: memory}
}

// Search tries Meilisearch if healthy, otherwise uses the memory index.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to memory index: %v", err)
	}

	results, total, err := s.memory.Search(q)
	if err != nil {
		log.Printf("search: memory index error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// ReindexSession replaces a session's indexed records from its graph.
// The memory index updates synchronously; the Meilisearch push is
// fire-and-forget.
func (s *Service) ReindexSession(sessionID string, g *graph.Graph) {
	records := RecordsFromGraph(sessionID, g)
	stale := staleIDs(s.memory.RecordIDs(sessionID), records)

	if err := s.memory.DeleteSession(sessionID); err != nil {
		log.Printf("search: clear memory index for session %s: %v", sessionID, err)
	}
	if err := s.memory.IndexNodes(records); err != nil {
		log.Printf("search: memory index session %s: %v", sessionID, err)
	}

	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteNodes(stale); err != nil {
			log.Printf("search: clear stale nodes for session %s: %v", sessionID, err)
		}
		if err := s.meili.IndexNodes(records); err != nil {
			log.Printf("search: index session %s: %v", sessionID, err)
		}
	}()
}

// DropSession removes a session's records from both indexes.
func (s *Service) DropSession(sessionID string) {
	ids := s.memory.RecordIDs(sessionID)
	if err := s.memory.DeleteSession(sessionID); err != nil {
		log.Printf("search: drop session %s from memory index: %v", sessionID, err)
	}
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteNodes(ids); err != nil {
			log.Printf("search: drop session %s: %v", sessionID, err)
		}
	}()
}

// staleIDs returns previously indexed IDs that are absent from the new
// record set. AddDocuments upserts by ID, so only deletions need an
// explicit purge.
func staleIDs(prev []string, records []NodeRecord) []string {
	live := make(map[string]struct{}, len(records))
	for _, r := range records {
		live[r.ID] = struct{}{}
	}
	var stale []string
	for _, id := range prev {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
