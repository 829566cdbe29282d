package search

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Memory is the fallback index used when Meilisearch is not configured
// or unreachable. Matching is case-insensitive substring over name and
// flattened property text.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]NodeRecord
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]NodeRecord)}
}

func (m *Memory) Healthy() bool { return true }

// IndexNodes replaces each affected session's records with the given
// ones. Records for one session always arrive as a full set.
func (m *Memory) IndexNodes(records []NodeRecord) error {
	bySession := make(map[string][]NodeRecord)
	for _, r := range records {
		bySession[r.SessionID] = append(bySession[r.SessionID], r)
	}

	m.mu.Lock()
	for sessionID, rs := range bySession {
		m.sessions[sessionID] = rs
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteSession(sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// RecordIDs returns the IDs currently indexed for a session.
func (m *Memory) RecordIDs(sessionID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions[sessionID]))
	for _, r := range m.sessions[sessionID] {
		ids = append(ids, r.ID)
	}
	return ids
}

func (m *Memory) Search(q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	m.mu.RLock()
	records := append([]NodeRecord(nil), m.sessions[q.SessionID]...)
	m.mu.RUnlock()

	var matched []Result
	for _, r := range records {
		if q.FilterTypeID != "" && r.TypeID != q.FilterTypeID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Name), needle) &&
			!strings.Contains(strings.ToLower(r.Text), needle) {
			continue
		}
		matched = append(matched, Result{
			ID:        r.ID,
			SessionID: r.SessionID,
			TypeID:    r.TypeID,
			Name:      r.Name,
			Snippet:   snippetAround(r.Text, needle),
		})
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := len(matched)
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// snippetAround trims the flattened text to a window around the first
// match so long property blobs stay readable in results. Window edges
// are pulled onto rune boundaries so multibyte text is never cut
// mid-character.
func snippetAround(text, needle string) string {
	const window = 80
	if text == "" {
		return ""
	}
	start := 0
	if needle != "" {
		if idx := strings.Index(strings.ToLower(text), needle); idx >= 0 {
			start = idx - window/2
		}
	}
	if start < 0 || start >= len(text) {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := start + window
	if end >= len(text) {
		end = len(text)
	} else {
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
	}
	return text[start:end]
}
