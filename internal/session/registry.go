// Package session tracks live editing sessions: each record owns a graph,
// its command dispatcher, and the client count for that session's room.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"blueprint/api/internal/engine"
	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"
	"blueprint/api/internal/util"
)

var ErrNotFound = errors.New("session not found")

// Record is the unit of isolation. All graph and history access goes
// through the record's lock; the dispatcher assumes a single writer.
// Presence metadata lives behind its own leaf mutex so the hub can
// adjust client counts while a command holds the session lock.
type Record struct {
	mu sync.Mutex

	ID         string
	TemplateID string
	Schema     *schema.Blueprint
	Dispatcher *engine.Dispatcher

	meta          sync.Mutex
	createdAt     time.Time
	lastActivity  time.Time
	activeClients int
}

func (r *Record) Lock()   { r.mu.Lock() }
func (r *Record) Unlock() { r.mu.Unlock() }

// Graph returns the record's graph. Callers must hold the record lock.
func (r *Record) Graph() *graph.Graph { return r.Dispatcher.Graph() }

// MarkActivity bumps the activity timestamp.
func (r *Record) MarkActivity(now time.Time) {
	r.meta.Lock()
	r.lastActivity = now
	r.meta.Unlock()
}

// Info is a point-in-time snapshot of a record's metadata.
type Info struct {
	ID            string    `json:"session_id"`
	TemplateID    string    `json:"template_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
	ActiveClients int       `json:"active_clients"`
	NodeCount     int       `json:"node_count"`
	UndoAvailable bool      `json:"undo_available"`
	RedoAvailable bool      `json:"redo_available"`
	Corrupt       bool      `json:"corrupt,omitempty"`
}

// Registry holds all live sessions. The registry lock guards only the
// map; per-session state is guarded by each record's own lock.
type Registry struct {
	mu        sync.RWMutex
	records   map[string]*Record
	undoDepth int
	now       func() time.Time
}

func NewRegistry(undoDepth int) *Registry {
	return &Registry{
		records:   make(map[string]*Record),
		undoDepth: undoDepth,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new session around the given graph and schema and
// returns its record.
func (reg *Registry) Create(g *graph.Graph, sch *schema.Blueprint, templateID string) *Record {
	now := reg.now()
	r := &Record{
		ID:           util.NewID(),
		TemplateID:   templateID,
		Schema:       sch,
		Dispatcher:   engine.New(g, sch, reg.undoDepth),
		createdAt:    now,
		lastActivity: now,
	}

	reg.mu.Lock()
	reg.records[r.ID] = r
	reg.mu.Unlock()
	return r
}

func (reg *Registry) Get(id string) (*Record, error) {
	reg.mu.RLock()
	r, ok := reg.records[id]
	reg.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// Touch bumps the session's activity timestamp. Missing sessions are
// ignored; touch races with cleanup and the caller cannot act on it.
func (reg *Registry) Touch(id string) {
	r, err := reg.Get(id)
	if err != nil {
		return
	}
	r.MarkActivity(reg.now())
}

// AdjustClients adds delta to the session's active client count, clamped
// at zero, and returns the new count.
func (reg *Registry) AdjustClients(id string, delta int) (int, error) {
	r, err := reg.Get(id)
	if err != nil {
		return 0, err
	}
	r.meta.Lock()
	r.activeClients += delta
	if r.activeClients < 0 {
		r.activeClients = 0
	}
	r.lastActivity = reg.now()
	n := r.activeClients
	r.meta.Unlock()
	return n, nil
}

// Remove drops the session from the registry.
func (reg *Registry) Remove(id string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.records[id]; !ok {
		return ErrNotFound
	}
	delete(reg.records, id)
	return nil
}

// CleanupIdle removes sessions idle for strictly longer than maxIdle that
// have no connected clients, and returns the removed session IDs.
func (reg *Registry) CleanupIdle(maxIdle time.Duration) []string {
	cutoff := reg.now().Add(-maxIdle)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	var removed []string
	for id, r := range reg.records {
		r.meta.Lock()
		idle := r.activeClients == 0 && r.lastActivity.Before(cutoff)
		r.meta.Unlock()
		if idle {
			delete(reg.records, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// List returns info for every live session, sorted by creation time.
func (reg *Registry) List() []Info {
	reg.mu.RLock()
	records := make([]*Record, 0, len(reg.records))
	for _, r := range reg.records {
		records = append(records, r)
	}
	reg.mu.RUnlock()

	infos := make([]Info, 0, len(records))
	for _, r := range records {
		infos = append(infos, reg.snapshot(r))
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Info returns a metadata snapshot for one session.
func (reg *Registry) Info(id string) (Info, error) {
	r, err := reg.Get(id)
	if err != nil {
		return Info{}, err
	}
	return reg.snapshot(r), nil
}

func (reg *Registry) snapshot(r *Record) Info {
	r.mu.Lock()
	nodeCount := r.Dispatcher.Graph().Len()
	undo := r.Dispatcher.UndoAvailable()
	redo := r.Dispatcher.RedoAvailable()
	corrupt := r.Dispatcher.Corrupt()
	r.mu.Unlock()

	r.meta.Lock()
	defer r.meta.Unlock()
	return Info{
		ID:            r.ID,
		TemplateID:    r.TemplateID,
		CreatedAt:     r.createdAt,
		LastActivity:  r.lastActivity,
		ActiveClients: r.activeClients,
		NodeCount:     nodeCount,
		UndoAvailable: undo,
		RedoAvailable: redo,
		Corrupt:       corrupt,
	}
}

// Len reports the number of live sessions.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.records)
}
