// Package realtime fans events out to connected clients. Each session is
// a room; a connection only receives events for rooms it has joined.
package realtime

import (
	"log"
	"sync"
	"time"

	"blueprint/api/internal/command"
)

// Sink is one receiver of events. Enqueue must not block: a sink that
// cannot absorb the event returns false and is dropped from the hub.
type Sink interface {
	Enqueue(e command.Event) bool
}

// presence is the slice of the session registry the hub needs for
// tracking who is in which room.
type presence interface {
	AdjustClients(sessionID string, delta int) (int, error)
	Touch(sessionID string)
}

type Hub struct {
	mu       sync.Mutex
	rooms    map[string]map[Sink]struct{}
	joined   map[Sink]map[string]struct{}
	presence presence

	now func() time.Time
}

func NewHub(p presence) *Hub {
	return &Hub{
		rooms:    make(map[string]map[Sink]struct{}),
		joined:   make(map[Sink]map[string]struct{}),
		presence: p,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Join adds the sink to the session's room, bumps the session's client
// count, and announces the arrival to everyone in the room, joiner
// included. Joining a room twice is a no-op.
func (h *Hub) Join(sessionID string, s Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rooms, ok := h.joined[s]; ok {
		if _, in := rooms[sessionID]; in {
			return nil
		}
	}

	count, err := h.presence.AdjustClients(sessionID, 1)
	if err != nil {
		return err
	}

	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[Sink]struct{})
	}
	h.rooms[sessionID][s] = struct{}{}
	if h.joined[s] == nil {
		h.joined[s] = make(map[string]struct{})
	}
	h.joined[s][sessionID] = struct{}{}

	h.broadcast(sessionID, command.Event{
		Type:      command.EventClientJoined,
		SessionID: sessionID,
		Timestamp: h.now(),
		Data:      map[string]any{"active_clients": count},
	})
	return nil
}

// Leave removes the sink from one room and announces the departure to
// the remaining members.
func (h *Hub) Leave(sessionID string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sessionID, s)
}

// Disconnect removes the sink from every room it joined. Called when the
// underlying connection closes for any reason.
func (h *Hub) Disconnect(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID := range h.joined[s] {
		h.leaveLocked(sessionID, s)
	}
	delete(h.joined, s)
}

func (h *Hub) leaveLocked(sessionID string, s Sink) {
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	if _, in := room[s]; !in {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
	if rooms, ok := h.joined[s]; ok {
		delete(rooms, sessionID)
		if len(rooms) == 0 {
			delete(h.joined, s)
		}
	}

	count, err := h.presence.AdjustClients(sessionID, -1)
	if err != nil {
		// Session already cleaned up; nothing left to notify.
		return
	}
	h.broadcast(sessionID, command.Event{
		Type:      command.EventClientLeft,
		SessionID: sessionID,
		Timestamp: h.now(),
		Data:      map[string]any{"active_clients": count},
	})
}

// Publish delivers already-stamped events to the session's room in
// order. Callers publish under the session lock, so events from one
// session never interleave.
func (h *Hub) Publish(sessionID string, events []command.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range events {
		h.broadcast(sessionID, e)
	}
}

// broadcast sends to every sink in the room. A sink that refuses the
// event is evicted from all its rooms; the rest of the room is
// unaffected.
func (h *Hub) broadcast(sessionID string, e command.Event) {
	var dead []Sink
	for s := range h.rooms[sessionID] {
		if !s.Enqueue(e) {
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		log.Printf("realtime: dropping slow client from session %s", sessionID)
		for id := range h.joined[s] {
			h.leaveLocked(id, s)
		}
		delete(h.joined, s)
	}
}

// Joined reports whether the sink is currently in the session's room.
func (h *Hub) Joined(sessionID string, s Sink) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, in := h.joined[s][sessionID]
	return in
}

// RoomSize reports how many sinks are in a session's room.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[sessionID])
}
