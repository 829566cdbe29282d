// Package engine executes commands against a session's graph and keeps the
// per-session undo/redo history. A Dispatcher is single-writer: the owning
// session record serializes access, so the dispatcher itself holds no lock.
package engine

import (
	"errors"
	"fmt"
	"log"

	"blueprint/api/internal/command"
	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"
	"blueprint/api/internal/util"
)

var (
	// ErrNothingToUndo and ErrNothingToRedo are informational: the caller
	// reports them as a non-error result, not a failure.
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrSessionCorrupt means a command failed mid-mutation after passing
	// validation. The single-writer guarantee or an inverse capture is
	// broken; the session must not serve further commands.
	ErrSessionCorrupt = errors.New("session graph is corrupt")
)

// DefaultUndoDepth bounds the undo stack when no depth is configured.
const DefaultUndoDepth = 100

type entry struct {
	id  string
	cmd command.Command
}

type Dispatcher struct {
	graph     *graph.Graph
	schema    schema.Provider
	undoStack []entry
	redoStack []entry
	maxDepth  int
	corrupt   bool
}

func New(g *graph.Graph, s schema.Provider, maxDepth int) *Dispatcher {
	if maxDepth <= 0 {
		maxDepth = DefaultUndoDepth
	}
	return &Dispatcher{graph: g, schema: s, maxDepth: maxDepth}
}

// Graph returns the dispatcher's graph for read access. Callers must hold
// the session lock.
func (d *Dispatcher) Graph() *graph.Graph { return d.graph }

// SetSchema swaps the schema used for validation, e.g. after a template
// reload. Existing nodes are never invalidated here; callers flag orphans
// on the graph separately.
func (d *Dispatcher) SetSchema(s schema.Provider) { d.schema = s }

func (d *Dispatcher) UndoAvailable() bool { return len(d.undoStack) > 0 }
func (d *Dispatcher) RedoAvailable() bool { return len(d.redoStack) > 0 }
func (d *Dispatcher) Corrupt() bool       { return d.corrupt }

// Dispatch validates and executes a command. On validation failure the
// graph is untouched and the error is a *command.ValidationError. On
// success the command is pushed to the undo stack (evicting the oldest
// entry at capacity), the redo stack is cleared, and the committed events
// are returned stamped with the session ID.
func (d *Dispatcher) Dispatch(sessionID string, cmd command.Command) ([]command.Event, error) {
	if d.corrupt {
		return nil, ErrSessionCorrupt
	}
	if err := cmd.Validate(d.graph, d.schema); err != nil {
		return nil, err
	}
	events, err := cmd.Apply(d.graph)
	if err != nil {
		// Validation passed but the mutation failed partway: the graph
		// state is no longer trustworthy for this session.
		d.corrupt = true
		log.Printf("ERROR: engine: invariant violation applying %s in session %s: %v", cmd.Type(), sessionID, err)
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	e := entry{id: util.NewID(), cmd: cmd}
	if len(d.undoStack) >= d.maxDepth {
		d.undoStack = d.undoStack[1:]
	}
	d.undoStack = append(d.undoStack, e)
	d.redoStack = nil

	events = append(events, command.Event{
		Type: command.EventCommandExecuted,
		Data: map[string]any{
			"command_id":   e.id,
			"command_type": cmd.Type(),
		},
	})
	return stamp(events, sessionID), nil
}

// Undo reverts the most recent command and moves it to the redo stack.
func (d *Dispatcher) Undo(sessionID string) ([]command.Event, error) {
	if d.corrupt {
		return nil, ErrSessionCorrupt
	}
	if len(d.undoStack) == 0 {
		return nil, ErrNothingToUndo
	}
	e := d.undoStack[len(d.undoStack)-1]
	d.undoStack = d.undoStack[:len(d.undoStack)-1]

	if err := e.cmd.Revert(d.graph); err != nil {
		d.corrupt = true
		log.Printf("ERROR: engine: invariant violation reverting %s in session %s: %v", e.cmd.Type(), sessionID, err)
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	d.redoStack = append(d.redoStack, e)

	return stamp([]command.Event{{
		Type: command.EventCommandUndone,
		Data: map[string]any{
			"command_id":   e.id,
			"command_type": e.cmd.Type(),
		},
	}}, sessionID), nil
}

// Redo re-applies the most recently undone command (forward, not the
// inverse) and moves it back to the undo stack. The domain events of the
// re-applied command are rebroadcast so observers converge.
func (d *Dispatcher) Redo(sessionID string) ([]command.Event, error) {
	if d.corrupt {
		return nil, ErrSessionCorrupt
	}
	if len(d.redoStack) == 0 {
		return nil, ErrNothingToRedo
	}
	e := d.redoStack[len(d.redoStack)-1]
	d.redoStack = d.redoStack[:len(d.redoStack)-1]

	events, err := e.cmd.Apply(d.graph)
	if err != nil {
		d.corrupt = true
		log.Printf("ERROR: engine: invariant violation redoing %s in session %s: %v", e.cmd.Type(), sessionID, err)
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	d.undoStack = append(d.undoStack, e)

	events = append(events, command.Event{
		Type: command.EventCommandRedone,
		Data: map[string]any{
			"command_id":   e.id,
			"command_type": e.cmd.Type(),
		},
	})
	return stamp(events, sessionID), nil
}

func stamp(events []command.Event, sessionID string) []command.Event {
	now := nowUTC()
	for i := range events {
		events[i].SessionID = sessionID
		events[i].Timestamp = now
	}
	return events
}
