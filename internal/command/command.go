// Package command defines the closed set of reversible graph mutations.
// Commands are pure with respect to I/O: Validate checks preconditions
// against the graph and schema without mutating anything, Apply mutates the
// graph and captures the inverse state inside the command, and Revert plays
// that captured inverse back. The events a command returns from Apply are
// published by the caller, never by the command itself.
package command

import (
	"encoding/json"
	"fmt"
	"time"

	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"

	"github.com/google/uuid"
)

type Command interface {
	Type() string
	Validate(g *graph.Graph, s schema.Provider) error
	Apply(g *graph.Graph) ([]Event, error)
	Revert(g *graph.Graph) error
}

// Event types delivered to session observers.
const (
	EventNodeCreated     = "node_created"
	EventNodeDeleted     = "node_deleted"
	EventNodeLinked      = "node_linked"
	EventNodeUnlinked    = "node_unlinked"
	EventPropertyChanged = "property_changed"
	EventPropertyDeleted = "property_deleted"
	EventCommandExecuted = "command_executed"
	EventCommandUndone   = "command_undone"
	EventCommandRedone   = "command_redone"
	EventClientJoined    = "client_joined"
	EventClientLeft      = "client_left"
)

// Event is a committed state change notification. SessionID and Timestamp
// are stamped by the dispatcher (or the realtime hub for client events);
// commands fill only Type and Data.
type Event struct {
	Type      string
	SessionID string
	Timestamp time.Time
	Data      map[string]any
}

// MarshalJSON flattens Data alongside the fixed fields so observers see a
// single object per event.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+3)
	for k, v := range e.Data {
		out[k] = v
	}
	out["type"] = e.Type
	out["session_id"] = e.SessionID
	out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// ValidationError reports a rejected command precondition. The graph is
// guaranteed untouched when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// FromRequest builds a command from its wire representation. The switch is
// the single place command type names are interpreted.
func FromRequest(commandType string, data json.RawMessage) (Command, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	switch commandType {
	case "CreateNode":
		var body struct {
			TypeID     string         `json:"type_id"`
			Name       string         `json:"name"`
			ParentID   string         `json:"parent_id"`
			Properties map[string]any `json:"properties"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, invalidf("bad CreateNode payload: %v", err)
		}
		parentID, err := optionalID(body.ParentID)
		if err != nil {
			return nil, invalidf("bad parent_id: %v", err)
		}
		return &CreateNode{TypeID: body.TypeID, Name: body.Name, ParentID: parentID, Properties: body.Properties}, nil
	case "DeleteNode":
		var body struct {
			NodeID string `json:"node_id"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, invalidf("bad DeleteNode payload: %v", err)
		}
		id, err := requiredID(body.NodeID, "node_id")
		if err != nil {
			return nil, err
		}
		return &DeleteNode{NodeID: id}, nil
	case "UpdateProperty":
		var body struct {
			NodeID     string `json:"node_id"`
			PropertyID string `json:"property_id"`
			Value      any    `json:"value"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, invalidf("bad UpdateProperty payload: %v", err)
		}
		id, err := requiredID(body.NodeID, "node_id")
		if err != nil {
			return nil, err
		}
		if body.PropertyID == "" {
			return nil, invalidf("property_id is required")
		}
		return &UpdateProperty{NodeID: id, PropertyID: body.PropertyID, Value: body.Value}, nil
	case "MoveNode":
		var body struct {
			NodeID      string `json:"node_id"`
			NewParentID string `json:"new_parent_id"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, invalidf("bad MoveNode payload: %v", err)
		}
		id, err := requiredID(body.NodeID, "node_id")
		if err != nil {
			return nil, err
		}
		parentID, err := optionalID(body.NewParentID)
		if err != nil {
			return nil, invalidf("bad new_parent_id: %v", err)
		}
		return &MoveNode{NodeID: id, NewParentID: parentID}, nil
	case "LinkNode":
		from, to, err := linkIDs(data)
		if err != nil {
			return nil, err
		}
		return &LinkNode{FromID: from, ToID: to}, nil
	case "UnlinkNode":
		from, to, err := linkIDs(data)
		if err != nil {
			return nil, err
		}
		return &UnlinkNode{FromID: from, ToID: to}, nil
	case "UpdateBlockingRelationship":
		var body struct {
			BlockedNodeID  string `json:"blocked_node_id"`
			BlockingNodeID string `json:"blocking_node_id"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, invalidf("bad UpdateBlockingRelationship payload: %v", err)
		}
		blocked, err := requiredID(body.BlockedNodeID, "blocked_node_id")
		if err != nil {
			return nil, err
		}
		blocking, err := optionalID(body.BlockingNodeID)
		if err != nil {
			return nil, invalidf("bad blocking_node_id: %v", err)
		}
		return &UpdateBlocking{BlockedID: blocked, BlockingID: blocking}, nil
	case "ApplyKit":
		var body struct {
			TargetID  string `json:"target_id"`
			KitRootID string `json:"kit_root_id"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, invalidf("bad ApplyKit payload: %v", err)
		}
		target, err := requiredID(body.TargetID, "target_id")
		if err != nil {
			return nil, err
		}
		kit, err := requiredID(body.KitRootID, "kit_root_id")
		if err != nil {
			return nil, err
		}
		return &ApplyKit{TargetID: target, KitRootID: kit}, nil
	default:
		return nil, invalidf("unknown command type %q", commandType)
	}
}

func linkIDs(data json.RawMessage) (uuid.UUID, uuid.UUID, error) {
	var body struct {
		FromID string `json:"from_id"`
		ToID   string `json:"to_id"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return uuid.Nil, uuid.Nil, invalidf("bad link payload: %v", err)
	}
	from, err := requiredID(body.FromID, "from_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	to, err := requiredID(body.ToID, "to_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return from, to, nil
}

func requiredID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, invalidf("%s is required", field)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, invalidf("bad %s: %v", field, err)
	}
	return id, nil
}

func optionalID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func idOrNull(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id.String()
}
