// Package schema defines the blueprint schema consumed by command
// validation: which node types exist, which parent/child pairings are legal,
// and what type each property carries.
package schema

import (
	"fmt"
	"sync"
)

// Provider is the validation surface the engine consumes. The engine never
// depends on how schemas are loaded.
type Provider interface {
	HasType(nodeType string) bool
	IsAllowedChild(parentType, childType string) bool
	PropertyType(nodeType, propertyID string) (PropertyType, bool)
}

type PropertyType string

const (
	TypeText    PropertyType = "text"
	TypeNumber  PropertyType = "number"
	TypeBoolean PropertyType = "boolean"
	TypeSelect  PropertyType = "select"
	TypeDate    PropertyType = "date"
)

type Option struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	IndicatorID string `yaml:"indicator_id,omitempty" json:"indicator_id,omitempty"`
}

type Property struct {
	ID       string       `yaml:"id" json:"id"`
	Name     string       `yaml:"name" json:"name"`
	Type     PropertyType `yaml:"type" json:"type"`
	Required bool         `yaml:"required,omitempty" json:"required"`
	Options  []Option     `yaml:"options,omitempty" json:"options,omitempty"`
}

type NodeType struct {
	ID              string     `yaml:"id" json:"id"`
	Name            string     `yaml:"name" json:"name"`
	AllowedChildren []string   `yaml:"allowed_children,omitempty" json:"allowed_children,omitempty"`
	Properties      []Property `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Blueprint is a loaded template definition. It implements Provider.
type Blueprint struct {
	ID        string     `yaml:"id" json:"id"`
	Name      string     `yaml:"name" json:"name"`
	Version   string     `yaml:"version" json:"version"`
	NodeTypes []NodeType `yaml:"node_types" json:"node_types"`

	indexOnce sync.Once
	byID      map[string]*NodeType
}

// index builds the type lookup on first use. Blueprints can be shared
// across sessions, so the build is synchronized.
func (b *Blueprint) index() {
	b.indexOnce.Do(func() {
		b.byID = make(map[string]*NodeType, len(b.NodeTypes))
		for i := range b.NodeTypes {
			b.byID[b.NodeTypes[i].ID] = &b.NodeTypes[i]
		}
	})
}

func (b *Blueprint) HasType(nodeType string) bool {
	b.index()
	_, ok := b.byID[nodeType]
	return ok
}

func (b *Blueprint) IsAllowedChild(parentType, childType string) bool {
	b.index()
	parent, ok := b.byID[parentType]
	if !ok {
		return false
	}
	for _, allowed := range parent.AllowedChildren {
		if allowed == childType {
			return true
		}
	}
	return false
}

func (b *Blueprint) PropertyType(nodeType, propertyID string) (PropertyType, bool) {
	b.index()
	nt, ok := b.byID[nodeType]
	if !ok {
		return "", false
	}
	for _, p := range nt.Properties {
		if p.ID == propertyID {
			return p.Type, true
		}
	}
	return "", false
}

func (b *Blueprint) nodeType(id string) (*NodeType, bool) {
	b.index()
	nt, ok := b.byID[id]
	return nt, ok
}

// RootType returns the first node type of the blueprint, which seeds new
// projects' root nodes.
func (b *Blueprint) RootType() (NodeType, bool) {
	if len(b.NodeTypes) == 0 {
		return NodeType{}, false
	}
	return b.NodeTypes[0], true
}

// DefaultStatus returns the first option of the node type's "status" select
// property, when the template defines one.
func (b *Blueprint) DefaultStatus(nodeType string) (string, bool) {
	nt, ok := b.nodeType(nodeType)
	if !ok {
		return "", false
	}
	for _, p := range nt.Properties {
		if p.ID == "status" && p.Type == TypeSelect && len(p.Options) > 0 {
			return p.Options[0].ID, true
		}
	}
	return "", false
}

// ValidateValue checks a property value against its declared type. Select
// values must name one of the declared option IDs.
func (b *Blueprint) ValidateValue(nodeType, propertyID string, value any) error {
	nt, ok := b.nodeType(nodeType)
	if !ok {
		return fmt.Errorf("unknown node type %q", nodeType)
	}
	var prop *Property
	for i := range nt.Properties {
		if nt.Properties[i].ID == propertyID {
			prop = &nt.Properties[i]
			break
		}
	}
	if prop == nil {
		return fmt.Errorf("node type %q has no property %q", nodeType, propertyID)
	}
	switch prop.Type {
	case TypeText, TypeDate:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("property %q expects a string", propertyID)
		}
	case TypeNumber:
		switch value.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("property %q expects a number", propertyID)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("property %q expects a boolean", propertyID)
		}
	case TypeSelect:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("property %q expects an option id", propertyID)
		}
		for _, opt := range prop.Options {
			if opt.ID == s {
				return nil
			}
		}
		return fmt.Errorf("property %q has no option %q", propertyID, s)
	default:
		return fmt.Errorf("property %q has unsupported type %q", propertyID, prop.Type)
	}
	return nil
}
