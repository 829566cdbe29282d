// Package store persists project snapshots. A snapshot is an encoded
// graph plus naming metadata; backends are interchangeable behind
// SnapshotStore.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("project not found")

// Project is a saved graph snapshot.
type Project struct {
	ID         string    `json:"project_id"`
	Name       string    `json:"name"`
	TemplateID string    `json:"template_id"`
	Data       []byte    `json:"-"`
	SavedAt    time.Time `json:"saved_at"`
}

// ProjectInfo is Project without the snapshot payload, for listings.
type ProjectInfo struct {
	ID         string    `json:"project_id"`
	Name       string    `json:"name"`
	TemplateID string    `json:"template_id"`
	SavedAt    time.Time `json:"saved_at"`
}

func (p Project) info() ProjectInfo {
	return ProjectInfo{ID: p.ID, Name: p.Name, TemplateID: p.TemplateID, SavedAt: p.SavedAt}
}

// SnapshotStore persists and retrieves project snapshots. Save overwrites
// any existing snapshot with the same ID.
type SnapshotStore interface {
	Save(ctx context.Context, p Project) error
	Load(ctx context.Context, id string) (Project, error)
	List(ctx context.Context) ([]ProjectInfo, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
