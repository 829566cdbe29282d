// Package app wires the domain packages into the REST surface: session
// lifecycle, command execution, persistence, search, and export.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"blueprint/api/internal/command"
	"blueprint/api/internal/engine"
	"blueprint/api/internal/export"
	"blueprint/api/internal/graph"
	"blueprint/api/internal/schema"
	"blueprint/api/internal/search"
	"blueprint/api/internal/session"
	"blueprint/api/internal/store"
	"blueprint/api/internal/util"

	"github.com/google/uuid"
)

// Publisher delivers committed events to a session's room.
type Publisher interface {
	Publish(sessionID string, events []command.Event)
}

// SchemaSource loads blueprint templates.
type SchemaSource interface {
	List() ([]schema.TemplateInfo, error)
	Load(templateID string) (*schema.Blueprint, error)
}

// Searcher is the slice of the search facade the service uses.
type Searcher interface {
	Search(q search.Query) search.Response
	ReindexSession(sessionID string, g *graph.Graph)
	DropSession(sessionID string)
}

// Exporter renders a session's tree to a downloadable report.
type Exporter interface {
	Export(req export.Request, templateName string, g *graph.Graph) (*export.Result, error)
}

// Service orchestrates session records, the event hub, and the
// supporting stores.
type Service struct {
	registry  *session.Registry
	publisher Publisher
	schemas   SchemaSource
	snapshots store.SnapshotStore
	search    Searcher
	exporter  Exporter

	// ping reports backend readiness; nil means always ready.
	ping func(ctx context.Context) error
}

type ServiceOptions struct {
	Registry  *session.Registry
	Publisher Publisher
	Schemas   SchemaSource
	Snapshots store.SnapshotStore
	Search    Searcher
	Exporter  Exporter
	Ping      func(ctx context.Context) error
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		registry:  opts.Registry,
		publisher: opts.Publisher,
		schemas:   opts.Schemas,
		snapshots: opts.Snapshots,
		search:    opts.Search,
		exporter:  opts.Exporter,
		ping:      opts.Ping,
	}
}

// Ping reports whether the persistence backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Registry exposes the session registry for the realtime hub wiring.
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// CreateSession starts an empty session over the named template.
func (s *Service) CreateSession(templateID string) (map[string]any, error) {
	sch, err := s.loadTemplate(templateID)
	if err != nil {
		return nil, err
	}
	r := s.registry.Create(graph.New(), sch, templateID)
	return map[string]any{
		"session_id":  r.ID,
		"template_id": templateID,
	}, nil
}

// CreateProject starts a session seeded with a root node named after the
// project, using the template's root type.
func (s *Service) CreateProject(templateID, projectName string) (map[string]any, error) {
	if strings.TrimSpace(projectName) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "project_name is required", nil)
	}
	sch, err := s.loadTemplate(templateID)
	if err != nil {
		return nil, err
	}
	rootType, ok := sch.RootType()
	if !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "template has no node types", nil)
	}

	g := graph.New()
	root := graph.NewNode(rootType.ID, projectName)
	if status, ok := sch.DefaultStatus(rootType.ID); ok {
		root.Properties["status"] = status
	}
	if err := g.AddNode(root, uuid.Nil); err != nil {
		return nil, fmt.Errorf("seed root node: %w", err)
	}

	r := s.registry.Create(g, sch, templateID)
	s.reindex(r.ID, g)
	return map[string]any{
		"session_id":  r.ID,
		"template_id": templateID,
		"graph":       serializeGraph(g),
	}, nil
}

// ListSessions returns metadata for every live session.
func (s *Service) ListSessions() map[string]any {
	infos := s.registry.List()
	return map[string]any{
		"sessions": infos,
		"total":    len(infos),
	}
}

// SessionInfo returns one session's metadata.
func (s *Service) SessionInfo(sessionID string) (session.Info, error) {
	info, err := s.registry.Info(sessionID)
	if err != nil {
		return session.Info{}, sessionNotFound(sessionID)
	}
	return info, nil
}

// Cleanup removes idle client-less sessions and their search records.
func (s *Service) Cleanup(maxInactive time.Duration) map[string]any {
	removed := s.registry.CleanupIdle(maxInactive)
	for _, id := range removed {
		if s.search != nil {
			s.search.DropSession(id)
		}
	}
	if len(removed) > 0 {
		log.Printf("app: cleaned up %d idle sessions", len(removed))
	}
	if removed == nil {
		removed = []string{}
	}
	return map[string]any{
		"removed": removed,
		"count":   len(removed),
	}
}

// ExecuteCommand runs one mutation against the session graph. Events are
// published under the session lock so per-session order is preserved.
func (s *Service) ExecuteCommand(sessionID, commandType string, data json.RawMessage) (map[string]any, error) {
	cmd, err := command.FromRequest(commandType, data)
	if err != nil {
		return nil, mapEngineError(sessionID, err)
	}

	r, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, sessionNotFound(sessionID)
	}

	r.Lock()
	defer r.Unlock()

	events, err := r.Dispatcher.Dispatch(sessionID, cmd)
	if err != nil {
		return nil, mapEngineError(sessionID, err)
	}
	s.publish(sessionID, events)
	s.reindex(sessionID, r.Graph())
	r.MarkActivity(time.Now().UTC())

	return s.commandResult(r), nil
}

// Undo reverts the latest command. An empty undo stack is not an error:
// the response carries the unchanged graph.
func (s *Service) Undo(sessionID string) (map[string]any, error) {
	return s.history(sessionID, func(r *session.Record) ([]command.Event, error) {
		return r.Dispatcher.Undo(sessionID)
	}, engine.ErrNothingToUndo, "nothing to undo")
}

// Redo re-applies the most recently undone command.
func (s *Service) Redo(sessionID string) (map[string]any, error) {
	return s.history(sessionID, func(r *session.Record) ([]command.Event, error) {
		return r.Dispatcher.Redo(sessionID)
	}, engine.ErrNothingToRedo, "nothing to redo")
}

func (s *Service) history(sessionID string, op func(*session.Record) ([]command.Event, error), informational error, message string) (map[string]any, error) {
	r, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, sessionNotFound(sessionID)
	}

	r.Lock()
	defer r.Unlock()

	events, err := op(r)
	if errors.Is(err, informational) {
		result := s.commandResult(r)
		result["success"] = false
		result["message"] = message
		return result, nil
	}
	if err != nil {
		return nil, mapEngineError(sessionID, err)
	}
	s.publish(sessionID, events)
	s.reindex(sessionID, r.Graph())
	r.MarkActivity(time.Now().UTC())
	return s.commandResult(r), nil
}

// Tree returns the session's nested graph serialization.
func (s *Service) Tree(sessionID string) (GraphPayload, error) {
	r, err := s.registry.Get(sessionID)
	if err != nil {
		return GraphPayload{}, sessionNotFound(sessionID)
	}
	r.Lock()
	defer r.Unlock()
	return serializeGraph(r.Graph()), nil
}

// GetNode returns one node with its subtree.
func (s *Service) GetNode(sessionID, nodeID string) (TreeNode, error) {
	id, err := uuid.Parse(nodeID)
	if err != nil {
		return TreeNode{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid node id", nil)
	}
	r, err := s.registry.Get(sessionID)
	if err != nil {
		return TreeNode{}, sessionNotFound(sessionID)
	}
	r.Lock()
	defer r.Unlock()

	tn, ok := serializeNode(r.Graph(), id)
	if !ok {
		return TreeNode{}, domainError(http.StatusNotFound, "NODE_NOT_FOUND", "node not found", map[string]any{"node_id": nodeID})
	}
	return tn, nil
}

// SearchNodes searches the session's indexed nodes.
func (s *Service) SearchNodes(sessionID, query, typeFilter string, limit, offset int) (search.Response, error) {
	if _, err := s.registry.Get(sessionID); err != nil {
		return search.Response{}, sessionNotFound(sessionID)
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query}, nil
	}
	return s.search.Search(search.Query{
		Text:         query,
		SessionID:    sessionID,
		FilterTypeID: typeFilter,
		Limit:        limit,
		Offset:       offset,
	}), nil
}

// SaveProject snapshots the session graph into the snapshot store. An
// empty project ID creates a new project.
func (s *Service) SaveProject(ctx context.Context, sessionID, projectID, name string) (map[string]any, error) {
	r, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, sessionNotFound(sessionID)
	}

	r.Lock()
	data, encErr := store.EncodeGraph(r.Graph())
	templateID := r.TemplateID
	r.Unlock()
	if encErr != nil {
		return nil, fmt.Errorf("encode session %s: %w", sessionID, encErr)
	}

	if projectID == "" {
		projectID = util.NewID()
	}
	if strings.TrimSpace(name) == "" {
		name = "Untitled project"
	}
	p := store.Project{
		ID:         projectID,
		Name:       name,
		TemplateID: templateID,
		Data:       data,
		SavedAt:    time.Now().UTC(),
	}
	if err := s.snapshots.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	s.registry.Touch(sessionID)
	return map[string]any{
		"project_id": projectID,
		"name":       name,
		"saved_at":   p.SavedAt,
	}, nil
}

// LoadProject opens a saved snapshot in a fresh session.
func (s *Service) LoadProject(ctx context.Context, projectID string) (map[string]any, error) {
	p, err := s.snapshots.Load(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainError(http.StatusNotFound, "PROJECT_NOT_FOUND", "project not found", map[string]any{"project_id": projectID})
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	g, err := store.DecodeGraph(p.Data)
	if err != nil {
		return nil, fmt.Errorf("decode project %s: %w", projectID, err)
	}
	sch, err := s.loadTemplate(p.TemplateID)
	if err != nil {
		return nil, err
	}
	// Snapshots can outlive their template: flag nodes whose type is gone.
	g.FlagOrphans(sch.HasType)

	r := s.registry.Create(g, sch, p.TemplateID)
	s.reindex(r.ID, g)
	return map[string]any{
		"session_id":  r.ID,
		"project_id":  projectID,
		"name":        p.Name,
		"template_id": p.TemplateID,
		"graph":       serializeGraph(g),
	}, nil
}

// ListProjects lists saved snapshots.
func (s *Service) ListProjects(ctx context.Context) (map[string]any, error) {
	infos, err := s.snapshots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if infos == nil {
		infos = []store.ProjectInfo{}
	}
	return map[string]any{
		"projects": infos,
		"total":    len(infos),
	}, nil
}

// DeleteProject removes a saved snapshot.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	err := s.snapshots.Delete(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return domainError(http.StatusNotFound, "PROJECT_NOT_FOUND", "project not found", map[string]any{"project_id": projectID})
	}
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// ReloadSchema re-reads the session's template (or switches to a new
// one) and flags nodes whose type no longer exists as orphaned.
func (s *Service) ReloadSchema(sessionID, templateID string) (map[string]any, error) {
	r, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, sessionNotFound(sessionID)
	}

	r.Lock()
	if templateID == "" {
		templateID = r.TemplateID
	}
	r.Unlock()

	sch, err := s.loadTemplate(templateID)
	if err != nil {
		return nil, err
	}

	r.Lock()
	defer r.Unlock()
	r.Schema = sch
	r.TemplateID = templateID
	r.Dispatcher.SetSchema(sch)
	orphaned := r.Graph().FlagOrphans(sch.HasType)
	r.MarkActivity(time.Now().UTC())

	ids := make([]string, 0, len(orphaned))
	for _, id := range orphaned {
		ids = append(ids, id.String())
	}
	return map[string]any{
		"template_id":    templateID,
		"orphaned_nodes": ids,
		"graph":          serializeGraph(r.Graph()),
	}, nil
}

// Export renders the session tree in the requested format.
func (s *Service) Export(sessionID, format, title string) (*export.Result, error) {
	r, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, sessionNotFound(sessionID)
	}

	r.Lock()
	defer r.Unlock()

	if title == "" {
		title = "Project tree"
		if roots := r.Graph().Roots(); len(roots) == 1 {
			if root, ok := r.Graph().Node(roots[0]); ok {
				title = root.Name
			}
		}
	}
	templateName := r.TemplateID
	if r.Schema != nil && r.Schema.Name != "" {
		templateName = r.Schema.Name
	}

	result, err := s.exporter.Export(export.Request{
		Title:  title,
		Format: export.Format(format),
	}, templateName, r.Graph())
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "pdf renderer unavailable", nil)
		}
		return nil, domainError(http.StatusUnprocessableEntity, "EXPORT_FAILED", err.Error(), nil)
	}
	return result, nil
}

// ListTemplates lists available blueprint templates.
func (s *Service) ListTemplates() (map[string]any, error) {
	infos, err := s.schemas.List()
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return map[string]any{
		"templates": infos,
		"total":     len(infos),
	}, nil
}

// TemplateSchema returns one template's node type definitions.
func (s *Service) TemplateSchema(templateID string) (*schema.Blueprint, error) {
	return s.loadTemplate(templateID)
}

func (s *Service) loadTemplate(templateID string) (*schema.Blueprint, error) {
	if strings.TrimSpace(templateID) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "template_id is required", nil)
	}
	sch, err := s.schemas.Load(templateID)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "TEMPLATE_NOT_FOUND", "template not found", map[string]any{"template_id": templateID})
	}
	return sch, nil
}

func (s *Service) publish(sessionID string, events []command.Event) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	s.publisher.Publish(sessionID, events)
}

func (s *Service) reindex(sessionID string, g *graph.Graph) {
	if s.search == nil {
		return
	}
	s.search.ReindexSession(sessionID, g)
}

// commandResult builds the mutation envelope. Callers hold the record
// lock.
func (s *Service) commandResult(r *session.Record) map[string]any {
	return map[string]any{
		"success":        true,
		"graph":          serializeGraph(r.Graph()),
		"undo_available": r.Dispatcher.UndoAvailable(),
		"redo_available": r.Dispatcher.RedoAvailable(),
	}
}

func sessionNotFound(sessionID string) error {
	return domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", map[string]any{"session_id": sessionID})
}

func mapEngineError(sessionID string, err error) error {
	var verr *command.ValidationError
	if errors.As(err, &verr) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", verr.Reason, nil)
	}
	if errors.Is(err, engine.ErrSessionCorrupt) {
		log.Printf("ERROR: app: session %s corrupt: %v", sessionID, err)
		return domainError(http.StatusConflict, "SESSION_CORRUPT", "session graph is corrupt", map[string]any{"session_id": sessionID})
	}
	return err
}
