package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads blueprint templates from a directory of YAML files, one
// template per file, named <template_id>.yaml.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

type TemplateInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// List returns the templates available in the directory.
func (l *Loader) List() ([]TemplateInfo, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TemplateInfo{}, nil
		}
		return nil, fmt.Errorf("read templates dir: %w", err)
	}
	infos := []TemplateInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		id := strings.TrimSuffix(name, ".yaml")
		infos = append(infos, TemplateInfo{ID: id, Name: displayName(id)})
	}
	return infos, nil
}

// displayName turns a template id like "car_restomod" into "Car Restomod".
func displayName(id string) string {
	words := strings.Split(strings.ReplaceAll(id, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Load parses the template with the given ID.
func (l *Loader) Load(templateID string) (*Blueprint, error) {
	if strings.ContainsAny(templateID, "/\\.") {
		return nil, fmt.Errorf("invalid template id %q", templateID)
	}
	path := filepath.Join(l.dir, templateID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template %q not found", templateID)
		}
		return nil, fmt.Errorf("read template %s: %w", templateID, err)
	}
	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", templateID, err)
	}
	if bp.ID == "" {
		bp.ID = templateID
	}
	if bp.Version == "" {
		bp.Version = "1.0"
	}
	if len(bp.NodeTypes) == 0 {
		return nil, fmt.Errorf("template %s defines no node types", templateID)
	}
	return &bp, nil
}
