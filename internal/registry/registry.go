// Package registry discovers the server's projects and makes sure each one has a workspace.
package registry

import (
	"context"
	"log/slog"

	"github.com/labelhub/autotrain/internal/upstream"
	"github.com/labelhub/autotrain/internal/workspace"
)

// Project is a server project bound to its local workspace.
type Project struct {
	ID     upstream.ID
	Name   string
	Layout workspace.Layout
}

// Skipped is a project that could not be given a workspace this cycle.
type Skipped struct {
	Project upstream.Project
	Err     error
}

// Result is the outcome of one registry fetch.
type Result struct {
	Projects []Project
	Skipped  []Skipped
}

// ProjectRegistry lists projects and bootstraps missing workspaces from a template.
type ProjectRegistry struct {
	client   upstream.Client
	root     string
	template string
}

// New creates a ProjectRegistry rooted at root.
func New(client upstream.Client, root, template string) *ProjectRegistry {
	return &ProjectRegistry{
		client:   client,
		root:     root,
		template: template,
	}
}

// Fetch lists the server's projects. A failed listing is returned as an upstream
// error and nothing is touched on disk. A project whose workspace cannot be laid
// out or created is reported in Skipped and does not stop the others.
func (r *ProjectRegistry) Fetch(ctx context.Context) (*Result, error) {
	projects, err := r.client.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, p := range projects {
		layout, err := workspace.NewLayout(r.root, p.Name)
		if err != nil {
			slog.Warn("Skipping project with unusable name", "project", p.Name, "project_id", p.ID, "error", err)
			result.Skipped = append(result.Skipped, Skipped{Project: p, Err: err})
			continue
		}

		created, err := workspace.Bootstrap(layout, r.template)
		if err != nil {
			slog.Error("Failed to bootstrap workspace", "project", p.Name, "error", err)
			result.Skipped = append(result.Skipped, Skipped{Project: p, Err: err})
			continue
		}
		if created {
			slog.Info("Created project workspace", "project", p.Name, "path", layout.Dir())
		}

		result.Projects = append(result.Projects, Project{ID: p.ID, Name: p.Name, Layout: layout})
	}

	return result, nil
}
