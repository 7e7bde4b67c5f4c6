// Package routing maps a file's kind, visibility, and tenant to the storage
// channel it should be uploaded to. The route table is declarative YAML,
// loaded once at process start into an explicit Table value that is treated
// as immutable for the process lifetime.
package routing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/media-archiver/internal/models"
)

// Destination is one route table entry.
type Destination struct {
	ChannelID string `yaml:"channel_id"`
	ThreadID  string `yaml:"thread_id,omitempty"`
}

// kindRoutes maps visibility tier to a destination for one kind.
type kindRoutes map[string]Destination

// Table is the parsed route table: default routes per (kind, visibility)
// plus tenant-specific overrides with the same shape.
type Table struct {
	Routes    map[string]kindRoutes            `yaml:"routes"`
	PerTenant map[string]map[string]kindRoutes `yaml:"per_tenant_overrides"`
}

// LoadTable reads and parses the route table file. A missing or malformed
// file is a configuration error; the process should not start without one.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewConfigError("read route table %s: %v", path, err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, models.NewConfigError("parse route table %s: %v", path, err)
	}

	if len(table.Routes) == 0 {
		return nil, models.NewConfigError("route table %s has no routes", path)
	}

	for kind, routes := range table.Routes {
		for visibility, dest := range routes {
			if dest.ChannelID == "" {
				return nil, models.NewConfigError(
					"route table %s: routes.%s.%s has no channel_id", path, kind, visibility)
			}
		}
	}

	return &table, nil
}

// Router resolves upload destinations against a Table.
type Router struct {
	table *Table
}

// NewRouter creates a Router over an already-loaded table.
func NewRouter(table *Table) *Router {
	return &Router{table: table}
}

// PickChannel resolves the destination for a file. Tenant overrides take
// precedence over the default table when an entry exists for the same
// (kind, visibility) pair; a pair absent from both is a configuration error.
func (r *Router) PickChannel(path string, tenant *string, visibility string) (models.RouteDecision, error) {
	kind := KindFromPath(path)

	if tenant != nil && *tenant != "" {
		if overrides, ok := r.table.PerTenant[*tenant]; ok {
			if dest, ok := lookup(overrides, kind, visibility); ok {
				return decision(dest), nil
			}
		}
	}

	if dest, ok := lookup(r.table.Routes, kind, visibility); ok {
		return decision(dest), nil
	}

	return models.RouteDecision{}, models.NewConfigError(
		"no route for kind=%s visibility=%s", kind, visibility)
}

func lookup(routes map[string]kindRoutes, kind models.MediaKind, visibility string) (Destination, bool) {
	byVisibility, ok := routes[string(kind)]
	if !ok {
		return Destination{}, false
	}
	dest, ok := byVisibility[visibility]
	return dest, ok
}

func decision(dest Destination) models.RouteDecision {
	return models.RouteDecision{
		ChannelID: dest.ChannelID,
		ThreadID:  dest.ThreadID,
	}
}

// String describes the table for startup logging.
func (t *Table) String() string {
	return fmt.Sprintf("route table: %d kinds, %d tenant overrides", len(t.Routes), len(t.PerTenant))
}
