// Package entity defines the static per-entity configuration that
// parameterizes the generic CRUD engine, and the registry resolving an
// entity kind to its configuration.
package entity

import (
	"context"
	"fmt"

	"github.com/backofficehq/backoffice/internal/models"
)

// Kind tags one underlying entity model ("users", "courses", ...).
type Kind string

// Relation describes one includable related object set.
type Relation struct {
	// Name is the key the related records are attached under.
	Name string
	// Kind is the related entity.
	Kind Kind
	// LocalKey names the field on this entity referencing the relation
	// (one-relations, e.g. product.categoryId).
	LocalKey string
	// ForeignKey names the field on the related entity referencing this one
	// (many-relations, e.g. class.courseId).
	ForeignKey string
	// Many selects between a single attached record and a list.
	Many bool
}

// Hooks is the extension point invoked around create and update. Before
// hooks may mutate the payload; a Before error aborts the mutation. After
// hooks run once the mutation has committed.
type Hooks interface {
	BeforeCreate(ctx context.Context, actor models.Actor, rec models.Record) error
	AfterCreate(ctx context.Context, actor models.Actor, rec models.Record) error
	BeforeUpdate(ctx context.Context, actor models.Actor, id int64, rec models.Record) error
	AfterUpdate(ctx context.Context, actor models.Actor, rec models.Record) error
}

// NopHooks implements Hooks with no-ops; feature modules embed it and
// override what they need.
type NopHooks struct{}

func (NopHooks) BeforeCreate(context.Context, models.Actor, models.Record) error { return nil }
func (NopHooks) AfterCreate(context.Context, models.Actor, models.Record) error  { return nil }
func (NopHooks) BeforeUpdate(context.Context, models.Actor, int64, models.Record) error {
	return nil
}
func (NopHooks) AfterUpdate(context.Context, models.Actor, models.Record) error { return nil }

// Config is the immutable per-entity configuration supplied by each feature
// module at startup.
type Config struct {
	Kind          Kind
	DisplayName   string
	Route         string
	PermissionKey string
	// DefaultSort applies when a list request carries no order directives.
	DefaultSort []models.Sort
	// Relations is the allow-list of includable related objects, keyed by
	// include name. Requested names outside the list are ignored.
	Relations map[string]Relation
	// UniqueFields are checked per tenant before create/update; a violation
	// surfaces as a conflict error naming DisplayName.
	UniqueFields []string
	// RequiredFields are validated on create.
	RequiredFields []string
	// NoCompanyScope opts this entity out of tenant scoping (platform-level
	// entities such as companies themselves).
	NoCompanyScope bool
	Hooks          Hooks
}

// validate checks the config is complete enough to register.
func (c *Config) validate() error {
	if c.Kind == "" {
		return fmt.Errorf("entity config missing kind")
	}

	if c.Route == "" {
		return fmt.Errorf("entity %q missing route", c.Kind)
	}

	if c.PermissionKey == "" {
		return fmt.Errorf("entity %q missing permission key", c.Kind)
	}

	if c.DisplayName == "" {
		c.DisplayName = string(c.Kind)
	}

	if c.Hooks == nil {
		c.Hooks = NopHooks{}
	}

	return nil
}

// Registry maps entity kinds to their configuration. Populated once at
// startup; read-only afterwards.
type Registry struct {
	byKind map[Kind]*Config
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[Kind]*Config)}
}

// Register adds an entity configuration. Duplicate kinds are a startup error.
func (r *Registry) Register(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	if _, exists := r.byKind[cfg.Kind]; exists {
		return fmt.Errorf("entity %q registered twice", cfg.Kind)
	}

	r.byKind[cfg.Kind] = &cfg

	return nil
}

// Get resolves a kind to its configuration.
func (r *Registry) Get(kind Kind) (*Config, error) {
	cfg, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrEntityNotFound, kind)
	}

	return cfg, nil
}

// All returns every registered configuration (iteration order unspecified).
func (r *Registry) All() []*Config {
	out := make([]*Config, 0, len(r.byKind))
	for _, cfg := range r.byKind {
		out = append(out, cfg)
	}

	return out
}
