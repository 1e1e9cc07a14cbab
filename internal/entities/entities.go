// Package entities declares the concrete entity catalog served by the
// back-office API. Each configuration parameterizes the generic CRUD
// engine; adding an entity here is all it takes to expose its endpoints.
package entities

import (
	"context"

	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
	"github.com/backofficehq/backoffice/internal/query"
)

// searchNameHooks maintains the diacritic-free searchName field from name
// on every create and update, so lookups match regardless of accents.
type searchNameHooks struct {
	entity.NopHooks
}

func (searchNameHooks) BeforeCreate(_ context.Context, _ models.Actor, rec models.Record) error {
	stampSearchName(rec)

	return nil
}

func (searchNameHooks) BeforeUpdate(_ context.Context, _ models.Actor, _ int64, rec models.Record) error {
	stampSearchName(rec)

	return nil
}

func stampSearchName(rec models.Record) {
	if name, ok := rec["name"].(string); ok && name != "" {
		rec["searchName"] = query.Normalize(name)
	}
}

// Register adds the full entity catalog to the registry.
func Register(reg *entity.Registry) error {
	configs := []entity.Config{
		{
			// Companies are the tenants themselves; platform scope.
			Kind:           "companies",
			DisplayName:    "Company",
			Route:          "companies",
			PermissionKey:  "companies",
			RequiredFields: []string{"name"},
			UniqueFields:   []string{"document"},
			NoCompanyScope: true,
			Hooks:          searchNameHooks{},
		},
		{
			Kind:           "users",
			DisplayName:    "User",
			Route:          "users",
			PermissionKey:  "users",
			RequiredFields: []string{"name", "email"},
			UniqueFields:   []string{"email"},
			DefaultSort:    []models.Sort{{Field: "name", Dir: "asc"}},
			Relations: map[string]entity.Relation{
				"company": {Name: "company", Kind: "companies", LocalKey: "companyId"},
			},
			Hooks: searchNameHooks{},
		},
		{
			Kind:           "courses",
			DisplayName:    "Course",
			Route:          "courses",
			PermissionKey:  "courses",
			RequiredFields: []string{"name"},
			UniqueFields:   []string{"name"},
			DefaultSort:    []models.Sort{{Field: "name", Dir: "asc"}},
			Relations: map[string]entity.Relation{
				"classes": {Name: "classes", Kind: "classes", ForeignKey: "courseId", Many: true},
			},
			Hooks: searchNameHooks{},
		},
		{
			Kind:           "classes",
			DisplayName:    "Class",
			Route:          "classes",
			PermissionKey:  "classes",
			RequiredFields: []string{"name", "courseId"},
			Relations: map[string]entity.Relation{
				"course": {Name: "course", Kind: "courses", LocalKey: "courseId"},
			},
			Hooks: searchNameHooks{},
		},
		{
			Kind:           "categories",
			DisplayName:    "Category",
			Route:          "categories",
			PermissionKey:  "categories",
			RequiredFields: []string{"name"},
			UniqueFields:   []string{"name"},
			DefaultSort:    []models.Sort{{Field: "name", Dir: "asc"}},
			Relations: map[string]entity.Relation{
				"products": {Name: "products", Kind: "products", ForeignKey: "categoryId", Many: true},
			},
			Hooks: searchNameHooks{},
		},
		{
			Kind:           "products",
			DisplayName:    "Product",
			Route:          "products",
			PermissionKey:  "products",
			RequiredFields: []string{"name", "price"},
			Relations: map[string]entity.Relation{
				"category": {Name: "category", Kind: "categories", LocalKey: "categoryId"},
			},
			Hooks: searchNameHooks{},
		},
	}

	for _, cfg := range configs {
		if err := reg.Register(cfg); err != nil {
			return err
		}
	}

	return nil
}
