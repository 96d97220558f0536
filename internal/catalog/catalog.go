// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package catalog holds the configured role categories and the subset of
// their roles that currently exist on the platform.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
)

//go:embed default.toml
var defaultCatalog []byte

// Category is an ordered group of self-assignable roles.
type Category struct {
	Name  string   `toml:"name"`
	Roles []string `toml:"roles"`
}

type file struct {
	Protected  []string   `toml:"protected"`
	Categories []Category `toml:"category"`
}

// RoleLister lists the role names that exist on the platform.
type RoleLister interface {
	ListRoleNames(ctx context.Context) ([]string, error)
}

// Catalog is safe for concurrent use. Readers always see a complete
// available-roles snapshot; Refresh replaces it in one step.
type Catalog struct {
	refreshedAt time.Time
	protected   map[string]struct{}
	available   map[string]struct{}
	categories  []Category
	refreshMu   sync.Mutex
	mu          sync.RWMutex
}

// New creates a catalog with no roles available until the first Refresh.
func New(categories []Category, protected []string) *Catalog {
	cats := make([]Category, len(categories))
	for i, c := range categories {
		cats[i] = Category{Name: c.Name, Roles: append([]string(nil), c.Roles...)}
	}
	return &Catalog{
		categories: cats,
		protected:  lo.SliceToMap(protected, func(name string) (string, struct{}) { return name, struct{}{} }),
		available:  map[string]struct{}{},
	}
}

// Load reads a catalog file, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := validate(f); err != nil {
		return nil, err
	}
	return New(f.Categories, f.Protected), nil
}

func validate(f file) error {
	if len(f.Categories) == 0 {
		return errors.New("catalog: no categories defined")
	}
	seen := map[string]bool{}
	for i, c := range f.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("catalog: category %d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("catalog: duplicate category %q", name)
		}
		seen[name] = true
		if len(c.Roles) == 0 {
			return fmt.Errorf("catalog: category %q has no roles", name)
		}
		if dup := lo.FindDuplicates(c.Roles); len(dup) > 0 {
			return fmt.Errorf("catalog: category %q lists %q twice", name, dup[0])
		}
		if lo.Contains(c.Roles, "") {
			return fmt.Errorf("catalog: category %q has an empty role name", name)
		}
	}
	return nil
}

// Refresh recomputes which catalog roles exist on the platform. Protected
// roles never enter the snapshot, even when a category lists them.
// Concurrent refreshes are serialized; a failed refresh keeps the previous
// snapshot.
func (c *Catalog) Refresh(ctx context.Context, lister RoleLister) (int, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	names, err := lister.ListRoleNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing platform roles: %w", err)
	}
	existing := lo.SliceToMap(names, func(name string) (string, struct{}) { return name, struct{}{} })

	next := make(map[string]struct{})
	for _, cat := range c.categories {
		for _, role := range cat.Roles {
			if c.IsProtected(role) {
				continue
			}
			if _, ok := existing[role]; ok {
				next[role] = struct{}{}
			}
		}
	}

	c.mu.Lock()
	c.available = next
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	return len(next), nil
}

// RefreshedAt returns when the last successful refresh finished.
func (c *Catalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// IsProtected reports whether role must never be granted or revoked by members.
func (c *Catalog) IsProtected(role string) bool {
	_, ok := c.protected[role]
	return ok
}

// IsAvailable reports whether role is in the catalog and exists on the platform.
func (c *Catalog) IsAvailable(role string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.available[role]
	return ok
}

// AvailableCount returns the size of the current snapshot.
func (c *Catalog) AvailableCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.available)
}

// Categories returns every configured category in order.
func (c *Catalog) Categories() []Category {
	return lo.Map(c.categories, func(cat Category, _ int) Category {
		return Category{Name: cat.Name, Roles: append([]string(nil), cat.Roles...)}
	})
}

// Contains reports whether role is configured under category.
func (c *Catalog) Contains(category, role string) bool {
	cat, ok := c.find(category)
	return ok && lo.Contains(cat.Roles, role)
}

// AvailableRoles returns the roles of category that exist on the platform,
// in catalog order. Unknown categories yield nil.
func (c *Catalog) AvailableRoles(category string) []string {
	cat, ok := c.find(category)
	if !ok {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filterAvailable(cat.Roles)
}

// Offered returns the categories a member may pick: those with at least one
// available role, each trimmed to its available roles.
func (c *Catalog) Offered() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return lo.FilterMap(c.categories, func(cat Category, _ int) (Category, bool) {
		roles := c.filterAvailable(cat.Roles)
		return Category{Name: cat.Name, Roles: roles}, len(roles) > 0
	})
}

// IsOffered reports whether category currently has an available role.
func (c *Catalog) IsOffered(category string) bool {
	return len(c.AvailableRoles(category)) > 0
}

// Key returns a short fixed-length token for a role or category name, for
// use where the platform limits identifier length.
func Key(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return fmt.Sprintf("%08x", h.Sum32())
}

// RoleByKey resolves a key from Key against the available roles of
// category. A role that has since become unavailable does not resolve.
func (c *Catalog) RoleByKey(category, key string) (string, bool) {
	return lo.Find(c.AvailableRoles(category), func(role string) bool { return Key(role) == key })
}

// CategoryByKey resolves a key from Key against the offered categories.
func (c *Catalog) CategoryByKey(key string) (string, bool) {
	cat, ok := lo.Find(c.Offered(), func(cat Category) bool { return Key(cat.Name) == key })
	return cat.Name, ok
}

// filterAvailable must be called with mu held.
func (c *Catalog) filterAvailable(roles []string) []string {
	return lo.Filter(roles, func(role string, _ int) bool {
		_, ok := c.available[role]
		return ok
	})
}

func (c *Catalog) find(category string) (Category, bool) {
	return lo.Find(c.categories, func(cat Category) bool {
		return cat.Name == category
	})
}
