// Package catalog holds the fixed set of selectable food categories.
package catalog

import (
	"path/filepath"

	"github.com/baseera/baseera-go/internal/conf"
)

// Dish is one catalog entry. The catalog is static configuration, entries are
// never added or removed at runtime.
type Dish struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ThumbnailPath string `json:"thumbnail"`
}

// Catalog is an ordered, closed set of dishes with id lookup.
type Catalog struct {
	dishes []Dish
	byID   map[string]*Dish
}

// New builds a catalog from the configured dish list. Thumbnail paths are
// resolved relative to the assets directory.
func New(settings *conf.Settings) *Catalog {
	c := &Catalog{
		dishes: make([]Dish, 0, len(settings.Dishes)),
		byID:   make(map[string]*Dish, len(settings.Dishes)),
	}
	for i := range settings.Dishes {
		d := &settings.Dishes[i]
		c.dishes = append(c.dishes, Dish{
			ID:            d.ID,
			Name:          d.Name,
			ThumbnailPath: filepath.Join(settings.Dashboard.AssetsDir, d.Image),
		})
	}
	for i := range c.dishes {
		c.byID[c.dishes[i].ID] = &c.dishes[i]
	}
	return c
}

// Get returns the dish for the given id, or false when the id is not part of
// the catalog.
func (c *Catalog) Get(id string) (Dish, bool) {
	if d, ok := c.byID[id]; ok {
		return *d, true
	}
	return Dish{}, false
}

// Contains reports whether id is a member of the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Dishes returns all catalog entries in configuration order.
func (c *Catalog) Dishes() []Dish {
	out := make([]Dish, len(c.dishes))
	copy(out, c.dishes)
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.dishes)
}
