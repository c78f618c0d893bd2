// Package menu exposes the orderable catalog as a read-only, ordered lookup.
package menu

import (
	"strconv"
	"strings"

	"order-agent/internal/models"
)

// Catalog is an ordered snapshot of the menu. Position i+1 is selectable by typing "i+1".
type Catalog struct {
	entries []models.MenuEntry
}

// NewCatalog copies entries, keeping their order. A positive limit caps the catalog size.
func NewCatalog(entries []models.MenuEntry, limit int) Catalog {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	copied := make([]models.MenuEntry, len(entries))
	copy(copied, entries)
	return Catalog{entries: copied}
}

// Entries returns a copy of the catalog entries in selection order.
func (c Catalog) Entries() []models.MenuEntry {
	copied := make([]models.MenuEntry, len(c.entries))
	copy(copied, c.entries)
	return copied
}

func (c Catalog) Len() int {
	return len(c.entries)
}

// At returns the entry for a 1-based ordinal.
func (c Catalog) At(ordinal int) (models.MenuEntry, bool) {
	if ordinal < 1 || ordinal > len(c.entries) {
		return models.MenuEntry{}, false
	}
	return c.entries[ordinal-1], true
}

// Find resolves a 1-based ordinal or a case-insensitive item name.
// An exact name wins; otherwise the text must contain exactly one entry name.
func (c Catalog) Find(token string) (models.MenuEntry, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.MenuEntry{}, false
	}

	if n, err := strconv.Atoi(token); err == nil {
		return c.At(n)
	}

	return c.FindByName(token)
}

// FindByName matches a name case-insensitively. Ambiguous text is not-found.
func (c Catalog) FindByName(text string) (models.MenuEntry, bool) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return models.MenuEntry{}, false
	}

	for _, e := range c.entries {
		if strings.ToLower(e.Name) == needle {
			return e, true
		}
	}

	var (
		match models.MenuEntry
		found int
	)
	for _, e := range c.entries {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name != "" && strings.Contains(needle, name) {
			match = e
			found++
		}
	}
	if found != 1 {
		return models.MenuEntry{}, false
	}
	return match, true
}
