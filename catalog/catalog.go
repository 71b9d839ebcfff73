// Package catalog maps table names to the providers that supply their
// batches.
//
// A Catalog belongs to one engine context. Registration is rare and lookups
// happen on every planned query, so the map sits behind a sync.RWMutex.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vegasq/quiver/internal/errs"
)

// Releasable is implemented by providers that hold reference-counted
// memory, such as MemTable. The catalog retains them while registered.
type Releasable interface {
	Retain()
	Release()
}

// Catalog is a concurrency-safe name to TableProvider registry.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]TableProvider
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		tables: make(map[string]TableProvider),
	}
}

// Register adds a table. Registering a name twice fails with
// errs.ErrDuplicateTable; the existing table is left untouched. A
// Releasable table is retained until it is deregistered.
func (c *Catalog) Register(name string, table TableProvider) error {
	if name == "" {
		return fmt.Errorf("%w: table name cannot be empty", errs.ErrInvalidArgument)
	}
	if table == nil {
		return fmt.Errorf("%w: table %q has no provider", errs.ErrInvalidArgument, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[name]; exists {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateTable, name)
	}
	if r, ok := table.(Releasable); ok {
		r.Retain()
	}
	c.tables[name] = table
	return nil
}

// Deregister removes a table and releases it if it is Releasable. Scans
// already running keep their own reference.
func (c *Catalog) Deregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, exists := c.tables[name]
	if !exists {
		return fmt.Errorf("%w: %s", errs.ErrTableNotFound, name)
	}
	delete(c.tables, name)
	release(table)
	return nil
}

// Close deregisters every table.
func (c *Catalog) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, table := range c.tables {
		delete(c.tables, name)
		release(table)
	}
}

func release(table TableProvider) {
	if r, ok := table.(Releasable); ok {
		r.Release()
	}
}

// Lookup returns the provider registered under name.
func (c *Catalog) Lookup(name string) (TableProvider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	table, exists := c.tables[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", errs.ErrTableNotFound, name)
	}
	return table, nil
}

// Exists reports whether name is registered.
func (c *Catalog) Exists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.tables[name]
	return exists
}

// Names returns the registered table names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
