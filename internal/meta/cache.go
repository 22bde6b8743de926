package meta

import (
	"sync"
)

// ClassCache holds resolved class definitions and expanded possible-children
// lists. It is purely advisory: a miss means "ask storage", never "does not
// exist". The cache is safe for concurrent use and is constructed explicitly
// so tests can run isolated instances.
type ClassCache struct {
	mu               sync.RWMutex
	classes          map[string]*ClassDefinition
	byID             map[int64]string
	children         map[string][]string // inheritance adjacency, parent -> direct subclasses
	possibleChildren map[string][]string // containment, parent -> expanded concrete children
}

// NewClassCache creates an empty cache.
func NewClassCache() *ClassCache {
	return &ClassCache{
		classes:          make(map[string]*ClassDefinition),
		byID:             make(map[int64]string),
		children:         make(map[string][]string),
		possibleChildren: make(map[string][]string),
	}
}

// Get retrieves a class definition by name.
func (c *ClassCache) Get(name string) (*ClassDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.classes[name]
	return def, ok
}

// GetByID retrieves a class definition by node id.
func (c *ClassCache) GetByID(id int64) (*ClassDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	def, ok := c.classes[name]
	return def, ok
}

// Put stores a resolved definition and maintains the inheritance adjacency.
func (c *ClassCache) Put(def *ClassDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.classes[def.Name]; ok {
		c.unlinkLocked(old)
	}
	c.classes[def.Name] = def
	c.byID[def.ID] = def.Name
	if def.Parent != "" {
		c.children[def.Parent] = append(c.children[def.Parent], def.Name)
	}
}

// Remove evicts a single class entry.
func (c *ClassCache) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if def, ok := c.classes[name]; ok {
		c.unlinkLocked(def)
		delete(c.classes, name)
		delete(c.byID, def.ID)
	}
}

func (c *ClassCache) unlinkLocked(def *ClassDefinition) {
	if def.Parent == "" {
		return
	}
	siblings := c.children[def.Parent]
	for i, n := range siblings {
		if n == def.Name {
			c.children[def.Parent] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
}

// RemoveSubtree evicts a class and all its cached descendants, breadth-first
// over the inheritance adjacency. Used after schema mutations, since
// descendant entries hold value-copied attribute lists.
func (c *ClassCache) RemoveSubtree(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		queue = append(queue, c.children[current]...)
		if def, ok := c.classes[current]; ok {
			c.unlinkLocked(def)
			delete(c.classes, current)
			delete(c.byID, def.ID)
		}
	}
}

// IsSubclass walks the cached inheritance chain upward. The second return
// value is false when the chain leaves the cache before an answer is known;
// callers must then fall back to storage. The relation is reflexive.
func (c *ClassCache) IsSubclass(ancestor, name string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	current := name
	for {
		if current == ancestor {
			return true, true
		}
		def, ok := c.classes[current]
		if !ok {
			return false, false
		}
		if def.Parent == "" {
			return false, true
		}
		current = def.Parent
	}
}

// PossibleChildren retrieves the cached expanded children list for a parent
// class name (NodeDummyRoot for the virtual root).
func (c *ClassCache) PossibleChildren(parent string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names, ok := c.possibleChildren[parent]
	return names, ok
}

// PutPossibleChildren stores the expanded children list for a parent.
func (c *ClassCache) PutPossibleChildren(parent string, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.possibleChildren[parent] = names
}

// RemovePossibleChildren evicts one containment entry. Containment caches
// are only invalidated by containment-rule mutations, not by class edits.
func (c *ClassCache) RemovePossibleChildren(parent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.possibleChildren, parent)
}

// ClearPossibleChildren drops every containment entry. Used when a class is
// deleted, since expanded lists may mention it under any parent.
func (c *ClassCache) ClearPossibleChildren() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.possibleChildren = make(map[string][]string)
}
