package meta

import (
	"context"

	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
)

// dummyRootID resolves the virtual containment root node.
func (m *Manager) dummyRootID(tx *graph.Tx) (int64, error) {
	id, found, err := tx.IndexGet(graph.LabelSpecialNodes, graph.IndexKeyName, NodeDummyRoot)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errs.MetadataNotFound("containment root %s (database not bootstrapped?)", NodeDummyRoot)
	}
	return id, nil
}

// containmentParentID resolves a containment parent: the named class, or the
// virtual root when parentName is empty.
func (m *Manager) containmentParentID(tx *graph.Tx, parentName string) (int64, error) {
	if parentName == "" || parentName == NodeDummyRoot {
		return m.dummyRootID(tx)
	}
	return m.classNodeByName(tx, parentName)
}

// GetSubClasses lists the subclasses of a class, breadth-first. recursive
// false stops at direct subclasses.
func (m *Manager) GetSubClasses(ctx context.Context, className string, recursive, includeAbstract, includeSelf bool) ([]*ClassDefinition, error) {
	var out []*ClassDefinition
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		rootID, err := m.classNodeByName(tx, className)
		if err != nil {
			return err
		}
		type item struct {
			id    int64
			depth int
		}
		queue := []item{{rootID, 0}}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			def, err := m.readClass(tx, current.id)
			if err != nil {
				return err
			}
			if current.depth > 0 || includeSelf {
				if includeAbstract || !def.Abstract {
					out = append(out, def)
				}
			}
			if recursive || current.depth == 0 {
				edges, err := tx.InEdges(current.id, graph.RelExtends)
				if err != nil {
					return err
				}
				for _, e := range edges {
					queue = append(queue, item{e.Start, current.depth + 1})
				}
			}
		}
		return nil
	})
	return out, err
}

// concreteDescendantsTx collects the non-abstract classes at or below the
// given class node, breadth-first over EXTENDS.
func (m *Manager) concreteDescendantsTx(tx *graph.Tx, classID int64) ([]string, error) {
	var out []string
	queue := []int64{classID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		props, err := tx.Properties(id)
		if err != nil {
			return nil, err
		}
		if !ParseBool(props[propAbstract]) {
			out = append(out, props[propName])
		}
		edges, err := tx.InEdges(id, graph.RelExtends)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			queue = append(queue, e.Start)
		}
	}
	return out, nil
}

// expandedPossibleChildrenTx resolves the concrete, instantiable possible
// children of a containment parent: concrete rule targets directly, abstract
// targets expanded to their concrete descendants.
func (m *Manager) expandedPossibleChildrenTx(tx *graph.Tx, parentID int64) ([]string, error) {
	edges, err := tx.OutEdges(parentID, graph.RelPossibleChild)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range edges {
		props, err := tx.Properties(e.End)
		if err != nil {
			return nil, err
		}
		if ParseBool(props[propAbstract]) {
			concrete, err := m.concreteDescendantsTx(tx, e.End)
			if err != nil {
				return nil, err
			}
			for _, name := range concrete {
				if !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
			}
			continue
		}
		if name := props[propName]; !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// GetPossibleChildren returns the abstract-expanded set of concrete classes
// instantiable under the parent (the virtual root when parentName is empty).
// Results are cached per parent and invalidated only by containment-rule
// mutations.
func (m *Manager) GetPossibleChildren(ctx context.Context, parentName string) ([]string, error) {
	key := parentName
	if key == "" {
		key = NodeDummyRoot
	}
	if names, ok := m.cache.PossibleChildren(key); ok {
		return names, nil
	}
	var names []string
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		parentID, err := m.containmentParentID(tx, parentName)
		if err != nil {
			return err
		}
		names, err = m.expandedPossibleChildrenTx(tx, parentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.cache.PutPossibleChildren(key, names)
	return names, nil
}

// GetPossibleChildrenNoRecursive returns the direct rule targets, abstract
// classes included, without expansion and without caching.
func (m *Manager) GetPossibleChildrenNoRecursive(ctx context.Context, parentName string) ([]string, error) {
	var names []string
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		parentID, err := m.containmentParentID(tx, parentName)
		if err != nil {
			return err
		}
		edges, err := tx.OutEdges(parentID, graph.RelPossibleChild)
		if err != nil {
			return err
		}
		for _, e := range edges {
			name, _, err := tx.Property(e.End, propName)
			if err != nil {
				return err
			}
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

// AddPossibleChildren registers containment rules parent -> each child.
// Children must be business classes, and a child already coverable under the
// parent (directly, or through an abstract rule target) is rejected to keep
// the rule set free of redundant edges.
func (m *Manager) AddPossibleChildren(ctx context.Context, parentName string, childNames ...string) error {
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		parentID, err := m.containmentParentID(tx, parentName)
		if err != nil {
			return err
		}
		covered, err := m.expandedPossibleChildrenTx(tx, parentID)
		if err != nil {
			return err
		}
		coveredSet := make(map[string]bool, len(covered))
		for _, name := range covered {
			coveredSet[name] = true
		}
		directEdges, err := tx.OutEdges(parentID, graph.RelPossibleChild)
		if err != nil {
			return err
		}
		directSet := make(map[int64]bool, len(directEdges))
		for _, e := range directEdges {
			directSet[e.End] = true
		}

		for _, childName := range childNames {
			childID, err := m.classNodeByName(tx, childName)
			if err != nil {
				return err
			}
			isBusiness, err := m.isSubclassTx(tx, ClassInventoryObject, childName)
			if err != nil {
				return err
			}
			if !isBusiness {
				return errs.InvalidArgument("class %s is not a business class and can not be a possible child", childName)
			}
			if directSet[childID] {
				return errs.InvalidArgument("class %s is already a possible child of %s", childName, displayParent(parentName))
			}

			childDef, err := m.readClass(tx, childID)
			if err != nil {
				return err
			}
			if childDef.Abstract {
				concrete, err := m.concreteDescendantsTx(tx, childID)
				if err != nil {
					return err
				}
				for _, name := range concrete {
					if coveredSet[name] {
						return errs.InvalidArgument("class %s (via abstract %s) is already a possible child of %s",
							name, childName, displayParent(parentName))
					}
				}
				for _, name := range concrete {
					coveredSet[name] = true
				}
			} else {
				if coveredSet[childName] {
					return errs.InvalidArgument("class %s is already a possible child of %s", childName, displayParent(parentName))
				}
				coveredSet[childName] = true
			}

			if _, err := tx.CreateEdge(graph.RelPossibleChild, parentID, childID, ""); err != nil {
				return err
			}
			directSet[childID] = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	key := parentName
	if key == "" {
		key = NodeDummyRoot
	}
	m.cache.RemovePossibleChildren(key)
	m.logger.Info("containment rules added",
		zap.String("parent", displayParent(parentName)), zap.Strings("children", childNames))
	return nil
}

// RemovePossibleChildren drops the direct containment rules parent -> child.
func (m *Manager) RemovePossibleChildren(ctx context.Context, parentName string, childNames ...string) error {
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		parentID, err := m.containmentParentID(tx, parentName)
		if err != nil {
			return err
		}
		for _, childName := range childNames {
			childID, err := m.classNodeByName(tx, childName)
			if err != nil {
				return err
			}
			edges, err := tx.OutEdges(parentID, graph.RelPossibleChild)
			if err != nil {
				return err
			}
			removed := false
			for _, e := range edges {
				if e.End == childID {
					if err := tx.DeleteEdge(e.ID); err != nil {
						return err
					}
					removed = true
				}
			}
			if !removed {
				return errs.MetadataNotFound("class %s is not a direct possible child of %s",
					childName, displayParent(parentName))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	key := parentName
	if key == "" {
		key = NodeDummyRoot
	}
	m.cache.RemovePossibleChildren(key)
	return nil
}

// GetUpstreamContainmentHierarchy returns the classes whose instances may
// contain instances of className, consulting the rules registered on the
// class and on each of its ancestors. recursive walks the containment chain
// upward. The virtual root marker is never part of the answer.
func (m *Manager) GetUpstreamContainmentHierarchy(ctx context.Context, className string, recursive bool) ([]string, error) {
	var out []string
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		seen := make(map[string]bool)
		queue := []string{className}
		visited := map[string]bool{className: true}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			parents, err := m.directContainersTx(tx, current)
			if err != nil {
				return err
			}
			for _, p := range parents {
				if p == NodeDummyRoot || seen[p] {
					continue
				}
				seen[p] = true
				out = append(out, p)
				if recursive && !visited[p] {
					visited[p] = true
					queue = append(queue, p)
				}
			}
		}
		return nil
	})
	return out, err
}

// directContainersTx finds the rule parents covering className: rules naming
// the class itself or any of its abstract ancestors.
func (m *Manager) directContainersTx(tx *graph.Tx, className string) ([]string, error) {
	var out []string
	currentID, err := m.classNodeByName(tx, className)
	if err != nil {
		return nil, err
	}
	for {
		edges, err := tx.InEdges(currentID, graph.RelPossibleChild)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			label, err := tx.NodeLabel(e.Start)
			if err != nil {
				return nil, err
			}
			if label == graph.LabelSpecialNodes {
				out = append(out, NodeDummyRoot)
				continue
			}
			name, _, err := tx.Property(e.Start, propName)
			if err != nil {
				return nil, err
			}
			out = append(out, name)
		}
		parentEdge, err := tx.SingleOut(currentID, graph.RelExtends)
		if err != nil {
			if isEdgeNotFound(err) {
				return out, nil
			}
			return nil, err
		}
		currentID = parentEdge.End
	}
}

// MoveClass reparents a class. The inheritance tree must stay acyclic, so
// the new parent can not be the class itself or one of its descendants.
// Attribute lists are creation-time copies and are not recomputed.
func (m *Manager) MoveClass(ctx context.Context, className, newParentName string) error {
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		classID, err := m.classNodeByName(tx, className)
		if err != nil {
			return err
		}
		newParentID, err := m.classNodeByName(tx, newParentName)
		if err != nil {
			return err
		}
		wouldCycle, err := m.isSubclassTx(tx, className, newParentName)
		if err != nil {
			return err
		}
		if wouldCycle {
			return errs.InvalidArgument("moving %s under %s would create an inheritance cycle", className, newParentName)
		}
		if _, err := tx.DeleteOutEdges(classID, graph.RelExtends, ""); err != nil {
			return err
		}
		_, err = tx.CreateEdge(graph.RelExtends, classID, newParentID, "")
		return err
	})
	if err != nil {
		return err
	}
	m.cache.RemoveSubtree(className)
	m.refreshSubtree(ctx, className)
	return nil
}

func displayParent(parentName string) string {
	if parentName == "" {
		return NodeDummyRoot
	}
	return parentName
}
