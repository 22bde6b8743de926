package app

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
)

// poolEdgeName tags the CHILD_OF_SPECIAL edges forming the pool containment
// tree, which lives outside the primary CHILD_OF hierarchy.
const poolEdgeName = "pool"

// Pool is a named, typed container of instances or of other pools.
type Pool struct {
	ID          int64
	Name        string
	Description string
	ClassName   string // class (or superclass) of the instances it holds
	Type        int
}

// CreateRootPool creates a pool attached to nothing.
func (s *Services) CreateRootPool(ctx context.Context, name, description, instancesOfClass string, poolType int) (int64, error) {
	if _, err := s.meta.GetClass(ctx, instancesOfClass); err != nil {
		return 0, err
	}
	var id int64
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		var err error
		id, err = s.writePoolNode(tx, name, description, instancesOfClass, poolType)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("root pool created", zap.String("pool", name))
	return id, nil
}

// CreatePoolInObject creates a pool hanging off a business object.
func (s *Services) CreatePoolInObject(ctx context.Context, parentClassName string, parentID int64, name, description, instancesOfClass string, poolType int) (int64, error) {
	if _, err := s.objects.GetObject(ctx, parentClassName, parentID); err != nil {
		return 0, err
	}
	if _, err := s.meta.GetClass(ctx, instancesOfClass); err != nil {
		return 0, err
	}
	var id int64
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		var err error
		id, err = s.writePoolNode(tx, name, description, instancesOfClass, poolType)
		if err != nil {
			return err
		}
		_, err = tx.CreateEdge(graph.RelChildOfSpecial, id, parentID, poolEdgeName)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreatePoolInPool nests a pool inside another pool.
func (s *Services) CreatePoolInPool(ctx context.Context, parentPoolID int64, name, description, instancesOfClass string, poolType int) (int64, error) {
	if _, err := s.meta.GetClass(ctx, instancesOfClass); err != nil {
		return 0, err
	}
	var id int64
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		if err := s.requirePool(tx, parentPoolID); err != nil {
			return err
		}
		var err error
		id, err = s.writePoolNode(tx, name, description, instancesOfClass, poolType)
		if err != nil {
			return err
		}
		_, err = tx.CreateEdge(graph.RelChildOfSpecial, id, parentPoolID, poolEdgeName)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetPool retrieves one pool by id.
func (s *Services) GetPool(ctx context.Context, id int64) (*Pool, error) {
	var pool *Pool
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		if err := s.requirePool(tx, id); err != nil {
			return err
		}
		var err error
		pool, err = s.readPool(tx, id)
		return err
	})
	return pool, err
}

// GetRootPools lists the pools attached to nothing, filtered by the class
// they hold: exact match, or subclass-inclusive when includeSubclasses is
// set. poolType negative matches any type.
func (s *Services) GetRootPools(ctx context.Context, className string, poolType int, includeSubclasses bool) ([]*Pool, error) {
	var pools []*Pool
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		ids, err := tx.NodesByLabel(graph.LabelPools)
		if err != nil {
			return err
		}
		for _, id := range ids {
			parents, err := tx.OutEdges(id, graph.RelChildOfSpecial)
			if err != nil {
				return err
			}
			if len(parents) > 0 {
				continue
			}
			pool, err := s.readPool(tx, id)
			if err != nil {
				return err
			}
			if className != "" && pool.ClassName != className {
				if !includeSubclasses {
					continue
				}
				ok, err := s.meta.SubclassOfTx(tx, className, pool.ClassName)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			if poolType >= 0 && pool.Type != poolType {
				continue
			}
			pools = append(pools, pool)
		}
		return nil
	})
	return pools, err
}

// GetPoolsInPool lists the pools nested directly inside a pool.
func (s *Services) GetPoolsInPool(ctx context.Context, parentPoolID int64) ([]*Pool, error) {
	var pools []*Pool
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		if err := s.requirePool(tx, parentPoolID); err != nil {
			return err
		}
		edges, err := tx.InEdges(parentPoolID, graph.RelChildOfSpecial)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.Name != poolEdgeName {
				continue
			}
			label, err := tx.NodeLabel(e.Start)
			if err != nil {
				return err
			}
			if label != graph.LabelPools {
				continue
			}
			pool, err := s.readPool(tx, e.Start)
			if err != nil {
				return err
			}
			pools = append(pools, pool)
		}
		return nil
	})
	return pools, err
}

// DeletePool removes a pool, every non-pool object it contains, and,
// recursively, its child pools.
func (s *Services) DeletePool(ctx context.Context, id int64) error {
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		if err := s.requirePool(tx, id); err != nil {
			return err
		}
		return s.deletePoolTx(tx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("pool deleted", zap.Int64("pool", id))
	return nil
}

func (s *Services) deletePoolTx(tx *graph.Tx, id int64) error {
	edges, err := tx.InEdges(id, graph.RelChildOfSpecial)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if e.Name != poolEdgeName {
			continue
		}
		label, err := tx.NodeLabel(e.Start)
		if err != nil {
			return err
		}
		if label == graph.LabelPools {
			if err := s.deletePoolTx(tx, e.Start); err != nil {
				return err
			}
			continue
		}
		// Contained object: delete it and its containment subtree.
		if err := s.deleteObjectSubtreeTx(tx, e.Start); err != nil {
			return err
		}
	}
	return tx.DeleteNode(id)
}

func (s *Services) deleteObjectSubtreeTx(tx *graph.Tx, rootID int64) error {
	subtree := []int64{rootID}
	for cursor := 0; cursor < len(subtree); cursor++ {
		edges, err := tx.InEdges(subtree[cursor], graph.RelChildOf)
		if err != nil {
			return err
		}
		for _, e := range edges {
			subtree = append(subtree, e.Start)
		}
	}
	for _, nodeID := range subtree {
		if err := tx.IndexRemove(graph.LabelObjects, graph.IndexKeyID, strconv.FormatInt(nodeID, 10)); err != nil {
			return err
		}
		if err := tx.DeleteNode(nodeID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Services) requirePool(tx *graph.Tx, id int64) error {
	_, found, err := tx.IndexGet(graph.LabelPools, graph.IndexKeyID, strconv.FormatInt(id, 10))
	if err != nil {
		return err
	}
	if !found {
		return errs.ApplicationNotFound("pool with id %d", id)
	}
	return nil
}

func (s *Services) writePoolNode(tx *graph.Tx, name, description, instancesOfClass string, poolType int) (int64, error) {
	id, err := tx.CreateNode(graph.LabelPools)
	if err != nil {
		return 0, err
	}
	now := time.Now().Unix()
	if err := tx.SetProperties(id, map[string]graph.Value{
		"name":         graph.Text(name),
		"description":  graph.Text(description),
		"className":    graph.Text(instancesOfClass),
		"type":         graph.Number(strconv.Itoa(poolType), float64(poolType)),
		"creationDate": graph.Number(strconv.FormatInt(now, 10), float64(now)),
	}); err != nil {
		return 0, err
	}
	if err := tx.IndexAdd(graph.LabelPools, graph.IndexKeyID, strconv.FormatInt(id, 10), id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Services) readPool(tx *graph.Tx, id int64) (*Pool, error) {
	props, err := tx.Properties(id)
	if err != nil {
		return nil, err
	}
	pool := &Pool{ID: id, Name: props["name"], Description: props["description"], ClassName: props["className"]}
	if t, err := strconv.Atoi(props["type"]); err == nil {
		pool.Type = t
	}
	return pool, nil
}
