package object

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/meta"
)

// ListTypeItem is an instance of a list type class, usable as the target of
// reference attributes.
type ListTypeItem struct {
	ID          int64
	Name        string
	DisplayName string
	ClassName   string
}

// CreateListTypeItem instantiates a list type class. Abstract and in-design
// classes are refused, as are classes outside the list type hierarchy.
func (m *Mapper) CreateListTypeItem(ctx context.Context, className, name, displayName string) (int64, error) {
	def, err := m.meta.GetClass(ctx, className)
	if err != nil {
		return 0, err
	}
	isList, err := m.meta.IsSubclassOf(ctx, meta.ClassGenericObjectList, className)
	if err != nil {
		return 0, err
	}
	if !isList || className == meta.ClassGenericObjectList {
		return 0, errs.InvalidArgument("class %s is not a list type", className)
	}
	if def.Abstract {
		return 0, errs.NotPermitted("abstract class %s can not be instantiated", className)
	}
	if def.InDesign {
		return 0, errs.NotPermitted("class %s is still in design and can not be instantiated", className)
	}

	var id int64
	err = m.store.Update(ctx, func(tx *graph.Tx) error {
		id, err = tx.CreateNode(graph.LabelListTypeItems)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		props := map[string]graph.Value{
			meta.AttrName:         graph.Text(name),
			"displayName":         graph.Text(displayName),
			meta.AttrCreationDate: graph.Number(strconv.FormatInt(now, 10), float64(now)),
		}
		if err := tx.SetProperties(id, props); err != nil {
			return err
		}
		if _, err := tx.CreateEdge(graph.RelInstanceOf, id, def.ID, ""); err != nil {
			return err
		}
		return tx.IndexAdd(graph.LabelListTypeItems, graph.IndexKeyID, strconv.FormatInt(id, 10), id)
	})
	if err != nil {
		return 0, err
	}
	m.logger.Info("list type item created", zap.String("class", className), zap.String("name", name))
	return id, nil
}

// GetListTypeItems lists the items of a list type class and its subclasses.
func (m *Mapper) GetListTypeItems(ctx context.Context, className string) ([]ListTypeItem, error) {
	classes, err := m.meta.GetSubClasses(ctx, className, true, false, true)
	if err != nil {
		return nil, err
	}
	var out []ListTypeItem
	err = m.store.View(ctx, func(tx *graph.Tx) error {
		for _, def := range classes {
			edges, err := tx.InEdges(def.ID, graph.RelInstanceOf)
			if err != nil {
				return err
			}
			for _, e := range edges {
				label, err := tx.NodeLabel(e.Start)
				if err != nil {
					return err
				}
				if label != graph.LabelListTypeItems {
					continue
				}
				props, err := tx.Properties(e.Start)
				if err != nil {
					return err
				}
				out = append(out, ListTypeItem{
					ID:          e.Start,
					Name:        props[meta.AttrName],
					DisplayName: props["displayName"],
					ClassName:   def.Name,
				})
			}
		}
		return nil
	})
	return out, err
}

// GetListTypeItem retrieves a single item by class and id.
func (m *Mapper) GetListTypeItem(ctx context.Context, className string, id int64) (*ListTypeItem, error) {
	var item *ListTypeItem
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		_, found, err := tx.IndexGet(graph.LabelListTypeItems, graph.IndexKeyID, strconv.FormatInt(id, 10))
		if err != nil {
			return err
		}
		if !found {
			return errs.ObjectNotFound("list type item %d", id)
		}
		classEdge, err := tx.SingleOut(id, graph.RelInstanceOf)
		if err != nil {
			return err
		}
		itemClass, _, err := tx.Property(classEdge.End, meta.AttrName)
		if err != nil {
			return err
		}
		if itemClass != className {
			return errs.ObjectNotFound("list type item %d is not an instance of %s", id, className)
		}
		props, err := tx.Properties(id)
		if err != nil {
			return err
		}
		item = &ListTypeItem{ID: id, Name: props[meta.AttrName], DisplayName: props["displayName"], ClassName: itemClass}
		return nil
	})
	return item, err
}

// DeleteListTypeItem removes an item. With releaseRelationships the edges
// referencing the item are dropped first; without it, any remaining
// reference aborts the deletion so no attribute is left dangling.
func (m *Mapper) DeleteListTypeItem(ctx context.Context, className string, id int64, releaseRelationships bool) error {
	if _, err := m.GetListTypeItem(ctx, className, id); err != nil {
		return err
	}
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		incoming, err := tx.InEdges(id, graph.RelRelatedTo)
		if err != nil {
			return err
		}
		if len(incoming) > 0 && !releaseRelationships {
			return errs.NotPermitted("list type item %d is referenced by %d attributes", id, len(incoming))
		}
		if err := tx.IndexRemove(graph.LabelListTypeItems, graph.IndexKeyID, strconv.FormatInt(id, 10)); err != nil {
			return err
		}
		return tx.DeleteNode(id) // drops the remaining edges with the node
	})
	if err != nil {
		return err
	}
	m.logger.Info("list type item deleted", zap.String("class", className), zap.Int64("id", id))
	return nil
}
