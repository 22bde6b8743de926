package app

import (
	"context"
	"strconv"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
)

// ObjectView is a visual layout attached to an object. The structure and the
// optional background live in the blob store under generated filenames; the
// graph keeps only the names.
type ObjectView struct {
	ID         int64
	ViewClass  string
	Structure  []byte
	Background []byte
}

// AttachObjectView stores a view for an object. viewClass tags the kind of
// layout (rack, topology, ...).
func (s *Services) AttachObjectView(ctx context.Context, objectID int64, viewClass string, structure, background []byte) (int64, error) {
	structureName, err := s.blobs.Put("view", structure)
	if err != nil {
		return 0, err
	}
	backgroundName := ""
	if len(background) > 0 {
		backgroundName, err = s.blobs.Put("background", background)
		if err != nil {
			return 0, err
		}
	}
	var id int64
	err = s.store.Update(ctx, func(tx *graph.Tx) error {
		if _, found, err := tx.IndexGet(graph.LabelObjects, graph.IndexKeyID, strconv.FormatInt(objectID, 10)); err != nil {
			return err
		} else if !found {
			return errs.ObjectNotFound("object with id %d", objectID)
		}
		id, err = tx.CreateNode(graph.LabelViews)
		if err != nil {
			return err
		}
		if err := tx.SetProperties(id, map[string]graph.Value{
			"className":          graph.Text(viewClass),
			"fileName":           graph.Text(structureName),
			"backgroundFileName": graph.Text(backgroundName),
		}); err != nil {
			return err
		}
		if err := tx.IndexAdd(graph.LabelViews, graph.IndexKeyID, strconv.FormatInt(id, 10), id); err != nil {
			return err
		}
		_, err = tx.CreateEdge(graph.RelHasView, objectID, id, "")
		return err
	})
	if err != nil {
		// The graph write failed; the orphaned blobs are unreachable and
		// cleaned up here.
		_ = s.blobs.Delete(structureName)
		if backgroundName != "" {
			_ = s.blobs.Delete(backgroundName)
		}
		return 0, err
	}
	return id, nil
}

// GetObjectViews loads the views of an object, blob content included.
func (s *Services) GetObjectViews(ctx context.Context, objectID int64) ([]ObjectView, error) {
	type viewMeta struct {
		id             int64
		class          string
		fileName       string
		backgroundName string
	}
	var metas []viewMeta
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		if _, found, err := tx.IndexGet(graph.LabelObjects, graph.IndexKeyID, strconv.FormatInt(objectID, 10)); err != nil {
			return err
		} else if !found {
			return errs.ObjectNotFound("object with id %d", objectID)
		}
		edges, err := tx.OutEdges(objectID, graph.RelHasView)
		if err != nil {
			return err
		}
		for _, e := range edges {
			props, err := tx.Properties(e.End)
			if err != nil {
				return err
			}
			metas = append(metas, viewMeta{
				id:             e.End,
				class:          props["className"],
				fileName:       props["fileName"],
				backgroundName: props["backgroundFileName"],
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	views := make([]ObjectView, 0, len(metas))
	for _, mv := range metas {
		view := ObjectView{ID: mv.id, ViewClass: mv.class}
		if mv.fileName != "" {
			view.Structure, err = s.blobs.Get(mv.fileName)
			if err != nil {
				return nil, err
			}
		}
		if mv.backgroundName != "" {
			view.Background, err = s.blobs.Get(mv.backgroundName)
			if err != nil {
				return nil, err
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// DeleteObjectView removes a view node and its blobs.
func (s *Services) DeleteObjectView(ctx context.Context, viewID int64) error {
	var fileName, backgroundName string
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		if err := requireIndexed(tx, graph.LabelViews, viewID, "view"); err != nil {
			return err
		}
		props, err := tx.Properties(viewID)
		if err != nil {
			return err
		}
		fileName = props["fileName"]
		backgroundName = props["backgroundFileName"]
		return tx.DeleteNode(viewID)
	})
	if err != nil {
		return err
	}
	if fileName != "" {
		_ = s.blobs.Delete(fileName)
	}
	if backgroundName != "" {
		_ = s.blobs.Delete(backgroundName)
	}
	return nil
}
