package app

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/query"
)

// SavedQuery is a named, persisted query descriptor.
type SavedQuery struct {
	ID          int64
	Name        string
	Description string
	Descriptor  *query.Descriptor
}

// CreateQuery persists a descriptor under a name.
func (s *Services) CreateQuery(ctx context.Context, name, description string, desc *query.Descriptor) (int64, error) {
	if name == "" {
		return 0, errs.InvalidArgument("query name can not be empty")
	}
	if desc == nil || desc.ClassName == "" {
		return 0, errs.InvalidArgument("query descriptor must name a class")
	}
	structure, err := json.Marshal(desc)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.store.Update(ctx, func(tx *graph.Tx) error {
		id, err = tx.CreateNode(graph.LabelQueries)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		if err := tx.SetProperties(id, map[string]graph.Value{
			"name":         graph.Text(name),
			"description":  graph.Text(description),
			"structure":    graph.Text(string(structure)),
			"creationDate": graph.Number(strconv.FormatInt(now, 10), float64(now)),
		}); err != nil {
			return err
		}
		return tx.IndexAdd(graph.LabelQueries, graph.IndexKeyID, strconv.FormatInt(id, 10), id)
	})
	return id, err
}

// GetQuery retrieves a saved query by id.
func (s *Services) GetQuery(ctx context.Context, id int64) (*SavedQuery, error) {
	var saved *SavedQuery
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		if err := requireIndexed(tx, graph.LabelQueries, id, "query"); err != nil {
			return err
		}
		props, err := tx.Properties(id)
		if err != nil {
			return err
		}
		saved = &SavedQuery{ID: id, Name: props["name"], Description: props["description"]}
		if structure := props["structure"]; structure != "" {
			var desc query.Descriptor
			if err := json.Unmarshal([]byte(structure), &desc); err != nil {
				return errs.InvalidArgument("saved query %d has a corrupt structure: %v", id, err)
			}
			saved.Descriptor = &desc
		}
		return nil
	})
	return saved, err
}

// GetQueries lists all saved queries, structures included.
func (s *Services) GetQueries(ctx context.Context) ([]*SavedQuery, error) {
	var ids []int64
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		var err error
		ids, err = tx.NodesByLabel(graph.LabelQueries)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]*SavedQuery, 0, len(ids))
	for _, id := range ids {
		saved, err := s.GetQuery(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

// DeleteQuery removes a saved query.
func (s *Services) DeleteQuery(ctx context.Context, id int64) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		if err := requireIndexed(tx, graph.LabelQueries, id, "query"); err != nil {
			return err
		}
		return tx.DeleteNode(id)
	})
}
