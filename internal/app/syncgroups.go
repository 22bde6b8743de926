package app

import (
	"context"
	"strconv"
	"time"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
)

// SyncGroup names a set of devices polled by one synchronization provider.
type SyncGroup struct {
	ID       int64
	Name     string
	Provider string
}

// CreateSyncGroup persists a synchronization group.
func (s *Services) CreateSyncGroup(ctx context.Context, name, provider string) (int64, error) {
	if name == "" {
		return 0, errs.InvalidArgument("sync group name can not be empty")
	}
	var id int64
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		var err error
		id, err = tx.CreateNode(graph.LabelSyncGroups)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		if err := tx.SetProperties(id, map[string]graph.Value{
			"name":         graph.Text(name),
			"provider":     graph.Text(provider),
			"creationDate": graph.Number(strconv.FormatInt(now, 10), float64(now)),
		}); err != nil {
			return err
		}
		return tx.IndexAdd(graph.LabelSyncGroups, graph.IndexKeyID, strconv.FormatInt(id, 10), id)
	})
	return id, err
}

// GetSyncGroup retrieves a group by id.
func (s *Services) GetSyncGroup(ctx context.Context, id int64) (*SyncGroup, error) {
	var group *SyncGroup
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		if err := requireIndexed(tx, graph.LabelSyncGroups, id, "sync group"); err != nil {
			return err
		}
		props, err := tx.Properties(id)
		if err != nil {
			return err
		}
		group = &SyncGroup{ID: id, Name: props["name"], Provider: props["provider"]}
		return nil
	})
	return group, err
}

// GetSyncGroups lists all groups.
func (s *Services) GetSyncGroups(ctx context.Context) ([]SyncGroup, error) {
	var groups []SyncGroup
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		ids, err := tx.NodesByLabel(graph.LabelSyncGroups)
		if err != nil {
			return err
		}
		for _, id := range ids {
			props, err := tx.Properties(id)
			if err != nil {
				return err
			}
			groups = append(groups, SyncGroup{ID: id, Name: props["name"], Provider: props["provider"]})
		}
		return nil
	})
	return groups, err
}

// DeleteSyncGroup removes a group by id.
func (s *Services) DeleteSyncGroup(ctx context.Context, id int64) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		if err := requireIndexed(tx, graph.LabelSyncGroups, id, "sync group"); err != nil {
			return err
		}
		return tx.DeleteNode(id)
	})
}
