package app

import (
	"context"
	"strconv"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/object"
)

// Edge names distinguishing the favorites structures on the shared
// relationship types.
const (
	favoritesFolderEdgeName = "favoritesFolder"
	favoriteEdgeName        = "favorite"
)

// FavoritesFolder groups bookmarked objects per user.
type FavoritesFolder struct {
	ID   int64
	Name string
}

// CreateFavoritesFolder creates a folder owned by a user.
func (s *Services) CreateFavoritesFolder(ctx context.Context, userName, folderName string) (int64, error) {
	if folderName == "" {
		return 0, errs.InvalidArgument("folder name can not be empty")
	}
	var id int64
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		userID, found, err := tx.IndexGet(graph.LabelUsers, graph.IndexKeyName, userName)
		if err != nil {
			return err
		}
		if !found {
			return errs.ApplicationNotFound("user %s", userName)
		}
		id, err = tx.CreateNode(graph.LabelSpecialNodes)
		if err != nil {
			return err
		}
		if err := tx.SetProperty(id, "name", graph.Text(folderName)); err != nil {
			return err
		}
		_, err = tx.CreateEdge(graph.RelChildOfSpecial, id, userID, favoritesFolderEdgeName)
		return err
	})
	return id, err
}

// GetFavoritesFolders lists a user's folders.
func (s *Services) GetFavoritesFolders(ctx context.Context, userName string) ([]FavoritesFolder, error) {
	var folders []FavoritesFolder
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		userID, found, err := tx.IndexGet(graph.LabelUsers, graph.IndexKeyName, userName)
		if err != nil {
			return err
		}
		if !found {
			return errs.ApplicationNotFound("user %s", userName)
		}
		edges, err := tx.InEdges(userID, graph.RelChildOfSpecial)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.Name != favoritesFolderEdgeName {
				continue
			}
			name, _, err := tx.Property(e.Start, "name")
			if err != nil {
				return err
			}
			folders = append(folders, FavoritesFolder{ID: e.Start, Name: name})
		}
		return nil
	})
	return folders, err
}

// AddObjectToFavoritesFolder bookmarks an object in a folder.
func (s *Services) AddObjectToFavoritesFolder(ctx context.Context, folderID, objectID int64) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		if err := s.requireFolder(tx, folderID); err != nil {
			return err
		}
		if _, found, err := tx.IndexGet(graph.LabelObjects, graph.IndexKeyID, strconv.FormatInt(objectID, 10)); err != nil {
			return err
		} else if !found {
			return errs.ObjectNotFound("object with id %d", objectID)
		}
		existing, err := tx.OutEdges(folderID, graph.RelRelatedTo)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Name == favoriteEdgeName && e.End == objectID {
				return errs.InvalidArgument("object %d is already in folder %d", objectID, folderID)
			}
		}
		_, err = tx.CreateEdge(graph.RelRelatedTo, folderID, objectID, favoriteEdgeName)
		return err
	})
}

// GetFavoritesFolderObjects lists the bookmarked objects of a folder.
func (s *Services) GetFavoritesFolderObjects(ctx context.Context, folderID int64) ([]*object.BusinessObject, error) {
	var objectIDs []int64
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		if err := s.requireFolder(tx, folderID); err != nil {
			return err
		}
		edges, err := tx.OutEdges(folderID, graph.RelRelatedTo)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.Name == favoriteEdgeName {
				objectIDs = append(objectIDs, e.End)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*object.BusinessObject, 0, len(objectIDs))
	for _, id := range objectIDs {
		obj, err := s.objects.GetObjectByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// DeleteFavoritesFolder removes a folder; bookmarks are just edges and go
// with the node.
func (s *Services) DeleteFavoritesFolder(ctx context.Context, folderID int64) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		if err := s.requireFolder(tx, folderID); err != nil {
			return err
		}
		return tx.DeleteNode(folderID)
	})
}

func (s *Services) requireFolder(tx *graph.Tx, folderID int64) error {
	edges, err := tx.OutEdges(folderID, graph.RelChildOfSpecial)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if e.Name == favoritesFolderEdgeName {
			return nil
		}
	}
	return errs.ApplicationNotFound("favorites folder with id %d", folderID)
}
