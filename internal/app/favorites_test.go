package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netgrid-io/netgrid/internal/errs"
)

func TestFavoritesFolders(t *testing.T) {
	svc, _ := newTestServices(t, false)
	ctx := context.Background()

	_, err := svc.CreateFavoritesFolder(ctx, "nobody", "bookmarks")
	assert.ErrorIs(t, err, errs.ErrApplicationNotFound)

	_, err = svc.CreateUser(ctx, "admin", "pw", "", "")
	require.NoError(t, err)

	_, err = svc.CreateFavoritesFolder(ctx, "admin", "")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	folderID, err := svc.CreateFavoritesFolder(ctx, "admin", "bookmarks")
	require.NoError(t, err)

	folders, err := svc.GetFavoritesFolders(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, folderID, folders[0].ID)
	assert.Equal(t, "bookmarks", folders[0].Name)
}

func TestFavoritesFolderObjects(t *testing.T) {
	svc, mapper := newTestServices(t, false)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "admin", "pw", "", "")
	require.NoError(t, err)
	folderID, err := svc.CreateFavoritesFolder(ctx, "admin", "bookmarks")
	require.NoError(t, err)
	buildingID, err := mapper.CreateObject(ctx, "Building", 0, map[string][]string{"name": {"HQ"}})
	require.NoError(t, err)

	require.NoError(t, svc.AddObjectToFavoritesFolder(ctx, folderID, buildingID))
	assert.ErrorIs(t, svc.AddObjectToFavoritesFolder(ctx, folderID, buildingID), errs.ErrInvalidArgument,
		"an object is bookmarked once per folder")
	assert.ErrorIs(t, svc.AddObjectToFavoritesFolder(ctx, folderID, 99999), errs.ErrObjectNotFound)
	assert.ErrorIs(t, svc.AddObjectToFavoritesFolder(ctx, 99999, buildingID), errs.ErrApplicationNotFound)

	objects, err := svc.GetFavoritesFolderObjects(ctx, folderID)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, buildingID, objects[0].ID)
	assert.Equal(t, "HQ", objects[0].Name)
	assert.Equal(t, "Building", objects[0].ClassName)

	require.NoError(t, svc.DeleteFavoritesFolder(ctx, folderID))
	_, err = svc.GetFavoritesFolderObjects(ctx, folderID)
	assert.ErrorIs(t, err, errs.ErrApplicationNotFound)

	// The bookmarked object itself survives its folder.
	_, err = mapper.GetObject(ctx, "Building", buildingID)
	assert.NoError(t, err)
}
