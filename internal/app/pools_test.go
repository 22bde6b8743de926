package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/meta"
)

func TestCreateRootPool(t *testing.T) {
	svc, _ := newTestServices(t, false)
	ctx := context.Background()

	_, err := svc.CreateRootPool(ctx, "ports", "", "NoSuchClass", 2)
	assert.ErrorIs(t, err, errs.ErrMetadataNotFound)

	id, err := svc.CreateRootPool(ctx, "ports", "spare ports", "Port", 2)
	require.NoError(t, err)

	pool, err := svc.GetPool(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ports", pool.Name)
	assert.Equal(t, "spare ports", pool.Description)
	assert.Equal(t, "Port", pool.ClassName)
	assert.Equal(t, 2, pool.Type)

	_, err = svc.GetPool(ctx, 99999)
	assert.ErrorIs(t, err, errs.ErrApplicationNotFound)
}

func TestGetRootPoolsFilters(t *testing.T) {
	svc, _ := newTestServices(t, false)
	ctx := context.Background()

	portsID, err := svc.CreateRootPool(ctx, "ports", "", "Port", 2)
	require.NoError(t, err)
	buildingsID, err := svc.CreateRootPool(ctx, "campuses", "", "Building", 1)
	require.NoError(t, err)

	all, err := svc.GetRootPools(ctx, "", -1, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byClass, err := svc.GetRootPools(ctx, "Port", -1, false)
	require.NoError(t, err)
	require.Len(t, byClass, 1)
	assert.Equal(t, portsID, byClass[0].ID)

	// Exact matching ignores the hierarchy unless asked not to.
	none, err := svc.GetRootPools(ctx, meta.ClassInventoryObject, -1, false)
	require.NoError(t, err)
	assert.Empty(t, none)

	subs, err := svc.GetRootPools(ctx, meta.ClassInventoryObject, -1, true)
	require.NoError(t, err)
	assert.Len(t, subs, 2, "both pools hold inventory subclasses")

	byType, err := svc.GetRootPools(ctx, "", 1, false)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, buildingsID, byType[0].ID)
}

func TestNestedPools(t *testing.T) {
	svc, _ := newTestServices(t, false)
	ctx := context.Background()

	parentID, err := svc.CreateRootPool(ctx, "region", "", "Building", 1)
	require.NoError(t, err)
	childID, err := svc.CreatePoolInPool(ctx, parentID, "district", "", "Building", 1)
	require.NoError(t, err)

	_, err = svc.CreatePoolInPool(ctx, 99999, "orphan", "", "Building", 1)
	assert.ErrorIs(t, err, errs.ErrApplicationNotFound)

	roots, err := svc.GetRootPools(ctx, "", -1, false)
	require.NoError(t, err)
	require.Len(t, roots, 1, "nested pools are not roots")
	assert.Equal(t, parentID, roots[0].ID)

	children, err := svc.GetPoolsInPool(ctx, parentID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, childID, children[0].ID)

	_, err = svc.GetPoolsInPool(ctx, 99999)
	assert.ErrorIs(t, err, errs.ErrApplicationNotFound)
}

func TestCreatePoolInObject(t *testing.T) {
	svc, mapper := newTestServices(t, false)
	ctx := context.Background()

	buildingID, err := mapper.CreateObject(ctx, "Building", 0, map[string][]string{"name": {"HQ"}})
	require.NoError(t, err)

	id, err := svc.CreatePoolInObject(ctx, "Building", buildingID, "racks", "", "Port", 2)
	require.NoError(t, err)

	roots, err := svc.GetRootPools(ctx, "", -1, false)
	require.NoError(t, err)
	assert.Empty(t, roots, "a pool inside an object is not a root pool")

	pool, err := svc.GetPool(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "racks", pool.Name)

	_, err = svc.CreatePoolInObject(ctx, "Building", 99999, "orphan", "", "Port", 2)
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)
}

func TestDeletePoolRecurses(t *testing.T) {
	svc, _ := newTestServices(t, false)
	ctx := context.Background()

	parentID, err := svc.CreateRootPool(ctx, "region", "", "Building", 1)
	require.NoError(t, err)
	childID, err := svc.CreatePoolInPool(ctx, parentID, "district", "", "Building", 1)
	require.NoError(t, err)
	grandchildID, err := svc.CreatePoolInPool(ctx, childID, "block", "", "Building", 1)
	require.NoError(t, err)

	require.NoError(t, svc.DeletePool(ctx, parentID))

	for _, id := range []int64{parentID, childID, grandchildID} {
		_, err := svc.GetPool(ctx, id)
		assert.ErrorIs(t, err, errs.ErrApplicationNotFound)
	}

	assert.ErrorIs(t, svc.DeletePool(ctx, parentID), errs.ErrApplicationNotFound)
}
