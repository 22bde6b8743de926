package object

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/meta"
)

// newTestMapper builds a mapper over an in-memory store with a small schema:
// Building and Floor containers, a GenericDevice/Router device branch and an
// EquipmentVendor list type. Containment: root -> Building -> Floor -> devices.
func newTestMapper(t *testing.T) (*Mapper, *meta.Manager) {
	t.Helper()
	store, err := graph.Open("sqlite3", ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	mgr := meta.NewManager(store, meta.NewClassCache(), zap.NewNop())
	require.NoError(t, mgr.Bootstrap(ctx))

	for _, def := range []*meta.ClassDefinition{
		{Name: "EquipmentVendor", Parent: meta.ClassGenericObjectList, Custom: true},
		{Name: "Building", Parent: meta.ClassInventoryObject, Custom: true},
		{Name: "Floor", Parent: meta.ClassInventoryObject, Custom: true},
		{Name: "GenericDevice", Parent: meta.ClassInventoryObject, Abstract: true, Custom: true,
			Attributes: []*meta.AttributeDefinition{
				{Name: "vendor", Type: meta.ReferenceType("EquipmentVendor"), Visible: true},
				{Name: "rackUnits", Type: meta.PrimitiveType(meta.PrimInteger), Visible: true},
				{Name: "serialNumber", Type: meta.PrimitiveType(meta.PrimString), Unique: true, Visible: true},
				{Name: "purchaseDate", Type: meta.PrimitiveType(meta.PrimDate), Visible: true},
				{Name: "managed", Type: meta.PrimitiveType(meta.PrimBoolean), Visible: true},
				{Name: "suppliers", Type: meta.ReferenceType("EquipmentVendor"), Multiple: true, Visible: true},
			}},
	} {
		_, err := mgr.CreateClass(ctx, def)
		require.NoError(t, err)
	}
	_, err = mgr.CreateClass(ctx, &meta.ClassDefinition{Name: "Router", Parent: "GenericDevice", Custom: true})
	require.NoError(t, err)

	require.NoError(t, mgr.AddPossibleChildren(ctx, "", "Building"))
	require.NoError(t, mgr.AddPossibleChildren(ctx, "Building", "Floor"))
	require.NoError(t, mgr.AddPossibleChildren(ctx, "Floor", "GenericDevice"))

	return NewMapper(store, mgr, zap.NewNop()), mgr
}

func createContainers(t *testing.T, m *Mapper) (buildingID, floorID int64) {
	t.Helper()
	ctx := context.Background()
	var err error
	buildingID, err = m.CreateObject(ctx, "Building", 0, map[string][]string{"name": {"HQ"}})
	require.NoError(t, err)
	floorID, err = m.CreateObject(ctx, "Floor", buildingID, map[string][]string{"name": {"3rd"}})
	require.NoError(t, err)
	return buildingID, floorID
}

func TestCreateAndGetObject(t *testing.T) {
	m, _ := newTestMapper(t)
	ctx := context.Background()
	_, floorID := createContainers(t, m)

	id, err := m.CreateObject(ctx, "Router", floorID, map[string][]string{
		"name":         {"core-router-01"},
		"rackUnits":    {"2"},
		"managed":      {"true"},
		"purchaseDate": {"2024-05-01"},
	})
	require.NoError(t, err)

	obj, err := m.GetObject(ctx, "Router", id)
	require.NoError(t, err)
	assert.Equal(t, "Router", obj.ClassName)
	assert.Equal(t, "core-router-01", obj.Name)
	assert.Equal(t, int64(2), obj.Attributes["rackUnits"])
	assert.Equal(t, true, obj.Attributes["managed"])
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), obj.Attributes["purchaseDate"])

	// A superclass name is an acceptable handle for the same instance.
	viaSuper, err := m.GetObject(ctx, "GenericDevice", id)
	require.NoError(t, err)
	assert.Equal(t, obj.ID, viaSuper.ID)

	// An unrelated class is not.
	_, err = m.GetObject(ctx, "Building", id)
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)
}

func TestCreateObjectRefusals(t *testing.T) {
	m, _ := newTestMapper(t)
	ctx := context.Background()
	buildingID, floorID := createContainers(t, m)

	_, err := m.CreateObject(ctx, "GenericDevice", floorID, map[string][]string{"name": {"x"}})
	assert.ErrorIs(t, err, errs.ErrNotPermitted, "abstract classes can not be instantiated")

	_, err = m.CreateObject(ctx, "Router", floorID, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument, "name is mandatory")

	_, err = m.CreateObject(ctx, "Router", buildingID, map[string][]string{"name": {"x"}})
	assert.ErrorIs(t, err, errs.ErrNotPermitted, "no containment rule Building -> Router")

	_, err = m.CreateObject(ctx, "Router", 99999, map[string][]string{"name": {"x"}})
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)

	_, err = m.CreateObject(ctx, "NoSuchClass", floorID, map[string][]string{"name": {"x"}})
	assert.ErrorIs(t, err, errs.ErrMetadataNotFound)
}

func TestUpdateObject(t *testing.T) {
	m, _ := newTestMapper(t)
	ctx := context.Background()
	_, floorID := createContainers(t, m)

	id, err := m.CreateObject(ctx, "Router", floorID, map[string][]string{
		"name": {"r1"}, "rackUnits": {"2"},
	})
	require.NoError(t, err)

	require.NoError(t, m.UpdateObject(ctx, "Router", id, map[string][]string{
		"name": {"r1-renamed"}, "rackUnits": {"4"},
	}))
	obj, err := m.GetObject(ctx, "Router", id)
	require.NoError(t, err)
	assert.Equal(t, "r1-renamed", obj.Name)
	assert.Equal(t, int64(4), obj.Attributes["rackUnits"])

	// Unsetting via an empty value list.
	require.NoError(t, m.UpdateObject(ctx, "Router", id, map[string][]string{"rackUnits": {}}))
	obj, err = m.GetObject(ctx, "Router", id)
	require.NoError(t, err)
	_, present := obj.Attributes["rackUnits"]
	assert.False(t, present)

	err = m.UpdateObject(ctx, "Router", id, map[string][]string{"creationDate": {"12345"}})
	assert.ErrorIs(t, err, errs.ErrNotPermitted)

	err = m.UpdateObject(ctx, "Router", id, map[string][]string{"noSuchAttr": {"x"}})
	assert.ErrorIs(t, err, errs.ErrMetadataNotFound)

	err = m.UpdateObject(ctx, "Router", id, map[string][]string{"rackUnits": {"not-a-number"}})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	err = m.UpdateObject(ctx, "Router", id, map[string][]string{"managed": {"yes"}})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestReferenceAttributes(t *testing.T) {
	m, _ := newTestMapper(t)
	ctx := context.Background()
	_, floorID := createContainers(t, m)

	vendorID, err := m.CreateListTypeItem(ctx, "EquipmentVendor", "Acme", "Acme Networks")
	require.NoError(t, err)
	otherID, err := m.CreateListTypeItem(ctx, "EquipmentVendor", "Globex", "")
	require.NoError(t, err)

	id, err := m.CreateObject(ctx, "Router", floorID, map[string][]string{
		"name":   {"r1"},
		"vendor": {itoa(vendorID)},
	})
	require.NoError(t, err)

	obj, err := m.GetObject(ctx, "Router", id)
	require.NoError(t, err)
	ref, ok := obj.Attributes["vendor"].(*ItemRef)
	require.True(t, ok)
	assert.Equal(t, vendorID, ref.ID)
	assert.Equal(t, "Acme", ref.Name)
	assert.Equal(t, "EquipmentVendor", ref.ClassName)

	// Single valued attributes refuse multiple items.
	err = m.UpdateObject(ctx, "Router", id, map[string][]string{
		"vendor": {itoa(vendorID), itoa(otherID)},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	// Many to many attributes accept several and replace on update.
	require.NoError(t, m.UpdateObject(ctx, "Router", id, map[string][]string{
		"suppliers": {itoa(vendorID), itoa(otherID)},
	}))
	obj, err = m.GetObject(ctx, "Router", id)
	require.NoError(t, err)
	refs, ok := obj.Attributes["suppliers"].([]ItemRef)
	require.True(t, ok)
	assert.Len(t, refs, 2)

	require.NoError(t, m.UpdateObject(ctx, "Router", id, map[string][]string{
		"suppliers": {itoa(otherID)},
	}))
	obj, err = m.GetObject(ctx, "Router", id)
	require.NoError(t, err)
	refs = obj.Attributes["suppliers"].([]ItemRef)
	require.Len(t, refs, 1)
	assert.Equal(t, otherID, refs[0].ID)

	// Dangling ids are refused.
	err = m.UpdateObject(ctx, "Router", id, map[string][]string{"vendor": {"424242"}})
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)
}

func TestUniqueAttribute(t *testing.T) {
	m, _ := newTestMapper(t)
	ctx := context.Background()
	_, floorID := createContainers(t, m)

	_, err := m.CreateObject(ctx, "Router", floorID, map[string][]string{
		"name": {"r1"}, "serialNumber": {"SN-001"},
	})
	require.NoError(t, err)

	_, err = m.CreateObject(ctx, "Router", floorID, map[string][]string{
		"name": {"r2"}, "serialNumber": {"SN-001"},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	// A different value goes through.
	_, err = m.CreateObject(ctx, "Router", floorID, map[string][]string{
		"name": {"r3"}, "serialNumber": {"SN-002"},
	})
	require.NoError(t, err)
}

func TestDeleteObjectSubtree(t *testing.T) {
	m, _ := newTestMapper(t)
	ctx := context.Background()
	buildingID, floorID := createContainers(t, m)

	routerID, err := m.CreateObject(ctx, "Router", floorID, map[string][]string{"name": {"r1"}})
	require.NoError(t, err)

	require.NoError(t, m.DeleteObject(ctx, "Building", buildingID, false))

	for _, id := range []int64{buildingID, floorID, routerID} {
		_, err := m.GetObjectByID(ctx, id)
		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
	}
}

func TestGetChildren(t *testing.T) {
	m, _ := newTestMapper(t)
	ctx := context.Background()
	_, floorID := createContainers(t, m)

	r1, err := m.CreateObject(ctx, "Router", floorID, map[string][]string{"name": {"r1"}})
	require.NoError(t, err)
	r2, err := m.CreateObject(ctx, "Router", floorID, map[string][]string{"name": {"r2"}})
	require.NoError(t, err)

	children, err := m.GetChildren(ctx, floorID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.ElementsMatch(t, []int64{r1, r2}, []int64{children[0].ID, children[1].ID})
}

func TestListTypeItems(t *testing.T) {
	m, mgr := newTestMapper(t)
	ctx := context.Background()

	_, err := mgr.CreateClass(ctx, &meta.ClassDefinition{
		Name: "OpticalVendor", Parent: "EquipmentVendor", Custom: true,
	})
	require.NoError(t, err)

	acmeID, err := m.CreateListTypeItem(ctx, "EquipmentVendor", "Acme", "Acme Networks")
	require.NoError(t, err)
	_, err = m.CreateListTypeItem(ctx, "OpticalVendor", "Lumen", "")
	require.NoError(t, err)

	// Subclass items are part of the parent class listing.
	items, err := m.GetListTypeItems(ctx, "EquipmentVendor")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	item, err := m.GetListTypeItem(ctx, "EquipmentVendor", acmeID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", item.Name)

	_, err = m.GetListTypeItem(ctx, "OpticalVendor", acmeID)
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)

	// Ordinary business classes can not produce list type items.
	_, err = m.CreateListTypeItem(ctx, "Building", "HQ", "")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestDeleteListTypeItemReferenceGuard(t *testing.T) {
	m, _ := newTestMapper(t)
	ctx := context.Background()
	_, floorID := createContainers(t, m)

	vendorID, err := m.CreateListTypeItem(ctx, "EquipmentVendor", "Acme", "")
	require.NoError(t, err)
	routerID, err := m.CreateObject(ctx, "Router", floorID, map[string][]string{
		"name": {"r1"}, "vendor": {itoa(vendorID)},
	})
	require.NoError(t, err)

	err = m.DeleteListTypeItem(ctx, "EquipmentVendor", vendorID, false)
	assert.ErrorIs(t, err, errs.ErrNotPermitted)

	require.NoError(t, m.DeleteListTypeItem(ctx, "EquipmentVendor", vendorID, true))

	// The referencing edge went with the item.
	obj, err := m.GetObject(ctx, "Router", routerID)
	require.NoError(t, err)
	_, present := obj.Attributes["vendor"]
	assert.False(t, present)
}

func TestWrongClassItemRejected(t *testing.T) {
	m, mgr := newTestMapper(t)
	ctx := context.Background()
	_, floorID := createContainers(t, m)

	_, err := mgr.CreateClass(ctx, &meta.ClassDefinition{
		Name: "CableType", Parent: meta.ClassGenericObjectList, Custom: true,
	})
	require.NoError(t, err)
	cableID, err := m.CreateListTypeItem(ctx, "CableType", "fiber", "")
	require.NoError(t, err)

	_, err = m.CreateObject(ctx, "Router", floorID, map[string][]string{
		"name": {"r1"}, "vendor": {itoa(cableID)},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
