package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := graph.Open("sqlite3", ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	m := NewManager(store, NewClassCache(), zap.NewNop())
	require.NoError(t, m.Bootstrap(ctx))
	return m
}

func mustCreateClass(t *testing.T, m *Manager, def *ClassDefinition) int64 {
	t.Helper()
	id, err := m.CreateClass(context.Background(), def)
	require.NoError(t, err)
	return id
}

func stringAttr(name string) *AttributeDefinition {
	return &AttributeDefinition{Name: name, Type: PrimitiveType(PrimString), Visible: true}
}

func TestBootstrapIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// A second run must not duplicate the roots.
	require.NoError(t, m.Bootstrap(ctx))

	root, err := m.GetClass(ctx, ClassRootObject)
	require.NoError(t, err)
	assert.True(t, root.Abstract)
	assert.Empty(t, root.Parent)
	assert.True(t, root.HasAttribute(AttrName))
	assert.True(t, root.HasAttribute(AttrCreationDate))

	inv, err := m.GetClass(ctx, ClassInventoryObject)
	require.NoError(t, err)
	assert.Equal(t, ClassRootObject, inv.Parent)

	all, err := m.GetAllClasses(ctx, true, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCreateClassInheritsParentAttributes(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	mustCreateClass(t, m, &ClassDefinition{
		Name: "GenericDevice", Parent: ClassInventoryObject, Abstract: true, Custom: true,
		Attributes: []*AttributeDefinition{stringAttr("vendor")},
	})
	mustCreateClass(t, m, &ClassDefinition{
		Name: "Router", Parent: "GenericDevice", Custom: true,
		Attributes: []*AttributeDefinition{stringAttr("operatingSystem")},
	})

	router, err := m.GetClass(ctx, "Router")
	require.NoError(t, err)
	assert.True(t, router.HasAttribute(AttrName))
	assert.True(t, router.HasAttribute(AttrCreationDate))
	assert.True(t, router.HasAttribute("vendor"))
	assert.True(t, router.HasAttribute("operatingSystem"))

	// The copy is an independent record.
	parent, err := m.GetClass(ctx, "GenericDevice")
	require.NoError(t, err)
	parentAttr, _ := parent.Attribute("vendor")
	childAttr, _ := router.Attribute("vendor")
	assert.NotEqual(t, parentAttr.ID, childAttr.ID)
}

func TestParentAttributeChangesDoNotPropagate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	mustCreateClass(t, m, &ClassDefinition{
		Name: "GenericDevice", Parent: ClassInventoryObject, Abstract: true, Custom: true,
	})
	mustCreateClass(t, m, &ClassDefinition{Name: "Router", Parent: "GenericDevice", Custom: true})

	_, err := m.CreateAttribute(ctx, "GenericDevice", stringAttr("serialNumber"))
	require.NoError(t, err)

	// The existing subclass keeps its creation-time attribute set.
	router, err := m.GetClass(ctx, "Router")
	require.NoError(t, err)
	assert.False(t, router.HasAttribute("serialNumber"))

	// A class created afterwards picks the new attribute up.
	mustCreateClass(t, m, &ClassDefinition{Name: "Switch", Parent: "GenericDevice", Custom: true})
	sw, err := m.GetClass(ctx, "Switch")
	require.NoError(t, err)
	assert.True(t, sw.HasAttribute("serialNumber"))
}

func TestCreateClassValidation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateClass(ctx, &ClassDefinition{Name: "Bad Name", Parent: ClassInventoryObject})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = m.CreateClass(ctx, &ClassDefinition{Name: "Orphan"})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = m.CreateClass(ctx, &ClassDefinition{Name: "Router", Parent: "NoSuchClass"})
	assert.ErrorIs(t, err, errs.ErrMetadataNotFound)

	_, err = m.CreateClass(ctx, &ClassDefinition{
		Name: "Router", Parent: ClassInventoryObject,
		Attributes: []*AttributeDefinition{stringAttr(AttrName)},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	mustCreateClass(t, m, &ClassDefinition{Name: "Router", Parent: ClassInventoryObject, Custom: true})
	_, err = m.CreateClass(ctx, &ClassDefinition{Name: "Router", Parent: ClassInventoryObject})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestDeleteClassGuards(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	err := m.DeleteClass(ctx, ClassInventoryObject)
	assert.ErrorIs(t, err, errs.ErrNotPermitted)

	mustCreateClass(t, m, &ClassDefinition{
		Name: "GenericDevice", Parent: ClassInventoryObject, Abstract: true, Custom: true,
	})
	mustCreateClass(t, m, &ClassDefinition{Name: "Router", Parent: "GenericDevice", Custom: true})

	err = m.DeleteClass(ctx, "GenericDevice")
	assert.ErrorIs(t, err, errs.ErrNotPermitted)

	require.NoError(t, m.DeleteClass(ctx, "Router"))
	require.NoError(t, m.DeleteClass(ctx, "GenericDevice"))

	_, err = m.GetClass(ctx, "Router")
	assert.ErrorIs(t, err, errs.ErrMetadataNotFound)
}

func TestDeleteClassRefusesWhileInstancesExist(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	classID := mustCreateClass(t, m, &ClassDefinition{
		Name: "Building", Parent: ClassInventoryObject, Custom: true,
	})

	var objID int64
	require.NoError(t, m.store.Update(ctx, func(tx *graph.Tx) error {
		id, err := tx.CreateNode(graph.LabelObjects)
		if err != nil {
			return err
		}
		objID = id
		_, err = tx.CreateEdge(graph.RelInstanceOf, id, classID, "")
		return err
	}))

	err := m.DeleteClass(ctx, "Building")
	assert.ErrorIs(t, err, errs.ErrNotPermitted)

	// Removing the instance unblocks the deletion.
	require.NoError(t, m.store.Update(ctx, func(tx *graph.Tx) error {
		return tx.DeleteNode(objID)
	}))
	require.NoError(t, m.DeleteClass(ctx, "Building"))
}

func TestRenameClassRetargetsReferenceAttributes(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	mustCreateClass(t, m, &ClassDefinition{
		Name: "EquipmentVendor", Parent: ClassGenericObjectList, Custom: true,
	})
	mustCreateClass(t, m, &ClassDefinition{
		Name: "Router", Parent: ClassInventoryObject, Custom: true,
		Attributes: []*AttributeDefinition{
			{Name: "vendor", Type: ReferenceType("EquipmentVendor"), Visible: true},
		},
	})

	newName := "Vendor"
	require.NoError(t, m.SetClassProperties(ctx, "EquipmentVendor", ClassProperties{Name: &newName}))

	_, err := m.GetClass(ctx, "EquipmentVendor")
	assert.ErrorIs(t, err, errs.ErrMetadataNotFound)

	router, err := m.GetClass(ctx, "Router")
	require.NoError(t, err)
	attr, ok := router.Attribute("vendor")
	require.True(t, ok)
	assert.Equal(t, "Vendor", attr.Type.Class)
}

func TestRenameCoreClassRefused(t *testing.T) {
	m := newTestManager(t)

	newName := "Assets"
	err := m.SetClassProperties(context.Background(), ClassInventoryObject, ClassProperties{Name: &newName})
	assert.ErrorIs(t, err, errs.ErrNotPermitted)
}

func TestSetAttributeProperties(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	mustCreateClass(t, m, &ClassDefinition{
		Name: "Router", Parent: ClassInventoryObject, Custom: true,
		Attributes: []*AttributeDefinition{
			{Name: "rackUnits", Type: PrimitiveType(PrimInteger), Visible: true},
		},
	})

	// Numeric representations may change among themselves.
	toFloat := PrimitiveType(PrimFloat)
	require.NoError(t, m.SetAttributeProperties(ctx, "Router", "rackUnits", AttributeProperties{Type: &toFloat}))

	attr, err := m.GetAttribute(ctx, "Router", "rackUnits")
	require.NoError(t, err)
	assert.Equal(t, PrimFloat, attr.Type.Primitive)

	// A string can not become a number.
	toInt := PrimitiveType(PrimInteger)
	err = m.SetAttributeProperties(ctx, "Router", AttrName, AttributeProperties{Type: &toInt})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	rename := "units"
	err = m.SetAttributeProperties(ctx, "Router", AttrCreationDate, AttributeProperties{Name: &rename})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestDeleteAttribute(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	mustCreateClass(t, m, &ClassDefinition{
		Name: "GenericDevice", Parent: ClassInventoryObject, Abstract: true, Custom: true,
		Attributes: []*AttributeDefinition{stringAttr("vendor")},
	})
	mustCreateClass(t, m, &ClassDefinition{Name: "Router", Parent: "GenericDevice", Custom: true})

	err := m.DeleteAttribute(ctx, "Router", AttrName)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	// Removing the parent's record leaves the subclass copy alone.
	require.NoError(t, m.DeleteAttribute(ctx, "GenericDevice", "vendor"))

	parent, err := m.GetClass(ctx, "GenericDevice")
	require.NoError(t, err)
	assert.False(t, parent.HasAttribute("vendor"))

	router, err := m.GetClass(ctx, "Router")
	require.NoError(t, err)
	assert.True(t, router.HasAttribute("vendor"))
}

func TestIsSubclassOf(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	mustCreateClass(t, m, &ClassDefinition{
		Name: "GenericDevice", Parent: ClassInventoryObject, Abstract: true, Custom: true,
	})
	mustCreateClass(t, m, &ClassDefinition{Name: "Router", Parent: "GenericDevice", Custom: true})

	ok, err := m.IsSubclassOf(ctx, ClassInventoryObject, "Router")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.IsSubclassOf(ctx, "Router", "Router")
	require.NoError(t, err)
	assert.True(t, ok, "the relation is reflexive")

	ok, err = m.IsSubclassOf(ctx, ClassGenericObjectList, "Router")
	require.NoError(t, err)
	assert.False(t, ok)
}
