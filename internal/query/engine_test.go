package query

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/object"
)

// seedInventory populates the fixture schema with two floors, three routers
// and a switch. alpha and beta carry a vendor, gamma does not.
func seedInventory(t *testing.T, m *object.Mapper) (firstFloor, secondFloor int64) {
	t.Helper()
	ctx := context.Background()

	buildingID, err := m.CreateObject(ctx, "Building", 0, map[string][]string{"name": {"HQ"}})
	require.NoError(t, err)
	firstFloor, err = m.CreateObject(ctx, "Floor", buildingID, map[string][]string{"name": {"1st"}})
	require.NoError(t, err)
	secondFloor, err = m.CreateObject(ctx, "Floor", buildingID, map[string][]string{"name": {"2nd"}})
	require.NoError(t, err)

	ciscoID, err := m.CreateListTypeItem(ctx, "EquipmentVendor", "Cisco", "Cisco Systems")
	require.NoError(t, err)
	juniperID, err := m.CreateListTypeItem(ctx, "EquipmentVendor", "Juniper", "Juniper Networks")
	require.NoError(t, err)

	for _, o := range []struct {
		class  string
		floor  int64
		name   string
		units  string
		vendor int64
	}{
		{"Router", firstFloor, "alpha", "1", ciscoID},
		{"Router", firstFloor, "beta", "4", juniperID},
		{"Router", secondFloor, "gamma", "2", 0},
		{"Switch", secondFloor, "sw-edge", "1", ciscoID},
	} {
		attrs := map[string][]string{"name": {o.name}, "rackUnits": {o.units}}
		if o.vendor != 0 {
			attrs["vendor"] = []string{strconv.FormatInt(o.vendor, 10)}
		}
		_, err := m.CreateObject(ctx, o.class, o.floor, attrs)
		require.NoError(t, err)
	}
	return firstFloor, secondFloor
}

func names(records []ResultRecord) []string {
	out := make([]string, 0, len(records)-1)
	for _, r := range records[1:] {
		out = append(out, r.Name)
	}
	return out
}

func TestExecutePlainQuery(t *testing.T) {
	store, mgr, mapper := newQueryFixture(t)
	seedInventory(t, mapper)
	engine := NewEngine(store, mgr, zap.NewNop())

	records, err := engine.Execute(context.Background(), &Descriptor{ClassName: "GenericDevice"})
	require.NoError(t, err)
	require.Len(t, records, 5, "header plus one record per device")

	assert.Equal(t, []string{"name"}, records[0].Columns)
	assert.Zero(t, records[0].ID)
	assert.Equal(t, []string{"alpha", "beta", "gamma", "sw-edge"}, names(records), "rows come back ordered by name")

	first := records[1]
	assert.Equal(t, "alpha", first.Name)
	assert.Equal(t, "Router", first.ClassName)
	assert.NotZero(t, first.ID)
	assert.Equal(t, []string{"alpha"}, first.Columns)
}

func TestExecuteProjectsVisibleAttributes(t *testing.T) {
	store, mgr, mapper := newQueryFixture(t)
	seedInventory(t, mapper)
	engine := NewEngine(store, mgr, zap.NewNop())

	records, err := engine.Execute(context.Background(), &Descriptor{
		ClassName: "Router",
		Visible:   []string{"name", "id", "rackUnits"},
		Filters:   []Filter{Condition("name", OpEqual, "beta")},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"name", "id", "rackUnits"}, records[0].Columns)
	row := records[1]
	assert.Equal(t, []string{"beta", strconv.FormatInt(row.ID, 10), "4"}, row.Columns)
}

func TestExecuteNumericFilter(t *testing.T) {
	store, mgr, mapper := newQueryFixture(t)
	seedInventory(t, mapper)
	engine := NewEngine(store, mgr, zap.NewNop())

	records, err := engine.Execute(context.Background(), &Descriptor{
		ClassName: "GenericDevice",
		Filters:   []Filter{Condition("rackUnits", OpGreaterThan, "1")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "gamma"}, names(records))
}

func TestExecuteReferenceJoin(t *testing.T) {
	store, mgr, mapper := newQueryFixture(t)
	seedInventory(t, mapper)
	engine := NewEngine(store, mgr, zap.NewNop())

	records, err := engine.Execute(context.Background(), &Descriptor{
		ClassName: "GenericDevice",
		Filters: []Filter{Join("vendor", &Descriptor{
			ClassName: "EquipmentVendor",
			Filters:   []Filter{Condition("name", OpEqual, "Cisco")},
		})},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "sw-edge"}, names(records))

	// The joined variable's visible attributes land after the root's.
	assert.Equal(t, []string{"name", "name"}, records[0].Columns)
	assert.Equal(t, []string{"alpha", "Cisco"}, records[1].Columns)
}

func TestExecuteParentJoin(t *testing.T) {
	store, mgr, mapper := newQueryFixture(t)
	seedInventory(t, mapper)
	engine := NewEngine(store, mgr, zap.NewNop())

	records, err := engine.Execute(context.Background(), &Descriptor{
		ClassName: "GenericDevice",
		Filters: []Filter{Join(AttributeParent, &Descriptor{
			ClassName: "Floor",
			Filters:   []Filter{Condition("name", OpEqual, "2nd")},
		})},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma", "sw-edge"}, names(records))
	assert.Equal(t, []string{"gamma", "2nd"}, records[1].Columns)
}

func TestExecuteNegativeExistential(t *testing.T) {
	store, mgr, mapper := newQueryFixture(t)
	seedInventory(t, mapper)
	engine := NewEngine(store, mgr, zap.NewNop())

	records, err := engine.Execute(context.Background(), &Descriptor{
		ClassName: "GenericDevice",
		Filters:   []Filter{NoSuchItem("vendor")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma"}, names(records), "only gamma has no vendor")
}

func TestExecuteOrConnector(t *testing.T) {
	store, mgr, mapper := newQueryFixture(t)
	seedInventory(t, mapper)
	engine := NewEngine(store, mgr, zap.NewNop())

	records, err := engine.Execute(context.Background(), &Descriptor{
		ClassName: "Router",
		Connector: ConnectorOr,
		Filters: []Filter{
			Condition("name", OpEqual, "alpha"),
			Condition("rackUnits", OpGreaterOrEqual, "4"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names(records))
}

func TestExecutePagination(t *testing.T) {
	store, mgr, mapper := newQueryFixture(t)
	seedInventory(t, mapper)
	engine := NewEngine(store, mgr, zap.NewNop())
	ctx := context.Background()

	page1, err := engine.Execute(ctx, &Descriptor{ClassName: "GenericDevice", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names(page1))

	page2, err := engine.Execute(ctx, &Descriptor{ClassName: "GenericDevice", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma", "sw-edge"}, names(page2))

	page3, err := engine.Execute(ctx, &Descriptor{ClassName: "GenericDevice", Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page3, 1, "only the header remains past the last page")
}

func TestExecuteEmptyResultKeepsHeader(t *testing.T) {
	store, mgr, mapper := newQueryFixture(t)
	seedInventory(t, mapper)
	engine := NewEngine(store, mgr, zap.NewNop())

	records, err := engine.Execute(context.Background(), &Descriptor{
		ClassName: "Router",
		Filters:   []Filter{Condition("name", OpEqual, "does-not-exist")},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"name"}, records[0].Columns)
}
