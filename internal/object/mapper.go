// Package object maps business object instances between their graph
// representation and a typed local form. Primitive attributes live as node
// properties, reference attributes as named RELATED_TO edges pointing at
// list type items.
package object

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/meta"
)

const dateLayout = "2006-01-02"

// ItemRef points at a list type item used as a reference attribute value.
type ItemRef struct {
	ID        int64
	Name      string
	ClassName string
}

// BusinessObject is the typed local representation of an instance.
// Attribute values are Go-typed per the class definition: string, int64,
// float64, bool, time.Time, *ItemRef (many-to-one) or []ItemRef
// (many-to-many).
type BusinessObject struct {
	ID         int64
	ClassName  string
	Name       string
	Attributes map[string]interface{}
}

// Mapper translates objects to and from the graph, consulting the metadata
// manager for each attribute's declared type and mapping.
type Mapper struct {
	store  *graph.Store
	meta   *meta.Manager
	logger *zap.Logger
}

// NewMapper wires a mapper to its storage and metadata manager.
func NewMapper(store *graph.Store, metaMgr *meta.Manager, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{store: store, meta: metaMgr, logger: logger}
}

// CreateObject instantiates className under the given parent object (zero
// parent means the database root). The class must be concrete, operational
// and an allowed child of the parent's class.
func (m *Mapper) CreateObject(ctx context.Context, className string, parentID int64, attrs map[string][]string) (int64, error) {
	def, err := m.meta.GetClass(ctx, className)
	if err != nil {
		return 0, err
	}
	if def.Abstract {
		return 0, errs.NotPermitted("abstract class %s can not be instantiated", className)
	}
	if def.InDesign {
		return 0, errs.NotPermitted("class %s is still in design and can not be instantiated", className)
	}
	for _, attr := range def.Attributes {
		if attr.Mandatory && attr.Name != meta.AttrCreationDate && len(attrs[attr.Name]) == 0 {
			return 0, errs.InvalidArgument("attribute %s of class %s is mandatory", attr.Name, className)
		}
	}

	parentClass := "" // virtual root
	if parentID != 0 {
		parent, err := m.GetObjectByID(ctx, parentID)
		if err != nil {
			return 0, err
		}
		parentClass = parent.ClassName
	}
	allowed, err := m.meta.GetPossibleChildren(ctx, parentClass)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(allowed, className) {
		return 0, errs.NotPermitted("instances of %s can not be created under instances of %s",
			className, displayClass(parentClass))
	}

	var id int64
	err = m.store.Update(ctx, func(tx *graph.Tx) error {
		id, err = tx.CreateNode(graph.LabelObjects)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		if err := tx.SetProperty(id, meta.AttrCreationDate,
			graph.Number(strconv.FormatInt(now, 10), float64(now))); err != nil {
			return err
		}
		if _, err := tx.CreateEdge(graph.RelInstanceOf, id, def.ID, ""); err != nil {
			return err
		}
		containerID := parentID
		if containerID == 0 {
			rootID, found, err := tx.IndexGet(graph.LabelSpecialNodes, graph.IndexKeyName, meta.NodeDummyRoot)
			if err != nil {
				return err
			}
			if !found {
				return errs.MetadataNotFound("containment root %s", meta.NodeDummyRoot)
			}
			containerID = rootID
		}
		if _, err := tx.CreateEdge(graph.RelChildOf, id, containerID, ""); err != nil {
			return err
		}
		if err := tx.IndexAdd(graph.LabelObjects, graph.IndexKeyID, strconv.FormatInt(id, 10), id); err != nil {
			return err
		}
		return m.writeAttributes(tx, id, def, attrs)
	})
	if err != nil {
		return 0, err
	}
	m.logger.Info("object created", zap.String("class", className), zap.Int64("id", id))
	return id, nil
}

// GetObject retrieves an instance and verifies it belongs to className or a
// subclass of it.
func (m *Mapper) GetObject(ctx context.Context, className string, id int64) (*BusinessObject, error) {
	obj, err := m.GetObjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := m.meta.IsSubclassOf(ctx, className, obj.ClassName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ObjectNotFound("object %d is not an instance of %s", id, className)
	}
	return obj, nil
}

// GetObjectByID retrieves an instance without a class check.
func (m *Mapper) GetObjectByID(ctx context.Context, id int64) (*BusinessObject, error) {
	var className string
	var rawProps map[string]string
	var refEdges []graph.Edge
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		_, found, err := tx.IndexGet(graph.LabelObjects, graph.IndexKeyID, strconv.FormatInt(id, 10))
		if err != nil {
			return err
		}
		if !found {
			return errs.ObjectNotFound("object with id %d", id)
		}
		classEdge, err := tx.SingleOut(id, graph.RelInstanceOf)
		if err != nil {
			return err
		}
		className, _, err = tx.Property(classEdge.End, "name")
		if err != nil {
			return err
		}
		rawProps, err = tx.Properties(id)
		if err != nil {
			return err
		}
		refEdges, err = tx.OutEdges(id, graph.RelRelatedTo)
		return err
	})
	if err != nil {
		return nil, err
	}

	def, err := m.meta.GetClass(ctx, className)
	if err != nil {
		return nil, err
	}
	return m.buildObject(ctx, id, def, rawProps, refEdges)
}

// UpdateObject writes a raw attribute bag onto an existing instance. An
// empty value list unsets the attribute.
func (m *Mapper) UpdateObject(ctx context.Context, className string, id int64, attrs map[string][]string) error {
	obj, err := m.GetObject(ctx, className, id)
	if err != nil {
		return err
	}
	def, err := m.meta.GetClass(ctx, obj.ClassName)
	if err != nil {
		return err
	}
	for name := range attrs {
		if attr, ok := def.Attribute(name); !ok {
			return errs.MetadataNotFound("attribute %s in class %s", name, obj.ClassName)
		} else if attr.ReadOnly && name != meta.AttrName {
			return errs.NotPermitted("attribute %s of class %s is read only", name, obj.ClassName)
		}
	}
	return m.store.Update(ctx, func(tx *graph.Tx) error {
		return m.writeAttributes(tx, id, def, attrs)
	})
}

// DeleteObject removes an instance and, recursively, everything contained in
// it. When releaseRelationships is false, any incoming RELATED_TO edge on
// the instance or its descendants aborts the deletion so no dangling
// references are ever left behind.
func (m *Mapper) DeleteObject(ctx context.Context, className string, id int64, releaseRelationships bool) error {
	if _, err := m.GetObject(ctx, className, id); err != nil {
		return err
	}
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		subtree := []int64{id}
		for cursor := 0; cursor < len(subtree); cursor++ {
			for _, rel := range []string{graph.RelChildOf, graph.RelChildOfSpecial} {
				edges, err := tx.InEdges(subtree[cursor], rel)
				if err != nil {
					return err
				}
				for _, e := range edges {
					subtree = append(subtree, e.Start)
				}
			}
		}
		for _, nodeID := range subtree {
			if !releaseRelationships {
				if n, err := tx.CountIn(nodeID, graph.RelRelatedTo); err != nil {
					return err
				} else if n > 0 {
					return errs.NotPermitted("object %d is still referenced by %d relationships", nodeID, n)
				}
			}
			if err := tx.DeleteNode(nodeID); err != nil {
				return err
			}
			if err := tx.IndexRemove(graph.LabelObjects, graph.IndexKeyID, strconv.FormatInt(nodeID, 10)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("object deleted", zap.String("class", className), zap.Int64("id", id))
	return nil
}

// GetChildren lists the instances directly contained in an object.
func (m *Mapper) GetChildren(ctx context.Context, id int64) ([]*BusinessObject, error) {
	var childIDs []int64
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		edges, err := tx.InEdges(id, graph.RelChildOf)
		if err != nil {
			return err
		}
		for _, e := range edges {
			label, err := tx.NodeLabel(e.Start)
			if err != nil {
				return err
			}
			if label == graph.LabelObjects {
				childIDs = append(childIDs, e.Start)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*BusinessObject, 0, len(childIDs))
	for _, cid := range childIDs {
		obj, err := m.GetObjectByID(ctx, cid)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// --- attribute encoding --------------------------------------------------

// writeAttributes validates and persists a raw attribute bag. Reference
// attributes are rewritten: old RELATED_TO edges named by the attribute are
// dropped and replaced with edges to the resolved items.
func (m *Mapper) writeAttributes(tx *graph.Tx, id int64, def *meta.ClassDefinition, attrs map[string][]string) error {
	for name, values := range attrs {
		attr, ok := def.Attribute(name)
		if !ok {
			return errs.MetadataNotFound("attribute %s in class %s", name, def.Name)
		}
		switch attr.Mapping() {
		case meta.MappingManyToOne, meta.MappingManyToMany:
			if _, err := tx.DeleteOutEdges(id, graph.RelRelatedTo, name); err != nil {
				return err
			}
			if attr.Mapping() == meta.MappingManyToOne && len(values) > 1 {
				return errs.InvalidArgument("attribute %s of class %s is single valued", name, def.Name)
			}
			for _, raw := range values {
				itemID, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return errs.InvalidArgument("value %q of attribute %s is not a list type item id", raw, name)
				}
				if err := m.checkItemTarget(tx, itemID, attr); err != nil {
					return err
				}
				if _, err := tx.CreateEdge(graph.RelRelatedTo, id, itemID, name); err != nil {
					return err
				}
			}
		default:
			if len(values) == 0 {
				if err := tx.DeleteProperty(id, name); err != nil {
					return err
				}
				continue
			}
			value, err := encodePrimitive(attr, values[0])
			if err != nil {
				return err
			}
			if attr.Unique {
				if err := m.checkUnique(tx, id, def, attr, value.Text); err != nil {
					return err
				}
			}
			if err := tx.SetProperty(id, name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkItemTarget verifies a reference target exists, is a list type item
// and is an instance of the attribute's declared class (or a subclass).
func (m *Mapper) checkItemTarget(tx *graph.Tx, itemID int64, attr *meta.AttributeDefinition) error {
	_, found, err := tx.IndexGet(graph.LabelListTypeItems, graph.IndexKeyID, strconv.FormatInt(itemID, 10))
	if err != nil {
		return err
	}
	if !found {
		return errs.ObjectNotFound("list type item %d referenced by attribute %s", itemID, attr.Name)
	}
	classEdge, err := tx.SingleOut(itemID, graph.RelInstanceOf)
	if err != nil {
		return err
	}
	itemClass, _, err := tx.Property(classEdge.End, "name")
	if err != nil {
		return err
	}
	ok, err := m.meta.SubclassOfTx(tx, attr.Type.Class, itemClass)
	if err != nil {
		return err
	}
	if !ok {
		return errs.InvalidArgument("item %d is a %s, attribute %s expects %s",
			itemID, itemClass, attr.Name, attr.Type.Class)
	}
	return nil
}

// checkUnique scans for another instance of the same class carrying the
// value already.
func (m *Mapper) checkUnique(tx *graph.Tx, selfID int64, def *meta.ClassDefinition, attr *meta.AttributeDefinition, value string) error {
	holders, err := tx.NodesWithProperty(attr.Name, value)
	if err != nil {
		return err
	}
	for _, holder := range holders {
		if holder == selfID {
			continue
		}
		label, err := tx.NodeLabel(holder)
		if err != nil {
			return err
		}
		if label != graph.LabelObjects && label != graph.LabelListTypeItems {
			continue
		}
		classEdge, err := tx.SingleOut(holder, graph.RelInstanceOf)
		if err != nil {
			return err
		}
		holderClass, _, err := tx.Property(classEdge.End, "name")
		if err != nil {
			return err
		}
		if holderClass == def.Name {
			return errs.InvalidArgument("value %q of unique attribute %s is already in use", value, attr.Name)
		}
	}
	return nil
}

// encodePrimitive parses a raw string per the declared primitive type. A
// failed numeric parse is a fatal InvalidArgument, never a silent coercion.
func encodePrimitive(attr *meta.AttributeDefinition, raw string) (graph.Value, error) {
	switch attr.Mapping() {
	case meta.MappingDate:
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return graph.Value{}, errs.InvalidArgument("value %q of attribute %s is not a date (expected %s)",
				raw, attr.Name, dateLayout)
		}
		return graph.Number(t.Format(dateLayout), float64(t.Unix())), nil
	case meta.MappingTimestamp:
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return graph.Number(raw, float64(unix)), nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return graph.Value{}, errs.InvalidArgument("value %q of attribute %s is not a timestamp", raw, attr.Name)
		}
		return graph.Number(strconv.FormatInt(t.Unix(), 10), float64(t.Unix())), nil
	}
	switch attr.Type.Primitive {
	case meta.PrimInteger, meta.PrimLong:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return graph.Value{}, errs.InvalidArgument("value %q of attribute %s is not an integer", raw, attr.Name)
		}
		return graph.Number(raw, float64(n)), nil
	case meta.PrimFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return graph.Value{}, errs.InvalidArgument("value %q of attribute %s is not a float", raw, attr.Name)
		}
		return graph.Number(raw, f), nil
	case meta.PrimBoolean:
		if raw != "true" && raw != "false" {
			return graph.Value{}, errs.InvalidArgument("value %q of attribute %s is not a boolean", raw, attr.Name)
		}
		return graph.Text(raw), nil
	default:
		return graph.Text(raw), nil
	}
}

// buildObject decodes raw graph state into the typed local representation.
func (m *Mapper) buildObject(ctx context.Context, id int64, def *meta.ClassDefinition, rawProps map[string]string, refEdges []graph.Edge) (*BusinessObject, error) {
	obj := &BusinessObject{
		ID:         id,
		ClassName:  def.Name,
		Name:       rawProps[meta.AttrName],
		Attributes: make(map[string]interface{}),
	}
	refsByAttr := make(map[string][]graph.Edge)
	for _, e := range refEdges {
		refsByAttr[e.Name] = append(refsByAttr[e.Name], e)
	}

	for _, attr := range def.Attributes {
		switch attr.Mapping() {
		case meta.MappingManyToOne, meta.MappingManyToMany:
			edges := refsByAttr[attr.Name]
			if len(edges) == 0 {
				continue
			}
			if attr.Mapping() == meta.MappingManyToOne && len(edges) > 1 {
				return nil, fmt.Errorf("object %d has %d edges for single valued attribute %s",
					id, len(edges), attr.Name)
			}
			refs, err := m.resolveItems(ctx, edges)
			if err != nil {
				return nil, err
			}
			if attr.Mapping() == meta.MappingManyToOne {
				obj.Attributes[attr.Name] = &refs[0]
			} else {
				obj.Attributes[attr.Name] = refs
			}
		default:
			raw, ok := rawProps[attr.Name]
			if !ok {
				continue
			}
			value, err := decodePrimitive(attr, raw)
			if err != nil {
				return nil, err
			}
			obj.Attributes[attr.Name] = value
		}
	}
	return obj, nil
}

func (m *Mapper) resolveItems(ctx context.Context, edges []graph.Edge) ([]ItemRef, error) {
	refs := make([]ItemRef, 0, len(edges))
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		for _, e := range edges {
			name, found, err := tx.Property(e.End, meta.AttrName)
			if err != nil {
				return err
			}
			if !found {
				return errs.ObjectNotFound("list type item %d (dangling reference %s)", e.End, e.Name)
			}
			classEdge, err := tx.SingleOut(e.End, graph.RelInstanceOf)
			if err != nil {
				return err
			}
			className, _, err := tx.Property(classEdge.End, meta.AttrName)
			if err != nil {
				return err
			}
			refs = append(refs, ItemRef{ID: e.End, Name: name, ClassName: className})
		}
		return nil
	})
	return refs, err
}

// decodePrimitive parses a stored canonical string into its Go type.
func decodePrimitive(attr *meta.AttributeDefinition, raw string) (interface{}, error) {
	switch attr.Mapping() {
	case meta.MappingDate:
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, errs.InvalidArgument("stored value %q of attribute %s is not a date", raw, attr.Name)
		}
		return t, nil
	case meta.MappingTimestamp:
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errs.InvalidArgument("stored value %q of attribute %s is not a timestamp", raw, attr.Name)
		}
		return time.Unix(unix, 0).UTC(), nil
	}
	switch attr.Type.Primitive {
	case meta.PrimInteger, meta.PrimLong:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errs.InvalidArgument("stored value %q of attribute %s is not an integer", raw, attr.Name)
		}
		return n, nil
	case meta.PrimFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errs.InvalidArgument("stored value %q of attribute %s is not a float", raw, attr.Name)
		}
		return f, nil
	case meta.PrimBoolean:
		return raw == "true", nil
	default:
		return raw, nil
	}
}

func displayClass(className string) string {
	if className == "" {
		return "the navigation root"
	}
	return className
}
