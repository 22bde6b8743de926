package meta

import (
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
)

// Property names used on class and attribute nodes.
const (
	propName           = "name"
	propDisplayName    = "displayName"
	propDescription    = "description"
	propAbstract       = "abstract"
	propCustom         = "custom"
	propCountable      = "countable"
	propInDesign       = "inDesign"
	propColor          = "color"
	propIcon           = "icon"
	propSmallIcon      = "smallIcon"
	propCreationDate   = "creationDate"
	propType           = "type"
	propVisible        = "visible"
	propMandatory      = "mandatory"
	propMultiple       = "multiple"
	propUnique         = "unique"
	propReadOnly       = "readOnly"
	propNoCopy         = "noCopy"
	propAdministrative = "administrative"
	propDisplayOrder   = "displayOrder"
)

// Manager owns the class and attribute schema. Every mutation runs in a
// single storage transaction and refreshes the cache before returning.
type Manager struct {
	store  *graph.Store
	cache  *ClassCache
	logger *zap.Logger
}

// NewManager wires a metadata manager to its storage and cache.
func NewManager(store *graph.Store, cache *ClassCache, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, cache: cache, logger: logger}
}

// Cache exposes the class cache to collaborating managers.
func (m *Manager) Cache() *ClassCache { return m.cache }

// Store exposes the storage handle to collaborating managers.
func (m *Manager) Store() *graph.Store { return m.store }

// Bootstrap seeds the fixed schema roots: RootObject (carrying the reserved
// attributes), the abstract InventoryObject and GenericObjectList roots and
// the DummyRoot containment marker. It is idempotent.
func (m *Manager) Bootstrap(ctx context.Context) error {
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		if _, found, err := tx.IndexGet(graph.LabelClasses, graph.IndexKeyName, ClassRootObject); err != nil {
			return err
		} else if found {
			return nil
		}

		rootID, err := m.writeClassNode(tx, &ClassDefinition{
			Name: ClassRootObject, DisplayName: "Root", Abstract: true, CreationDate: time.Now(),
		}, 0)
		if err != nil {
			return err
		}
		now := time.Now()
		reserved := []*AttributeDefinition{
			{Name: AttrName, DisplayName: "Name", Type: PrimitiveType(PrimString), Visible: true, Mandatory: true, CreationDate: now},
			{Name: AttrCreationDate, DisplayName: "Creation Date", Type: PrimitiveType(PrimTimestamp), Visible: true, ReadOnly: true, DisplayOrder: 1, CreationDate: now},
		}
		for _, attr := range reserved {
			if _, err := m.writeAttributeNode(tx, rootID, attr); err != nil {
				return err
			}
		}

		for _, def := range []*ClassDefinition{
			{Name: ClassInventoryObject, DisplayName: "Inventory Object", Abstract: true, Parent: ClassRootObject, CreationDate: now},
			{Name: ClassGenericObjectList, DisplayName: "List Type", Abstract: true, Parent: ClassRootObject, CreationDate: now},
		} {
			id, err := m.writeClassNode(tx, def, rootID)
			if err != nil {
				return err
			}
			for _, attr := range reserved {
				if _, err := m.writeAttributeNode(tx, id, attr); err != nil {
					return err
				}
			}
		}

		dummyID, err := tx.CreateNode(graph.LabelSpecialNodes)
		if err != nil {
			return err
		}
		if err := tx.SetProperty(dummyID, propName, graph.Text(NodeDummyRoot)); err != nil {
			return err
		}
		return tx.IndexAdd(graph.LabelSpecialNodes, graph.IndexKeyName, NodeDummyRoot, dummyID)
	})
	if err != nil {
		return err
	}
	m.logger.Info("metadata schema bootstrapped")
	return nil
}

// CreateClass validates and persists a new class. Parent attributes not
// overridden by the definition are copied into the class as independent
// records. Returns the new class id.
func (m *Manager) CreateClass(ctx context.Context, def *ClassDefinition) (int64, error) {
	if err := ValidateClassName(def.Name); err != nil {
		return 0, errs.InvalidArgument("%v", err)
	}
	if def.Parent == "" && def.Name != ClassRootObject {
		return 0, errs.InvalidArgument("class %s must declare a parent class", def.Name)
	}
	for _, attr := range def.Attributes {
		if err := ValidateAttributeName(attr.Name); err != nil {
			return 0, errs.InvalidArgument("%v", err)
		}
		if ReservedAttribute(attr.Name) {
			return 0, errs.InvalidArgument("attribute %s is reserved and is inherited automatically", attr.Name)
		}
	}
	if def.CreationDate.IsZero() {
		def.CreationDate = time.Now()
	}

	var newID int64
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		if _, found, err := tx.IndexGet(graph.LabelClasses, graph.IndexKeyName, def.Name); err != nil {
			return err
		} else if found {
			return errs.InvalidArgument("a class named %s already exists", def.Name)
		}

		parentID, err := m.classNodeByName(tx, def.Parent)
		if err != nil {
			return err
		}
		parent, err := m.readClass(tx, parentID)
		if err != nil {
			return err
		}

		for _, attr := range def.Attributes {
			if err := m.checkAttributeType(tx, attr); err != nil {
				return err
			}
		}

		newID, err = m.writeClassNode(tx, def, parentID)
		if err != nil {
			return graph.AsInvalidArgument(err, "a class named %s already exists", def.Name)
		}
		order := 0
		for _, attr := range def.Attributes {
			if attr.CreationDate.IsZero() {
				attr.CreationDate = time.Now()
			}
			if attr.DisplayOrder == 0 {
				attr.DisplayOrder = order
			}
			order++
			if _, err := m.writeAttributeNode(tx, newID, attr); err != nil {
				return err
			}
		}
		// Inheritance is a value copy made exactly once, here. Later edits
		// to the parent's attributes never reach this class.
		for _, inherited := range parent.Attributes {
			if hasAttributeNamed(def.Attributes, inherited.Name) {
				continue
			}
			if _, err := m.writeAttributeNode(tx, newID, inherited.Copy()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.refreshClass(ctx, def.Name)
	m.logger.Info("class created", zap.String("class", def.Name), zap.Int64("id", newID))
	return newID, nil
}

// GetClass resolves a class by name, consulting the cache first. A cache
// miss always falls through to storage before "not found" is reported.
func (m *Manager) GetClass(ctx context.Context, name string) (*ClassDefinition, error) {
	if def, ok := m.cache.Get(name); ok {
		return def, nil
	}
	var def *ClassDefinition
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		id, err := m.classNodeByName(tx, name)
		if err != nil {
			return err
		}
		def, err = m.readClass(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.cache.Put(def)
	return def, nil
}

// GetClassByID resolves a class by its node id.
func (m *Manager) GetClassByID(ctx context.Context, id int64) (*ClassDefinition, error) {
	if def, ok := m.cache.GetByID(id); ok {
		return def, nil
	}
	var def *ClassDefinition
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		_, found, err := tx.IndexGet(graph.LabelClasses, graph.IndexKeyID, strconv.FormatInt(id, 10))
		if err != nil {
			return err
		}
		if !found {
			return errs.MetadataNotFound("class with id %d", id)
		}
		def, err = m.readClass(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.cache.Put(def)
	return def, nil
}

// GetAllClasses lists every class. List types and in-design classes are
// filtered out unless requested.
func (m *Manager) GetAllClasses(ctx context.Context, includeListTypes, includeInDesign bool) ([]*ClassDefinition, error) {
	var out []*ClassDefinition
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		ids, err := tx.NodesByLabel(graph.LabelClasses)
		if err != nil {
			return err
		}
		for _, id := range ids {
			def, err := m.readClass(tx, id)
			if err != nil {
				return err
			}
			if !includeInDesign && def.InDesign {
				continue
			}
			if !includeListTypes {
				isList, err := m.isSubclassTx(tx, ClassGenericObjectList, def.Name)
				if err != nil {
					return err
				}
				if isList && def.Name != ClassGenericObjectList {
					continue
				}
			}
			out = append(out, def)
		}
		return nil
	})
	return out, err
}

// ClassProperties carries the optional fields SetClassProperties may change.
// Nil pointers leave the current value untouched.
type ClassProperties struct {
	Name        *string
	DisplayName *string
	Description *string
	Abstract    *bool
	InDesign    *bool
	Countable   *bool
	Color       *int
	Icon        []byte
	SmallIcon   []byte
}

// SetClassProperties updates a class's own metadata. Renaming is restricted
// to custom classes; attributes elsewhere referencing the class as a list
// type are retargeted to the new name in the same transaction.
func (m *Manager) SetClassProperties(ctx context.Context, className string, p ClassProperties) error {
	if p.Name != nil {
		if err := ValidateClassName(*p.Name); err != nil {
			return errs.InvalidArgument("%v", err)
		}
	}
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		id, err := m.classNodeByName(tx, className)
		if err != nil {
			return err
		}
		def, err := m.readClass(tx, id)
		if err != nil {
			return err
		}

		if p.Name != nil && *p.Name != def.Name {
			if !def.Custom {
				return errs.NotPermitted("core class %s can not be renamed", def.Name)
			}
			if _, found, err := tx.IndexGet(graph.LabelClasses, graph.IndexKeyName, *p.Name); err != nil {
				return err
			} else if found {
				return errs.InvalidArgument("a class named %s already exists", *p.Name)
			}
			if err := tx.IndexRemove(graph.LabelClasses, graph.IndexKeyName, def.Name); err != nil {
				return err
			}
			if err := tx.IndexAdd(graph.LabelClasses, graph.IndexKeyName, *p.Name, id); err != nil {
				return graph.AsInvalidArgument(err, "a class named %s already exists", *p.Name)
			}
			if err := tx.SetProperty(id, propName, graph.Text(*p.Name)); err != nil {
				return err
			}
			// Attributes typed against the old name follow the rename.
			attrIDs, err := tx.NodesWithProperty(propType, def.Name)
			if err != nil {
				return err
			}
			for _, attrID := range attrIDs {
				if label, err := tx.NodeLabel(attrID); err != nil {
					return err
				} else if label != graph.LabelAttributes {
					continue
				}
				if err := tx.SetProperty(attrID, propType, graph.Text(*p.Name)); err != nil {
					return err
				}
			}
		}
		if p.DisplayName != nil {
			if err := tx.SetProperty(id, propDisplayName, graph.Text(*p.DisplayName)); err != nil {
				return err
			}
		}
		if p.Description != nil {
			if err := tx.SetProperty(id, propDescription, graph.Text(*p.Description)); err != nil {
				return err
			}
		}
		if p.Abstract != nil {
			if err := tx.SetProperty(id, propAbstract, graph.Text(FormatBool(*p.Abstract))); err != nil {
				return err
			}
		}
		if p.InDesign != nil {
			if err := tx.SetProperty(id, propInDesign, graph.Text(FormatBool(*p.InDesign))); err != nil {
				return err
			}
		}
		if p.Countable != nil {
			if err := tx.SetProperty(id, propCountable, graph.Text(FormatBool(*p.Countable))); err != nil {
				return err
			}
		}
		if p.Color != nil {
			if err := tx.SetProperty(id, propColor, graph.Number(strconv.Itoa(*p.Color), float64(*p.Color))); err != nil {
				return err
			}
		}
		if p.Icon != nil {
			if err := tx.SetProperty(id, propIcon, graph.Text(base64.StdEncoding.EncodeToString(p.Icon))); err != nil {
				return err
			}
		}
		if p.SmallIcon != nil {
			if err := tx.SetProperty(id, propSmallIcon, graph.Text(base64.StdEncoding.EncodeToString(p.SmallIcon))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.cache.RemoveSubtree(className)
	name := className
	if p.Name != nil {
		name = *p.Name
	}
	m.refreshSubtree(ctx, name)
	return nil
}

// DeleteClass removes a custom class with no instances and no subclasses,
// together with its attribute records and template elements.
func (m *Manager) DeleteClass(ctx context.Context, className string) error {
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		id, err := m.classNodeByName(tx, className)
		if err != nil {
			return err
		}
		def, err := m.readClass(tx, id)
		if err != nil {
			return err
		}
		if !def.Custom {
			return errs.NotPermitted("core class %s can not be deleted", className)
		}
		if n, err := tx.CountIn(id, graph.RelExtends); err != nil {
			return err
		} else if n > 0 {
			return errs.NotPermitted("class %s has %d subclasses", className, n)
		}
		if n, err := tx.CountIn(id, graph.RelInstanceOf); err != nil {
			return err
		} else if n > 0 {
			return errs.NotPermitted("class %s has %d instances", className, n)
		}

		// Owned attribute records.
		attrEdges, err := tx.OutEdges(id, graph.RelHasAttribute)
		if err != nil {
			return err
		}
		for _, e := range attrEdges {
			if err := tx.DeleteNode(e.End); err != nil {
				return err
			}
		}
		// Template elements stamped from this class.
		tplEdges, err := tx.InEdges(id, graph.RelInstanceOfSpecial)
		if err != nil {
			return err
		}
		for _, e := range tplEdges {
			if err := tx.DeleteNode(e.Start); err != nil {
				return err
			}
		}
		return tx.DeleteNode(id)
	})
	if err != nil {
		return err
	}
	m.cache.Remove(className)
	m.cache.ClearPossibleChildren()
	m.logger.Info("class deleted", zap.String("class", className))
	return nil
}

// DeleteClassByID is DeleteClass addressed by node id.
func (m *Manager) DeleteClassByID(ctx context.Context, id int64) error {
	def, err := m.GetClassByID(ctx, id)
	if err != nil {
		return err
	}
	return m.DeleteClass(ctx, def.Name)
}

// --- helpers -------------------------------------------------------------

func hasAttributeNamed(attrs []*AttributeDefinition, name string) bool {
	for _, a := range attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

// classNodeByName resolves a class name through the name index.
func (m *Manager) classNodeByName(tx *graph.Tx, name string) (int64, error) {
	id, found, err := tx.IndexGet(graph.LabelClasses, graph.IndexKeyName, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errs.MetadataNotFound("class %s", name)
	}
	return id, nil
}

// checkAttributeType verifies that a reference type points at a
// non-in-design list type class.
func (m *Manager) checkAttributeType(tx *graph.Tx, attr *AttributeDefinition) error {
	if !attr.Type.IsReference() {
		return nil
	}
	if _, err := m.classNodeByName(tx, attr.Type.Class); err != nil {
		return err
	}
	isList, err := m.isSubclassTx(tx, ClassGenericObjectList, attr.Type.Class)
	if err != nil {
		return err
	}
	if !isList {
		return errs.InvalidArgument("class %s is not a list type and can not be used as attribute type", attr.Type.Class)
	}
	return nil
}

// isSubclassTx walks the EXTENDS chain upward inside a transaction. The
// relation is reflexive.
func (m *Manager) isSubclassTx(tx *graph.Tx, ancestor, name string) (bool, error) {
	currentID, err := m.classNodeByName(tx, name)
	if err != nil {
		return false, err
	}
	ancestorID, err := m.classNodeByName(tx, ancestor)
	if err != nil {
		return false, err
	}
	for {
		if currentID == ancestorID {
			return true, nil
		}
		edge, err := tx.SingleOut(currentID, graph.RelExtends)
		if err != nil {
			if isEdgeNotFound(err) {
				return false, nil
			}
			return false, err
		}
		currentID = edge.End
	}
}

func isEdgeNotFound(err error) bool {
	return errors.Is(err, graph.ErrEdgeNotFound)
}

// SubclassOfTx is the subclass check scoped to an already-open transaction,
// for callers that must not start a nested one.
func (m *Manager) SubclassOfTx(tx *graph.Tx, ancestor, name string) (bool, error) {
	return m.isSubclassTx(tx, ancestor, name)
}

// IsSubclassOf reports whether name is ancestor or one of its descendants,
// answering from the cache when the whole chain is cached.
func (m *Manager) IsSubclassOf(ctx context.Context, ancestor, name string) (bool, error) {
	if answer, known := m.cache.IsSubclass(ancestor, name); known {
		return answer, nil
	}
	var result bool
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		var err error
		result, err = m.isSubclassTx(tx, ancestor, name)
		return err
	})
	return result, err
}

// writeClassNode persists a class node with its properties, index entries
// and EXTENDS edge. parentID zero means root (no edge).
func (m *Manager) writeClassNode(tx *graph.Tx, def *ClassDefinition, parentID int64) (int64, error) {
	id, err := tx.CreateNode(graph.LabelClasses)
	if err != nil {
		return 0, err
	}
	def.ID = id
	if def.CreationDate.IsZero() {
		def.CreationDate = time.Now()
	}
	created := def.CreationDate.Unix()
	props := map[string]graph.Value{
		propName:         graph.Text(def.Name),
		propDisplayName:  graph.Text(def.DisplayName),
		propDescription:  graph.Text(def.Description),
		propAbstract:     graph.Text(FormatBool(def.Abstract)),
		propCustom:       graph.Text(FormatBool(def.Custom)),
		propCountable:    graph.Text(FormatBool(def.Countable)),
		propInDesign:     graph.Text(FormatBool(def.InDesign)),
		propColor:        graph.Number(strconv.Itoa(def.Color), float64(def.Color)),
		propCreationDate: graph.Number(strconv.FormatInt(created, 10), float64(created)),
	}
	if len(def.Icon) > 0 {
		props[propIcon] = graph.Text(base64.StdEncoding.EncodeToString(def.Icon))
	}
	if len(def.SmallIcon) > 0 {
		props[propSmallIcon] = graph.Text(base64.StdEncoding.EncodeToString(def.SmallIcon))
	}
	if err := tx.SetProperties(id, props); err != nil {
		return 0, err
	}
	if err := tx.IndexAdd(graph.LabelClasses, graph.IndexKeyName, def.Name, id); err != nil {
		return 0, err
	}
	if err := tx.IndexAdd(graph.LabelClasses, graph.IndexKeyID, strconv.FormatInt(id, 10), id); err != nil {
		return 0, err
	}
	if parentID != 0 {
		if _, err := tx.CreateEdge(graph.RelExtends, id, parentID, ""); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// writeAttributeNode persists one attribute record owned by a class.
func (m *Manager) writeAttributeNode(tx *graph.Tx, classID int64, attr *AttributeDefinition) (int64, error) {
	id, err := tx.CreateNode(graph.LabelAttributes)
	if err != nil {
		return 0, err
	}
	attr.ID = id
	if attr.CreationDate.IsZero() {
		attr.CreationDate = time.Now()
	}
	created := attr.CreationDate.Unix()
	props := map[string]graph.Value{
		propName:           graph.Text(attr.Name),
		propDisplayName:    graph.Text(attr.DisplayName),
		propDescription:    graph.Text(attr.Description),
		propType:           graph.Text(attr.Type.String()),
		propVisible:        graph.Text(FormatBool(attr.Visible)),
		propMandatory:      graph.Text(FormatBool(attr.Mandatory)),
		propMultiple:       graph.Text(FormatBool(attr.Multiple)),
		propUnique:         graph.Text(FormatBool(attr.Unique)),
		propReadOnly:       graph.Text(FormatBool(attr.ReadOnly)),
		propNoCopy:         graph.Text(FormatBool(attr.NoCopy)),
		propAdministrative: graph.Text(FormatBool(attr.Administrative)),
		propDisplayOrder:   graph.Number(strconv.Itoa(attr.DisplayOrder), float64(attr.DisplayOrder)),
		propCreationDate:   graph.Number(strconv.FormatInt(created, 10), float64(created)),
	}
	if err := tx.SetProperties(id, props); err != nil {
		return 0, err
	}
	if _, err := tx.CreateEdge(graph.RelHasAttribute, classID, id, ""); err != nil {
		return 0, err
	}
	return id, nil
}

// readClass materializes a full ClassDefinition from its node.
func (m *Manager) readClass(tx *graph.Tx, id int64) (*ClassDefinition, error) {
	props, err := tx.Properties(id)
	if err != nil {
		return nil, err
	}
	if props[propName] == "" {
		return nil, errs.MetadataNotFound("class with id %d", id)
	}
	def := &ClassDefinition{
		ID:          id,
		Name:        props[propName],
		DisplayName: props[propDisplayName],
		Description: props[propDescription],
		Abstract:    ParseBool(props[propAbstract]),
		Custom:      ParseBool(props[propCustom]),
		Countable:   ParseBool(props[propCountable]),
		InDesign:    ParseBool(props[propInDesign]),
	}
	if c, err := strconv.Atoi(props[propColor]); err == nil {
		def.Color = c
	}
	if ts, err := strconv.ParseInt(props[propCreationDate], 10, 64); err == nil {
		def.CreationDate = time.Unix(ts, 0)
	}
	if enc := props[propIcon]; enc != "" {
		if raw, err := base64.StdEncoding.DecodeString(enc); err == nil {
			def.Icon = raw
		}
	}
	if enc := props[propSmallIcon]; enc != "" {
		if raw, err := base64.StdEncoding.DecodeString(enc); err == nil {
			def.SmallIcon = raw
		}
	}

	parentEdge, err := tx.SingleOut(id, graph.RelExtends)
	if err != nil && !isEdgeNotFound(err) {
		return nil, err
	}
	if parentEdge != nil {
		parentName, found, err := tx.Property(parentEdge.End, propName)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("class %s has a parent node without a name", def.Name)
		}
		def.Parent = parentName
	}

	attrEdges, err := tx.OutEdges(id, graph.RelHasAttribute)
	if err != nil {
		return nil, err
	}
	for _, e := range attrEdges {
		attr, err := m.readAttribute(tx, e.End)
		if err != nil {
			return nil, err
		}
		def.Attributes = append(def.Attributes, attr)
	}
	sortAttributes(def.Attributes)
	return def, nil
}

func (m *Manager) readAttribute(tx *graph.Tx, id int64) (*AttributeDefinition, error) {
	props, err := tx.Properties(id)
	if err != nil {
		return nil, err
	}
	attr := &AttributeDefinition{
		ID:             id,
		Name:           props[propName],
		DisplayName:    props[propDisplayName],
		Description:    props[propDescription],
		Type:           ParseAttributeType(props[propType]),
		Visible:        ParseBool(props[propVisible]),
		Mandatory:      ParseBool(props[propMandatory]),
		Multiple:       ParseBool(props[propMultiple]),
		Unique:         ParseBool(props[propUnique]),
		ReadOnly:       ParseBool(props[propReadOnly]),
		NoCopy:         ParseBool(props[propNoCopy]),
		Administrative: ParseBool(props[propAdministrative]),
	}
	if n, err := strconv.Atoi(props[propDisplayOrder]); err == nil {
		attr.DisplayOrder = n
	}
	if ts, err := strconv.ParseInt(props[propCreationDate], 10, 64); err == nil {
		attr.CreationDate = time.Unix(ts, 0)
	}
	return attr, nil
}

// sortAttributes orders attribute slices by displayOrder, then name.
func sortAttributes(attrs []*AttributeDefinition) {
	slices.SortFunc(attrs, func(a, b *AttributeDefinition) int {
		if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// refreshClass re-reads one class from storage into the cache.
func (m *Manager) refreshClass(ctx context.Context, name string) {
	var def *ClassDefinition
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		id, err := m.classNodeByName(tx, name)
		if err != nil {
			return err
		}
		def, err = m.readClass(tx, id)
		return err
	})
	if err != nil {
		m.cache.Remove(name)
		return
	}
	m.cache.Put(def)
}

// refreshSubtree rebuilds the cache entries for a class and all its
// descendants, breadth-first over the EXTENDS edge.
func (m *Manager) refreshSubtree(ctx context.Context, name string) {
	err := m.store.View(ctx, func(tx *graph.Tx) error {
		rootID, err := m.classNodeByName(tx, name)
		if err != nil {
			return err
		}
		queue := []int64{rootID}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			def, err := m.readClass(tx, id)
			if err != nil {
				return err
			}
			m.cache.Put(def)
			subclassEdges, err := tx.InEdges(id, graph.RelExtends)
			if err != nil {
				return err
			}
			for _, e := range subclassEdges {
				queue = append(queue, e.Start)
			}
		}
		return nil
	})
	if err != nil {
		m.cache.RemoveSubtree(name)
	}
}
