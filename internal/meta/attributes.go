package meta

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
)

// CreateAttribute adds an attribute to a single class. Inheritance is a
// creation-time copy, so classes created later under this one will pick the
// attribute up while existing subclasses are deliberately left alone.
func (m *Manager) CreateAttribute(ctx context.Context, className string, attr *AttributeDefinition) (int64, error) {
	if err := ValidateAttributeName(attr.Name); err != nil {
		return 0, errs.InvalidArgument("%v", err)
	}
	if ReservedAttribute(attr.Name) {
		return 0, errs.InvalidArgument("attribute name %s is reserved", attr.Name)
	}

	var attrID int64
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		classID, err := m.classNodeByName(tx, className)
		if err != nil {
			return err
		}
		def, err := m.readClass(tx, classID)
		if err != nil {
			return err
		}
		if def.HasAttribute(attr.Name) {
			return errs.InvalidArgument("class %s already has an attribute named %s", className, attr.Name)
		}
		if err := m.checkAttributeType(tx, attr); err != nil {
			return err
		}
		if attr.CreationDate.IsZero() {
			attr.CreationDate = time.Now()
		}
		attrID, err = m.writeAttributeNode(tx, classID, attr)
		return err
	})
	if err != nil {
		return 0, err
	}
	m.cache.RemoveSubtree(className)
	m.refreshSubtree(ctx, className)
	m.logger.Info("attribute created",
		zap.String("class", className), zap.String("attribute", attr.Name))
	return attrID, nil
}

// GetAttribute resolves one attribute definition of a class.
func (m *Manager) GetAttribute(ctx context.Context, className, attributeName string) (*AttributeDefinition, error) {
	def, err := m.GetClass(ctx, className)
	if err != nil {
		return nil, err
	}
	attr, ok := def.Attribute(attributeName)
	if !ok {
		return nil, errs.MetadataNotFound("attribute %s in class %s", attributeName, className)
	}
	return attr, nil
}

// AttributeProperties carries the optional fields SetAttributeProperties may
// change. Nil pointers leave the current value untouched.
type AttributeProperties struct {
	Name           *string
	DisplayName    *string
	Description    *string
	Type           *AttributeType
	Visible        *bool
	Mandatory      *bool
	Multiple       *bool
	Unique         *bool
	ReadOnly       *bool
	NoCopy         *bool
	Administrative *bool
	DisplayOrder   *int
}

// SetAttributeProperties updates one attribute record. The reserved
// attributes refuse renames and type changes; type changes elsewhere are
// limited to compatible representations.
func (m *Manager) SetAttributeProperties(ctx context.Context, className, attributeName string, p AttributeProperties) error {
	if ReservedAttribute(attributeName) && (p.Name != nil || p.Type != nil) {
		return errs.InvalidArgument("attribute %s is reserved and can not be renamed or retyped", attributeName)
	}
	if p.Name != nil {
		if err := ValidateAttributeName(*p.Name); err != nil {
			return errs.InvalidArgument("%v", err)
		}
		if ReservedAttribute(*p.Name) {
			return errs.InvalidArgument("attribute name %s is reserved", *p.Name)
		}
	}

	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		classID, err := m.classNodeByName(tx, className)
		if err != nil {
			return err
		}
		def, err := m.readClass(tx, classID)
		if err != nil {
			return err
		}
		attr, ok := def.Attribute(attributeName)
		if !ok {
			return errs.MetadataNotFound("attribute %s in class %s", attributeName, className)
		}

		if p.Name != nil && *p.Name != attr.Name {
			if def.HasAttribute(*p.Name) {
				return errs.InvalidArgument("class %s already has an attribute named %s", className, *p.Name)
			}
			if err := tx.SetProperty(attr.ID, propName, graph.Text(*p.Name)); err != nil {
				return err
			}
		}
		if p.Type != nil && p.Type.String() != attr.Type.String() {
			if !RetypeAllowed(attr.Type, *p.Type) {
				return errs.InvalidArgument("attribute %s can not change type from %s to %s",
					attributeName, attr.Type, *p.Type)
			}
			if err := m.checkAttributeType(tx, &AttributeDefinition{Name: attributeName, Type: *p.Type}); err != nil {
				return err
			}
			if err := tx.SetProperty(attr.ID, propType, graph.Text(p.Type.String())); err != nil {
				return err
			}
		}
		for prop, val := range map[string]*string{
			propDisplayName: p.DisplayName,
			propDescription: p.Description,
		} {
			if val != nil {
				if err := tx.SetProperty(attr.ID, prop, graph.Text(*val)); err != nil {
					return err
				}
			}
		}
		for prop, val := range map[string]*bool{
			propVisible:        p.Visible,
			propMandatory:      p.Mandatory,
			propMultiple:       p.Multiple,
			propUnique:         p.Unique,
			propReadOnly:       p.ReadOnly,
			propNoCopy:         p.NoCopy,
			propAdministrative: p.Administrative,
		} {
			if val != nil {
				if err := tx.SetProperty(attr.ID, prop, graph.Text(FormatBool(*val))); err != nil {
					return err
				}
			}
		}
		if p.DisplayOrder != nil {
			if err := tx.SetProperty(attr.ID, propDisplayOrder,
				graph.Number(strconv.Itoa(*p.DisplayOrder), float64(*p.DisplayOrder))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.cache.RemoveSubtree(className)
	m.refreshSubtree(ctx, className)
	return nil
}

// DeleteAttribute removes one attribute record from a class. Subclass copies
// are independent and stay in place.
func (m *Manager) DeleteAttribute(ctx context.Context, className, attributeName string) error {
	if ReservedAttribute(attributeName) {
		return errs.InvalidArgument("attribute %s is reserved and can not be deleted", attributeName)
	}
	err := m.store.Update(ctx, func(tx *graph.Tx) error {
		classID, err := m.classNodeByName(tx, className)
		if err != nil {
			return err
		}
		def, err := m.readClass(tx, classID)
		if err != nil {
			return err
		}
		attr, ok := def.Attribute(attributeName)
		if !ok {
			return errs.MetadataNotFound("attribute %s in class %s", attributeName, className)
		}
		return tx.DeleteNode(attr.ID)
	})
	if err != nil {
		return err
	}
	m.cache.RemoveSubtree(className)
	m.refreshSubtree(ctx, className)
	m.logger.Info("attribute deleted",
		zap.String("class", className), zap.String("attribute", attributeName))
	return nil
}
