// Package meta owns the runtime class and attribute model: classes,
// attributes and containment rules are data, not compiled types. Class
// definitions are materialized flat (each class carries its full attribute
// list, copied from the parent at creation time) so inheritance never needs
// live resolution.
package meta

import (
	"fmt"
	"regexp"
	"time"
)

// Well-known class and node names seeded at bootstrap. These are part of the
// persisted vocabulary.
const (
	// ClassRootObject is the single root of the inheritance tree
	ClassRootObject = "RootObject"
	// ClassInventoryObject is the abstract root of all business classes
	ClassInventoryObject = "InventoryObject"
	// ClassGenericObjectList is the abstract root of all list type classes
	ClassGenericObjectList = "GenericObjectList"
	// NodeDummyRoot is the virtual containment root; containment rules with
	// no parent class attach to it
	NodeDummyRoot = "DummyRoot"
)

// Reserved attribute names present on every class. They cannot be created,
// renamed, retyped or deleted through the attribute lifecycle.
const (
	AttrName         = "name"
	AttrCreationDate = "creationDate"
)

var (
	classNamePattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	attributeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// ValidClassName reports whether a class name matches the allowed pattern.
func ValidClassName(name string) bool {
	return classNamePattern.MatchString(name)
}

// ValidAttributeName reports whether an attribute name matches the allowed pattern.
func ValidAttributeName(name string) bool {
	return attributeNamePattern.MatchString(name)
}

// ReservedAttribute reports whether the name is one of the fixed attributes.
func ReservedAttribute(name string) bool {
	return name == AttrName || name == AttrCreationDate
}

// Primitive is a built-in attribute value type.
type Primitive int

const (
	PrimString Primitive = iota
	PrimInteger
	PrimFloat
	PrimLong
	PrimBoolean
	PrimTimestamp
	PrimDate
)

// String returns the persisted name of the primitive type
func (p Primitive) String() string {
	switch p {
	case PrimString:
		return "String"
	case PrimInteger:
		return "Integer"
	case PrimFloat:
		return "Float"
	case PrimLong:
		return "Long"
	case PrimBoolean:
		return "Boolean"
	case PrimTimestamp:
		return "Timestamp"
	case PrimDate:
		return "Date"
	default:
		return "Unknown"
	}
}

// ParsePrimitive converts a persisted type name to a Primitive. The bool is
// false when the name is not a primitive (and therefore names a list type
// class).
func ParsePrimitive(s string) (Primitive, bool) {
	switch s {
	case "String":
		return PrimString, true
	case "Integer":
		return PrimInteger, true
	case "Float":
		return PrimFloat, true
	case "Long":
		return PrimLong, true
	case "Boolean":
		return PrimBoolean, true
	case "Timestamp":
		return PrimTimestamp, true
	case "Date":
		return PrimDate, true
	default:
		return PrimString, false
	}
}

// Numeric reports whether values of the primitive compare numerically.
func (p Primitive) Numeric() bool {
	switch p {
	case PrimInteger, PrimFloat, PrimLong, PrimTimestamp, PrimDate:
		return true
	default:
		return false
	}
}

// AttributeType is a closed tagged union: either a primitive or a reference
// to a list type class. Class is empty exactly when the type is primitive.
type AttributeType struct {
	Primitive Primitive
	Class     string
}

// PrimitiveType builds a primitive attribute type.
func PrimitiveType(p Primitive) AttributeType {
	return AttributeType{Primitive: p}
}

// ReferenceType builds a reference to a list type class.
func ReferenceType(className string) AttributeType {
	return AttributeType{Class: className}
}

// IsReference reports whether the type points at a list type class.
func (t AttributeType) IsReference() bool {
	return t.Class != ""
}

// String returns the persisted type name: the primitive name or the list
// type class name.
func (t AttributeType) String() string {
	if t.IsReference() {
		return t.Class
	}
	return t.Primitive.String()
}

// ParseAttributeType interprets a persisted type name. Anything that is not
// a primitive name is taken as a list type class reference.
func ParseAttributeType(s string) AttributeType {
	if p, ok := ParsePrimitive(s); ok {
		return PrimitiveType(p)
	}
	return ReferenceType(s)
}

// Mapping tells the object mapper how an attribute is stored on the graph.
// The codes are part of the persisted format.
type Mapping int

const (
	MappingPrimitive  Mapping = 1
	MappingDate       Mapping = 2
	MappingTimestamp  Mapping = 3
	MappingManyToOne  Mapping = 5
	MappingManyToMany Mapping = 6
)

// AttributeDefinition describes one attribute of a class. Instances of the
// struct are independent records: a subclass's copy shares nothing with the
// parent's original.
type AttributeDefinition struct {
	ID             int64
	Name           string
	DisplayName    string
	Description    string
	Type           AttributeType
	Visible        bool
	Mandatory      bool
	Multiple       bool
	Unique         bool
	ReadOnly       bool
	NoCopy         bool
	Administrative bool
	DisplayOrder   int
	CreationDate   time.Time
}

// Mapping derives the storage mapping from the attribute's type and
// multiplicity.
func (a *AttributeDefinition) Mapping() Mapping {
	if a.Type.IsReference() {
		if a.Multiple {
			return MappingManyToMany
		}
		return MappingManyToOne
	}
	switch a.Type.Primitive {
	case PrimDate:
		return MappingDate
	case PrimTimestamp:
		return MappingTimestamp
	default:
		return MappingPrimitive
	}
}

// Copy returns an independent attribute record with no persisted identity.
func (a *AttributeDefinition) Copy() *AttributeDefinition {
	dup := *a
	dup.ID = 0
	return &dup
}

// ClassDefinition is a fully resolved class: its own metadata plus the
// materialized attribute list (own and inherited copies).
type ClassDefinition struct {
	ID           int64
	Name         string
	DisplayName  string
	Description  string
	Abstract     bool
	Custom       bool
	Countable    bool
	InDesign     bool
	Color        int
	Icon         []byte
	SmallIcon    []byte
	Parent       string // empty only for the root class
	Attributes   []*AttributeDefinition
	CreationDate time.Time
}

// Attribute looks up an attribute definition by name.
func (c *ClassDefinition) Attribute(name string) (*AttributeDefinition, bool) {
	for _, a := range c.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// HasAttribute reports whether the class defines the attribute.
func (c *ClassDefinition) HasAttribute(name string) bool {
	_, ok := c.Attribute(name)
	return ok
}

// RetypeAllowed reports whether an attribute may change from one type to
// another. Primitives only move between compatible representations,
// references only between list type classes (checked by the caller against
// the hierarchy).
func RetypeAllowed(from, to AttributeType) bool {
	if from.IsReference() != to.IsReference() {
		return false
	}
	if from.IsReference() {
		return true // both are list type classes; hierarchy check is separate
	}
	if from.Primitive == to.Primitive {
		return true
	}
	numeric := func(p Primitive) bool { return p == PrimInteger || p == PrimLong || p == PrimFloat }
	if numeric(from.Primitive) && numeric(to.Primitive) {
		return true
	}
	chrono := func(p Primitive) bool { return p == PrimTimestamp || p == PrimDate }
	return chrono(from.Primitive) && chrono(to.Primitive)
}

// ParseBool reads a persisted boolean property, defaulting to false.
func ParseBool(s string) bool {
	return s == "true"
}

// FormatBool writes a boolean in the persisted form.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ValidateClassName returns a descriptive error for a bad class name.
func ValidateClassName(name string) error {
	if name == "" {
		return fmt.Errorf("class name can not be empty")
	}
	if !ValidClassName(name) {
		return fmt.Errorf("class name %q contains invalid characters", name)
	}
	return nil
}

// ValidateAttributeName returns a descriptive error for a bad attribute name.
func ValidateAttributeName(name string) error {
	if name == "" {
		return fmt.Errorf("attribute name can not be empty")
	}
	if !ValidAttributeName(name) {
		return fmt.Errorf("attribute name %q contains invalid characters", name)
	}
	return nil
}
