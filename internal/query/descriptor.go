// Package query compiles nested query descriptors into a single declarative
// statement against the graph store and shapes the results into tabular
// records with a header row.
package query

// Operator is a comparison operator applied to one attribute filter.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLessThan
	OpLessOrEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpLike
)

// String returns the SQL rendering of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLike:
		return "LIKE"
	default:
		return "="
	}
}

// Connector combines the predicates declared directly by one descriptor.
// Nested descriptors always attach to their parent with AND; mixing
// connectors across levels is expressed purely through nesting.
type Connector int

const (
	ConnectorAnd Connector = iota
	ConnectorOr
)

// String returns the SQL keyword for the connector
func (c Connector) String() string {
	if c == ConnectorOr {
		return "OR"
	}
	return "AND"
}

// AttributeParent is the distinguished attribute name marking a containment
// traversal instead of a list type join.
const AttributeParent = "parent"

// Filter is one slot of a descriptor: either a comparison of an attribute
// against a value, or a join hanging off the attribute. Value nil with a
// non-nil Join descends into the joined class; Value nil with a nil Join is
// a negative existential, matching instances with no such related item.
type Filter struct {
	Attribute string
	Operator  Operator
	Value     *string
	Join      *Descriptor
}

// Descriptor is the recursive query shape: a class, filters over its
// attributes, join branches, and the attribute names projected into the
// result. Page and PageSize apply only at the root.
type Descriptor struct {
	ClassName string
	Connector Connector
	Filters   []Filter
	Visible   []string
	Page      int
	PageSize  int
}

// Condition builds a comparison filter.
func Condition(attribute string, op Operator, value string) Filter {
	return Filter{Attribute: attribute, Operator: op, Value: &value}
}

// Join builds a join branch over a reference attribute (or AttributeParent).
func Join(attribute string, sub *Descriptor) Filter {
	return Filter{Attribute: attribute, Join: sub}
}

// NoSuchItem builds a negative existential branch: the attribute must have
// no related item.
func NoSuchItem(attribute string) Filter {
	return Filter{Attribute: attribute}
}

// ResultRecord is one row of a query result. The first record of every
// result set is a header carrying the projected column titles.
type ResultRecord struct {
	ID        int64
	Name      string
	ClassName string
	Columns   []string
}
