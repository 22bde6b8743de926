package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/meta"
)

// Column describes one projected variable of a compiled query: the bound
// variable name, the class it was matched against and the attributes whose
// values shape the result columns.
type Column struct {
	Variable   string
	ClassName  string
	Attributes []string
}

// Compiled is the executable form of a descriptor tree: one statement with
// bound parameters plus the ordered projection map used to shape rows.
type Compiled struct {
	SQL     string
	Args    []interface{}
	Columns []Column
}

// variable names used in generated queries, fixed for compatibility
const (
	varInstance    = "instance"
	varParent      = "parent"
	listTypePrefix = "listType_"
)

type whereGroup struct {
	expr string
	args []interface{}
}

type compiler struct {
	ctx  context.Context
	meta *meta.Manager

	fromParts []string
	fromArgs  []interface{}
	groups    []whereGroup
	columns   []Column
	predSeq   int
}

// Compile lowers a descriptor tree to a single statement. Every visible
// attribute and every filter is resolved against the class metadata before
// any SQL is produced, so malformed descriptors fail fast.
func Compile(ctx context.Context, metaMgr *meta.Manager, desc *Descriptor) (*Compiled, error) {
	if desc == nil || desc.ClassName == "" {
		return nil, errs.InvalidArgument("query descriptor must name a class")
	}
	c := &compiler{ctx: ctx, meta: metaMgr}

	c.fromParts = append(c.fromParts, "FROM nodes "+varInstance)
	if err := c.restrictClass(varInstance, desc.ClassName); err != nil {
		return nil, err
	}
	if err := c.walk(desc, varInstance, ""); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	for i, col := range c.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s.id AS %s", col.Variable, col.Variable)
	}
	b.WriteString(" ")
	b.WriteString(strings.Join(c.fromParts, " "))
	fmt.Fprintf(&b, " LEFT JOIN node_props ord_name ON ord_name.node_id = %s.id AND ord_name.name = 'name'", varInstance)

	args := append([]interface{}{}, c.fromArgs...)
	if len(c.groups) > 0 {
		b.WriteString(" WHERE ")
		for i, g := range c.groups {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(g.expr)
			args = append(args, g.args...)
		}
	}
	fmt.Fprintf(&b, " ORDER BY ord_name.value ASC, %s.id ASC", varInstance)
	if desc.Page > 0 && desc.PageSize > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, desc.PageSize, (desc.Page-1)*desc.PageSize)
	}

	return &Compiled{SQL: b.String(), Args: args, Columns: c.columns}, nil
}

// walk lowers one descriptor: its projection column, its own predicate
// group, and its join branches depth-first. Each descriptor's connector only
// combines that descriptor's direct predicates; branches attach to the
// enclosing query with AND.
func (c *compiler) walk(desc *Descriptor, variable, path string) error {
	def, err := c.meta.GetClass(c.ctx, desc.ClassName)
	if err != nil {
		return err
	}
	visible := desc.Visible
	if len(visible) == 0 {
		visible = []string{meta.AttrName}
	}
	c.columns = append(c.columns, Column{Variable: variable, ClassName: desc.ClassName, Attributes: visible})

	var group []string
	var groupArgs []interface{}

	for _, f := range desc.Filters {
		switch {
		case f.Value != nil:
			expr, args, err := c.predicate(def, variable, f)
			if err != nil {
				return err
			}
			group = append(group, expr)
			groupArgs = append(groupArgs, args...)

		case f.Join != nil:
			joinPath := f.Attribute
			if path != "" {
				joinPath = path + "_" + f.Attribute
			}
			var joinVar string
			var edgeType, edgeName string
			if strings.EqualFold(f.Attribute, AttributeParent) {
				joinVar = varParent
				if path != "" {
					joinVar = variable + "_" + varParent
				}
				edgeType = graph.RelChildOf
			} else {
				attr, ok := def.Attribute(f.Attribute)
				if !ok {
					return errs.MetadataNotFound("attribute %s in class %s", f.Attribute, desc.ClassName)
				}
				if !attr.Type.IsReference() {
					return errs.InvalidArgument("attribute %s of class %s is not a list type and can not be joined",
						f.Attribute, desc.ClassName)
				}
				joinVar = listTypePrefix + joinPath
				edgeType = graph.RelRelatedTo
				edgeName = f.Attribute
			}
			edgeAlias := "e_" + joinVar
			if edgeName != "" {
				c.fromParts = append(c.fromParts, fmt.Sprintf(
					"JOIN edges %s ON %s.start_id = %s.id AND %s.type = '%s' AND %s.name = ?",
					edgeAlias, edgeAlias, variable, edgeAlias, edgeType, edgeAlias))
				c.fromArgs = append(c.fromArgs, edgeName)
			} else {
				c.fromParts = append(c.fromParts, fmt.Sprintf(
					"JOIN edges %s ON %s.start_id = %s.id AND %s.type = '%s'",
					edgeAlias, edgeAlias, variable, edgeAlias, edgeType))
			}
			c.fromParts = append(c.fromParts, fmt.Sprintf(
				"JOIN nodes %s ON %s.id = %s.end_id", joinVar, joinVar, edgeAlias))
			if err := c.restrictClass(joinVar, f.Join.ClassName); err != nil {
				return err
			}
			if err := c.walk(f.Join, joinVar, joinPath); err != nil {
				return err
			}

		default:
			// Negative existential: the instance must have no such branch.
			if strings.EqualFold(f.Attribute, AttributeParent) {
				group = append(group, fmt.Sprintf(
					"NOT EXISTS (SELECT 1 FROM edges nx%d WHERE nx%d.start_id = %s.id AND nx%d.type = '%s')",
					c.predSeq, c.predSeq, variable, c.predSeq, graph.RelChildOf))
			} else {
				group = append(group, fmt.Sprintf(
					"NOT EXISTS (SELECT 1 FROM edges nx%d WHERE nx%d.start_id = %s.id AND nx%d.type = '%s' AND nx%d.name = ?)",
					c.predSeq, c.predSeq, variable, c.predSeq, graph.RelRelatedTo, c.predSeq))
				groupArgs = append(groupArgs, f.Attribute)
			}
			c.predSeq++
		}
	}

	if len(group) > 0 {
		expr := "(" + strings.Join(group, " "+desc.Connector.String()+" ") + ")"
		c.groups = append(c.groups, whereGroup{expr: expr, args: groupArgs})
	}
	return nil
}

// restrictClass constrains a variable to instances of a class; abstract
// classes expand to the node ids of their concrete descendants.
func (c *compiler) restrictClass(variable, className string) error {
	ids, err := c.concreteClassIDs(className)
	if err != nil {
		return err
	}
	alias := variable + "_io"
	if len(ids) == 0 {
		// Abstract class with no concrete subclasses: nothing can match.
		c.fromParts = append(c.fromParts, fmt.Sprintf(
			"JOIN edges %s ON %s.start_id = %s.id AND %s.type = '%s' AND 1 = 0",
			alias, alias, variable, alias, graph.RelInstanceOf))
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	c.fromParts = append(c.fromParts, fmt.Sprintf(
		"JOIN edges %s ON %s.start_id = %s.id AND %s.type = '%s' AND %s.end_id IN (%s)",
		alias, alias, variable, alias, graph.RelInstanceOf, alias, placeholders))
	for _, id := range ids {
		c.fromArgs = append(c.fromArgs, id)
	}
	return nil
}

func (c *compiler) concreteClassIDs(className string) ([]int64, error) {
	def, err := c.meta.GetClass(c.ctx, className)
	if err != nil {
		return nil, err
	}
	if !def.Abstract {
		return []int64{def.ID}, nil
	}
	subs, err := c.meta.GetSubClasses(c.ctx, className, true, false, false)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// predicate renders one attribute comparison, typed by the attribute's
// declared primitive so numeric comparisons never degrade to lexicographic
// ones.
func (c *compiler) predicate(def *meta.ClassDefinition, variable string, f Filter) (string, []interface{}, error) {
	attr, ok := def.Attribute(f.Attribute)
	if !ok {
		return "", nil, errs.MetadataNotFound("attribute %s in class %s", f.Attribute, def.Name)
	}
	if attr.Type.IsReference() {
		return "", nil, errs.InvalidArgument("attribute %s of class %s is a list type; filter it through a join",
			f.Attribute, def.Name)
	}
	alias := fmt.Sprintf("fp%d", c.predSeq)
	c.predSeq++

	if attr.Type.Primitive.Numeric() {
		arg, err := numericArg(attr, *f.Value)
		if err != nil {
			return "", nil, err
		}
		if f.Operator == OpLike {
			return "", nil, errs.InvalidArgument("attribute %s is numeric and does not support LIKE", f.Attribute)
		}
		expr := fmt.Sprintf(
			"EXISTS (SELECT 1 FROM node_props %s WHERE %s.node_id = %s.id AND %s.name = ? AND %s.num %s ?)",
			alias, alias, variable, alias, alias, f.Operator)
		return expr, []interface{}{f.Attribute, arg}, nil
	}

	value := *f.Value
	op := f.Operator
	if attr.Type.Primitive == meta.PrimBoolean {
		if op != OpEqual && op != OpNotEqual {
			return "", nil, errs.InvalidArgument("attribute %s is boolean and only supports equality", f.Attribute)
		}
		if value != "true" && value != "false" {
			return "", nil, errs.InvalidArgument("value %q of attribute %s is not a boolean", value, f.Attribute)
		}
	}
	if op == OpLike {
		value = "%" + value + "%"
	}
	expr := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM node_props %s WHERE %s.node_id = %s.id AND %s.name = ? AND %s.value %s ?)",
		alias, alias, variable, alias, alias, op)
	return expr, []interface{}{f.Attribute, value}, nil
}

// numericArg parses a filter value according to the attribute's primitive.
func numericArg(attr *meta.AttributeDefinition, raw string) (interface{}, error) {
	switch attr.Type.Primitive {
	case meta.PrimInteger, meta.PrimLong:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errs.InvalidArgument("value %q of attribute %s is not an integer", raw, attr.Name)
		}
		return n, nil
	case meta.PrimFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errs.InvalidArgument("value %q of attribute %s is not a float", raw, attr.Name)
		}
		return f, nil
	case meta.PrimDate:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, errs.InvalidArgument("value %q of attribute %s is not a date", raw, attr.Name)
		}
		return float64(t.Unix()), nil
	case meta.PrimTimestamp:
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return float64(unix), nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errs.InvalidArgument("value %q of attribute %s is not a timestamp", raw, attr.Name)
		}
		return float64(t.Unix()), nil
	default:
		return nil, errs.InvalidArgument("attribute %s is not numeric", attr.Name)
	}
}
