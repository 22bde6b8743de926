package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Value is a node property value: a canonical string form plus an optional
// numeric shadow used by the query compiler for typed comparisons.
type Value struct {
	Text string
	Num  sql.NullFloat64
}

// Text builds a plain string property value.
func Text(s string) Value {
	return Value{Text: s}
}

// Number builds a property value whose numeric shadow is populated, so
// filters against it compare numerically instead of lexicographically.
func Number(text string, n float64) Value {
	return Value{Text: text, Num: sql.NullFloat64{Float64: n, Valid: true}}
}

// Edge is a typed, optionally named relationship between two nodes.
type Edge struct {
	ID    int64
	Type  string
	Start int64
	End   int64
	Name  string
}

// Tx is a transactional scope over the graph store. All methods operate on
// the same underlying database transaction; an error returned from the
// enclosing Update callback rolls every one of them back.
type Tx struct {
	tx      *sql.Tx
	ctx     context.Context
	dialect Dialect
}

func (t *Tx) exec(query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(t.ctx, t.dialect.Rebind(query), args...)
	return res, convertDBError(err)
}

func (t *Tx) insertReturningID(query string, args ...interface{}) (int64, error) {
	if t.dialect == DialectPostgres {
		var id int64
		err := t.tx.QueryRowContext(t.ctx, t.dialect.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, convertDBError(err)
	}
	res, err := t.exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CreateNode inserts a node under the given label and returns its id.
func (t *Tx) CreateNode(label string) (int64, error) {
	return t.insertReturningID(`INSERT INTO nodes (label) VALUES (?)`, label)
}

// NodeExists reports whether the node id is present.
func (t *Tx) NodeExists(id int64) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(t.ctx, t.dialect.Rebind(`SELECT 1 FROM nodes WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, convertDBError(err)
}

// NodeLabel returns the label a node was created under.
func (t *Tx) NodeLabel(id int64) (string, error) {
	var label string
	err := t.tx.QueryRowContext(t.ctx, t.dialect.Rebind(`SELECT label FROM nodes WHERE id = ?`), id).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: id %d", ErrNodeNotFound, id)
	}
	return label, convertDBError(err)
}

// DeleteNode removes a node together with its properties, its index entries
// and every edge touching it. Policy checks (no instances, no dangling
// references) belong to the caller.
func (t *Tx) DeleteNode(id int64) error {
	if _, err := t.exec(`DELETE FROM node_props WHERE node_id = ?`, id); err != nil {
		return err
	}
	if _, err := t.exec(`DELETE FROM idx_entries WHERE node_id = ?`, id); err != nil {
		return err
	}
	if _, err := t.exec(`DELETE FROM edges WHERE start_id = ? OR end_id = ?`, id, id); err != nil {
		return err
	}
	res, err := t.exec(`DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrNodeNotFound, id)
	}
	return nil
}

// SetProperty writes one property, replacing any previous value.
func (t *Tx) SetProperty(id int64, name string, v Value) error {
	_, err := t.exec(`INSERT INTO node_props (node_id, name, value, num) VALUES (?, ?, ?, ?)
		ON CONFLICT (node_id, name) DO UPDATE SET value = excluded.value, num = excluded.num`,
		id, name, v.Text, v.Num)
	return err
}

// SetProperties writes a batch of properties on one node.
func (t *Tx) SetProperties(id int64, props map[string]Value) error {
	for name, v := range props {
		if err := t.SetProperty(id, name, v); err != nil {
			return err
		}
	}
	return nil
}

// DeleteProperty removes a property if present.
func (t *Tx) DeleteProperty(id int64, name string) error {
	_, err := t.exec(`DELETE FROM node_props WHERE node_id = ? AND name = ?`, id, name)
	return err
}

// Property reads one property value; the bool reports presence.
func (t *Tx) Property(id int64, name string) (string, bool, error) {
	var v string
	err := t.tx.QueryRowContext(t.ctx,
		t.dialect.Rebind(`SELECT value FROM node_props WHERE node_id = ? AND name = ?`), id, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return v, err == nil, convertDBError(err)
}

// Properties returns all properties of a node as canonical strings.
func (t *Tx) Properties(id int64) (map[string]string, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		t.dialect.Rebind(`SELECT name, value FROM node_props WHERE node_id = ?`), id)
	if err != nil {
		return nil, convertDBError(err)
	}
	defer rows.Close()
	props := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		props[name] = value
	}
	return props, rows.Err()
}

// CreateEdge inserts a typed relationship. name is only meaningful for
// RELATED_TO and CHILD_OF_SPECIAL edges and may be empty otherwise.
func (t *Tx) CreateEdge(relType string, start, end int64, name string) (int64, error) {
	return t.insertReturningID(`INSERT INTO edges (type, start_id, end_id, name) VALUES (?, ?, ?, ?)`,
		relType, start, end, name)
}

// DeleteEdge removes a single relationship by id.
func (t *Tx) DeleteEdge(id int64) error {
	res, err := t.exec(`DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrEdgeNotFound, id)
	}
	return nil
}

// DeleteOutEdges removes every outgoing edge of the given type. When name is
// non-empty only edges carrying that name are removed. Returns the number of
// edges deleted.
func (t *Tx) DeleteOutEdges(start int64, relType, name string) (int64, error) {
	var res sql.Result
	var err error
	if name == "" {
		res, err = t.exec(`DELETE FROM edges WHERE start_id = ? AND type = ?`, start, relType)
	} else {
		res, err = t.exec(`DELETE FROM edges WHERE start_id = ? AND type = ? AND name = ?`, start, relType, name)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *Tx) queryEdges(query string, args ...interface{}) ([]Edge, error) {
	rows, err := t.tx.QueryContext(t.ctx, t.dialect.Rebind(query), args...)
	if err != nil {
		return nil, convertDBError(err)
	}
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.Type, &e.Start, &e.End, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// OutEdges lists the outgoing relationships of a node, oldest first.
func (t *Tx) OutEdges(id int64, relType string) ([]Edge, error) {
	return t.queryEdges(`SELECT id, type, start_id, end_id, name FROM edges
		WHERE start_id = ? AND type = ? ORDER BY id`, id, relType)
}

// InEdges lists the incoming relationships of a node, oldest first.
func (t *Tx) InEdges(id int64, relType string) ([]Edge, error) {
	return t.queryEdges(`SELECT id, type, start_id, end_id, name FROM edges
		WHERE end_id = ? AND type = ? ORDER BY id`, id, relType)
}

// SingleOut returns the unique outgoing edge of the given type, or
// ErrEdgeNotFound when the node has none.
func (t *Tx) SingleOut(id int64, relType string) (*Edge, error) {
	edges, err := t.OutEdges(id, relType)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("%w: %s from node %d", ErrEdgeNotFound, relType, id)
	}
	if len(edges) > 1 {
		return nil, fmt.Errorf("node %d has %d %s edges, expected one", id, len(edges), relType)
	}
	return &edges[0], nil
}

// CountIn returns the number of incoming edges of the given type.
func (t *Tx) CountIn(id int64, relType string) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(t.ctx,
		t.dialect.Rebind(`SELECT COUNT(*) FROM edges WHERE end_id = ? AND type = ?`), id, relType).Scan(&n)
	return n, convertDBError(err)
}

// IndexAdd registers a node in a named unique index. A second registration
// under the same (label, key, value) fails with ErrDuplicateIndexEntry; the
// constraint is what serializes concurrent same-name creations so that
// exactly one wins.
func (t *Tx) IndexAdd(label, key, value string, nodeID int64) error {
	_, err := t.exec(`INSERT INTO idx_entries (label, key, value, node_id) VALUES (?, ?, ?, ?)`,
		label, key, value, nodeID)
	return err
}

// IndexRemove drops an index entry if present.
func (t *Tx) IndexRemove(label, key, value string) error {
	_, err := t.exec(`DELETE FROM idx_entries WHERE label = ? AND key = ? AND value = ?`, label, key, value)
	return err
}

// IndexGet resolves an index entry to a node id; the bool reports presence.
func (t *Tx) IndexGet(label, key, value string) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRowContext(t.ctx,
		t.dialect.Rebind(`SELECT node_id FROM idx_entries WHERE label = ? AND key = ? AND value = ?`),
		label, key, value).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	return id, err == nil, convertDBError(err)
}

// NodesWithProperty lists the ids of nodes carrying an exact property value,
// oldest first. Backed by the (name, value) index on node_props.
func (t *Tx) NodesWithProperty(name, value string) ([]int64, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		t.dialect.Rebind(`SELECT node_id FROM node_props WHERE name = ? AND value = ? ORDER BY node_id`),
		name, value)
	if err != nil {
		return nil, convertDBError(err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NodesByLabel lists every node id under a label, oldest first.
func (t *Tx) NodesByLabel(label string) ([]int64, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		t.dialect.Rebind(`SELECT id FROM nodes WHERE label = ? ORDER BY id`), label)
	if err != nil {
		return nil, convertDBError(err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
