package query

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/meta"
)

// Engine executes compiled descriptors against the graph store.
type Engine struct {
	store  *graph.Store
	meta   *meta.Manager
	logger *zap.Logger
}

// NewEngine wires a query engine to its storage and metadata manager.
func NewEngine(store *graph.Store, metaMgr *meta.Manager, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, meta: metaMgr, logger: logger}
}

// Execute compiles and runs a descriptor. The first record of the result is
// a header naming the projected columns; each following record carries the
// root instance's identity plus one value per visible attribute per joined
// variable, in projection order.
func (e *Engine) Execute(ctx context.Context, desc *Descriptor) ([]ResultRecord, error) {
	compiled, err := Compile(ctx, e.meta, desc)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("query compiled", zap.String("sql", compiled.SQL))

	rows, err := e.store.Select(ctx, compiled.SQL, compiled.Args...)
	if err != nil {
		return nil, err
	}

	header := ResultRecord{}
	for _, col := range compiled.Columns {
		header.Columns = append(header.Columns, col.Attributes...)
	}
	records := []ResultRecord{header}

	if len(rows) == 0 {
		return records, nil
	}

	// Resolve every referenced node's properties and class once, in a
	// single snapshot.
	props := make(map[int64]map[string]string)
	classNames := make(map[int64]string)
	err = e.store.View(ctx, func(tx *graph.Tx) error {
		for _, row := range rows {
			for _, col := range compiled.Columns {
				id, err := rowID(row, col.Variable)
				if err != nil {
					return err
				}
				if _, done := props[id]; done {
					continue
				}
				p, err := tx.Properties(id)
				if err != nil {
					return err
				}
				props[id] = p
				classEdge, err := tx.SingleOut(id, graph.RelInstanceOf)
				if err != nil {
					return err
				}
				cn, _, err := tx.Property(classEdge.End, meta.AttrName)
				if err != nil {
					return err
				}
				classNames[id] = cn
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		rootID, err := rowID(row, varInstance)
		if err != nil {
			return nil, err
		}
		record := ResultRecord{
			ID:        rootID,
			Name:      props[rootID][meta.AttrName],
			ClassName: classNames[rootID],
		}
		for _, col := range compiled.Columns {
			id, err := rowID(row, col.Variable)
			if err != nil {
				return nil, err
			}
			for _, attrName := range col.Attributes {
				if attrName == "id" {
					record.Columns = append(record.Columns, strconv.FormatInt(id, 10))
					continue
				}
				record.Columns = append(record.Columns, props[id][attrName])
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// rowID extracts a bound variable's node id from a result row.
func rowID(row map[string]interface{}, variable string) (int64, error) {
	v, ok := row[variable]
	if !ok {
		return 0, fmt.Errorf("query result is missing variable %s", variable)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("variable %s has unexpected column type %T", variable, v)
	}
}
