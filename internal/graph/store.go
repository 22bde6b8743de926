// Package graph implements the transactional property-graph store the engine
// persists into. Nodes carry a label (the entity category), string properties
// with an optional numeric shadow column for typed comparisons, and typed,
// optionally named relationships. Named secondary indexes provide unique
// lookup by property value and back the engine's uniqueness guarantees.
package graph

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	// Registered database drivers. Which one is used depends on the
	// configured dialect.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Relationship types understood by the engine. The vocabulary is part of the
// on-disk format and must not change meaning between releases.
const (
	RelExtends           = "EXTENDS"             // subclass -> parent class
	RelHasAttribute      = "HAS_ATTRIBUTE"       // class -> attribute definition
	RelInstanceOf        = "INSTANCE_OF"         // object -> its class
	RelChildOf           = "CHILD_OF"            // object -> containment parent
	RelRelatedTo         = "RELATED_TO"          // object -> list type item, named by attribute
	RelPossibleChild     = "POSSIBLE_CHILD"      // parent class -> allowed child class
	RelHasView           = "HAS_VIEW"            // object -> view node
	RelBelongsToGroup    = "BELONGS_TO_GROUP"    // user -> group
	RelHasPrivilege      = "HAS_PRIVILEGE"       // user or group -> privilege node
	RelChildOfSpecial    = "CHILD_OF_SPECIAL"    // object -> non-standard parent (pools), named
	RelInstanceOfSpecial = "INSTANCE_OF_SPECIAL" // template element -> its class
	RelSubscribedTo      = "SUBSCRIBED_TO"       // user -> task
)

// Node labels, one per named secondary index category.
const (
	LabelClasses       = "classes"
	LabelAttributes    = "attributes"
	LabelObjects       = "objects"
	LabelListTypeItems = "listTypeItems"
	LabelUsers         = "users"
	LabelGroups        = "groups"
	LabelPools         = "pools"
	LabelTasks         = "tasks"
	LabelQueries       = "queries"
	LabelViews         = "views"
	LabelBusinessRules = "businessRules"
	LabelSyncGroups    = "syncGroups"
	LabelTemplates     = "templates"
	LabelSpecialNodes  = "specialNodes"
)

// Index keys used with the secondary indexes.
const (
	IndexKeyName = "name"
	IndexKeyID   = "id"
)

// Store is the graph database handle. It is safe for concurrent use; every
// mutation happens inside a Tx obtained from Update or View.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// Open connects to the configured backend. The schema is not created until
// Init is called.
func Open(driver, dsn string, logger *zap.Logger) (*Store, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open(dialect.String(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening graph store: %w", err)
	}
	if dialect == DialectSQLite {
		// SQLite serializes writers; a second connection would see
		// "database is locked" under concurrent transactions.
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, dialect: dialect, logger: logger}, nil
}

// NewStore wraps an existing database handle. Used by tests that inject a
// mocked connection.
func NewStore(db *sql.DB, dialect Dialect, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, dialect: dialect, logger: logger}
}

// Init creates the graph tables if they do not exist yet.
func (s *Store) Init(ctx context.Context) error {
	for _, stmt := range s.dialect.schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating graph schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn inside a read-write transaction. If fn returns an error or
// panics, every write made in the scope is rolled back; otherwise the
// transaction commits before Update returns. No partial state is ever visible
// to other callers.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	tx := &Tx{tx: sqlTx, ctx: ctx, dialect: s.dialect}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("transaction rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// View runs fn inside a short-lived transaction that is always rolled back,
// giving read-only callers snapshot consistency without holding locks.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: s.dialect == DialectPostgres})
	if err != nil {
		return fmt.Errorf("beginning read transaction: %w", err)
	}
	tx := &Tx{tx: sqlTx, ctx: ctx, dialect: s.dialect}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(tx)
}

// Select executes a compiled declarative query (generated by the query
// compiler) in its own read transaction and returns the rows as column-name
// keyed maps. Values are whatever the driver produced; numeric columns come
// back as int64 or float64, everything else as strings.
func (s *Store) Select(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
