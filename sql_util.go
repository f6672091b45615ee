package orderstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// sqlDialect carries what differs between the SQL drivers.
type sqlDialect struct {
	driver     string
	columnType func(Column) string
	classify   func(error) error
}

// sqlBackend is a Backend over a database/sql pool. Each Acquire checks out a
// dedicated connection.
type sqlBackend struct {
	db      *sqlx.DB
	dialect sqlDialect
}

var _ Backend = (*sqlBackend)(nil)

func newSQLBackend(db *sqlx.DB, dialect sqlDialect) *sqlBackend {
	return &sqlBackend{db: db, dialect: dialect}
}

func (b *sqlBackend) Name() string {
	return b.dialect.driver
}

func (b *sqlBackend) Acquire(ctx context.Context) (Conn, error) {
	conn, err := b.db.Connx(ctx)
	if err != nil {
		return nil, classified(ErrStoreUnavailable, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, classified(ErrStoreUnavailable, err)
	}
	return &sqlConn{conn: conn, backend: b}, nil
}

func (b *sqlBackend) Close() error {
	return b.db.Close()
}

// CreateSchema creates the tables of the catalog, parents first.
func (b *sqlBackend) CreateSchema(ctx context.Context, catalog Catalog) error {
	for _, stmt := range createTablesDDL(catalog, b.dialect.columnType) {
		log.WithField("stmt", stmt).Debug("creating table")
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return b.wrap(err)
		}
	}
	return nil
}

// bind expands the named :param placeholders of the template text into the
// driver's positional form.
func (b *sqlBackend) bind(cmd CommandTemplate, args Args) (string, []any, error) {
	if strings.TrimSpace(cmd.Text) == "" {
		return "", nil, fmt.Errorf("%w: no %s text", ErrUnknownStatement, cmd.Kind)
	}
	qry, vals, err := sqlx.Named(cmd.Text, map[string]any(args))
	if err != nil {
		return "", nil, fmt.Errorf("binding %s: %w", cmd.Kind, err)
	}
	return b.db.Rebind(qry), vals, nil
}

// wrap classifies a driver error into one of the store failure classes.
// Errors no class applies to are returned unchanged.
func (b *sqlBackend) wrap(err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return classified(ErrStoreUnavailable, err)
	}
	if c := b.dialect.classify(err); c != nil {
		return c
	}
	return err
}

type sqlConn struct {
	conn    *sqlx.Conn
	backend *sqlBackend
}

var _ Conn = (*sqlConn)(nil)

func (c *sqlConn) Query(ctx context.Context, table TableDef, cmd CommandTemplate) (ResultSet, error) {
	qry, vals, err := c.backend.bind(cmd, nil)
	if err != nil {
		return ResultSet{}, err
	}
	log.WithFields(log.Fields{"table": table.Name, "stmt": cmd.Kind}).Debug("query")

	rows, err := c.conn.QueryxContext(ctx, qry, vals...)
	if err != nil {
		return ResultSet{}, c.backend.wrap(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ResultSet{}, c.backend.wrap(err)
	}

	rs := ResultSet{Columns: cols}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return ResultSet{}, c.backend.wrap(err)
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, c.backend.wrap(err)
	}
	return rs, nil
}

func (c *sqlConn) Exec(ctx context.Context, table TableDef, cmd CommandTemplate, args Args) (int64, error) {
	return execSQL(ctx, c.backend, c.conn, table, cmd, args)
}

func (c *sqlConn) Begin(ctx context.Context) (Transaction, error) {
	tx, err := c.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, c.backend.wrap(err)
	}
	return &sqlTransaction{Tx: tx, backend: c.backend}, nil
}

func (c *sqlConn) Release() error {
	return c.conn.Close()
}

type sqlTransaction struct {
	Tx      *sqlx.Tx
	backend *sqlBackend
}

var _ Transaction = (*sqlTransaction)(nil)

func (st *sqlTransaction) Exec(ctx context.Context, table TableDef, cmd CommandTemplate, args Args) (int64, error) {
	return execSQL(ctx, st.backend, st.Tx, table, cmd, args)
}

func (st *sqlTransaction) Rollback(_ context.Context) error {
	return st.backend.wrap(st.Tx.Rollback())
}

func (st *sqlTransaction) Commit(_ context.Context) error {
	return st.backend.wrap(st.Tx.Commit())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execSQL(ctx context.Context, b *sqlBackend, ex execer, table TableDef, cmd CommandTemplate, args Args) (int64, error) {
	qry, vals, err := b.bind(cmd, args)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"table": table.Name, "stmt": cmd.Kind}).Debug("exec")

	res, err := ex.ExecContext(ctx, qry, vals...)
	if err != nil {
		return 0, b.wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, b.wrap(err)
	}
	return n, nil
}

// createTablesDDL renders CREATE TABLE statements for every table of the
// catalog, ordered so that referenced tables come first.
func createTablesDDL(catalog Catalog, columnType func(Column) string) []string {
	var (
		out  []string
		done = make(map[string]bool)
		add  func(name string)
	)
	add = func(name string) {
		if done[name] {
			return
		}
		done[name] = true
		tb, err := catalog.Table(name)
		if err != nil {
			return
		}
		for _, col := range tb.Columns {
			if ref, _, ok := strings.Cut(col.References, "."); ok {
				add(strings.ToLower(ref))
			}
		}
		out = append(out, createTableDDL(tb, columnType))
	}
	for _, name := range catalog.Names() {
		add(strings.ToLower(name))
	}
	return out
}

func createTableDDL(tb TableDef, columnType func(Column) string) string {
	var defs []string
	for _, col := range tb.Columns {
		def := col.Name + " " + columnType(col)
		if !col.AllowNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	keys := Map(tb.KeyColumns(), func(c Column) string { return c.Name })
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))

	for _, col := range tb.Columns {
		if ref, refCol, ok := strings.Cut(col.References, "."); ok {
			defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", col.Name, ref, refCol))
		}
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", tb.FullTableName(), strings.Join(defs, ",\n\t"))
}
