package orderstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func quietLogger() *log.Entry {
	l := log.New()
	l.Out = io.Discard
	return log.NewEntry(l)
}

// newTestBackend opens a fresh SQLite database with the classicmodels tables.
func newTestBackend(t *testing.T) Backend {
	t.Helper()
	b, err := OpenSQLite(DriverSQLite, filepath.Join(t.TempDir(), "orderstore.db"))
	require.NoError(t, err)
	require.NoError(t, CreateSchema(context.Background(), b, ClassicModels()))
	return b
}

func newTestStorage(t *testing.T, opts ...StorageOption) (*Storage, Backend) {
	t.Helper()
	b := newTestBackend(t)
	s, err := NewStorage(b, append([]StorageOption{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, b
}

// seed inserts records straight into the store, bypassing the cache.
func seed(t *testing.T, b Backend, table string, records ...any) {
	t.Helper()
	ctx := context.Background()
	tb, err := ClassicModels().Table(table)
	require.NoError(t, err)
	cmd := insertCommand(tb, insertText(tb))

	conn, err := b.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	for _, r := range records {
		fields, err := FieldsOf(r)
		require.NoError(t, err)
		values, err := coerceFields(tb, fields)
		require.NoError(t, err)
		n, err := conn.Exec(ctx, tb, cmd, cmd.Bind(values, nil))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	}
}

func testCustomer(number int64) Customer {
	return Customer{
		Number:           number,
		Name:             fmt.Sprintf("Customer %d", number),
		ContactLastName:  "Janssens",
		ContactFirstName: "An",
		Phone:            "09 264 00 00",
		AddressLine1:     "Krijgslaan 281",
		City:             "Gent",
		Country:          "Belgium",
		CreditLimit:      null.FloatFrom(21000),
	}
}

// testCustomers returns n customers numbered 103, 112, 121, ...
func testCustomers(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = testCustomer(int64(103 + 9*i))
	}
	return out
}

var testProductCodes = []string{"S10_1678", "S10_1949", "S10_2016", "S10_4698", "S12_1099"}

func testProducts() []any {
	out := make([]any, len(testProductCodes))
	for i, code := range testProductCodes {
		out[i] = Product{
			Code:        code,
			Name:        "Model " + code,
			Line:        "Motorcycles",
			Scale:       "1:10",
			Vendor:      "Min Lin Diecast",
			Description: "scale replica",
			InStock:     100,
			BuyPrice:    48.81,
			MSRP:        95.70,
		}
	}
	return out
}

func testOrder(number, customer int64) *Order {
	return &Order{
		Number:         number,
		OrderDate:      time.Date(2003, 1, 6, 0, 0, 0, 0, time.UTC),
		RequiredDate:   time.Date(2003, 1, 13, 0, 0, 0, 0, time.UTC),
		Status:         "In Process",
		CustomerNumber: customer,
	}
}

func testLines(codes ...string) []OrderLine {
	out := make([]OrderLine, len(codes))
	for i, code := range codes {
		out[i] = OrderLine{ProductCode: code, Quantity: int64(10 * (i + 1)), Price: 50}
	}
	return out
}

func keysOf(rows []map[string]any, column string) []any {
	return Map(rows, func(r map[string]any) any { return r[column] })
}

// fakeBackend hands out fakeConns and records what was done with them.
type fakeBackend struct {
	conn       *fakeConn
	acquireErr error
	acquired   int
	closed     bool
}

var _ Backend = (*fakeBackend)(nil)

func (f *fakeBackend) Acquire(context.Context) (Conn, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return f.conn, nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func (f *fakeBackend) Name() string { return "fake" }

type fakeExec struct {
	Table string
	Kind  StatementKind
	Args  Args
}

// fakeConn answers Exec through exec, defaulting to one affected row.
type fakeConn struct {
	exec       func(table TableDef, cmd CommandTemplate, args Args) (int64, error)
	result     ResultSet
	queryErr   error
	beginErr   error
	releaseErr error

	execs    []fakeExec
	released int
	tx       *fakeTx
}

var _ Conn = (*fakeConn)(nil)

func (c *fakeConn) Query(context.Context, TableDef, CommandTemplate) (ResultSet, error) {
	return c.result, c.queryErr
}

func (c *fakeConn) Exec(_ context.Context, table TableDef, cmd CommandTemplate, args Args) (int64, error) {
	c.execs = append(c.execs, fakeExec{Table: table.Name, Kind: cmd.Kind, Args: args})
	if c.exec != nil {
		return c.exec(table, cmd, args)
	}
	return 1, nil
}

func (c *fakeConn) Begin(context.Context) (Transaction, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	c.tx = &fakeTx{conn: c}
	return c.tx, nil
}

func (c *fakeConn) Release() error {
	c.released++
	return c.releaseErr
}

type fakeTx struct {
	conn        *fakeConn
	rollbackErr error
	commitErr   error
	committed   bool
	rolledBack  bool
}

var _ Transaction = (*fakeTx)(nil)

func (tx *fakeTx) Exec(ctx context.Context, table TableDef, cmd CommandTemplate, args Args) (int64, error) {
	return tx.conn.Exec(ctx, table, cmd, args)
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.committed || tx.rolledBack {
		return errors.New("transaction already finished")
	}
	tx.committed = true
	return tx.commitErr
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.committed || tx.rolledBack {
		return errors.New("transaction already finished")
	}
	tx.rolledBack = true
	return tx.rollbackErr
}
