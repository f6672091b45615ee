package orderstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingCache returns a customer cache with one row of every pending state:
// 900 added, 103 modified and 112 pending deletion. 121 is unchanged.
func pendingCache(t *testing.T) *Cache {
	t.Helper()
	c := newCustomerCache(t)
	fields, err := FieldsOf(testCustomer(900))
	require.NoError(t, err)
	require.NoError(t, c.Add(fields))
	require.NoError(t, c.PatchFields(103, map[string]any{"city": "Brugge"}))
	require.NoError(t, c.MarkDelete(112))
	return c
}

func TestReconcileAppliesEveryPendingRow(t *testing.T) {
	c := pendingCache(t)
	conn := &fakeConn{}

	report, err := reconcile(context.Background(), quietLogger(), c, customerCommands(t), conn)
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, TableCustomers, report.Table)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Deleted)
	assert.Zero(t, report.Conflicts)
	assert.Zero(t, report.Errors)
	assert.Empty(t, report.Failed)
	assert.Equal(t, "customers: inserted=1 updated=1 deleted=1 conflicts=0 errors=0", report.String())

	// rows are written in cache order; the unchanged row is skipped
	require.Len(t, conn.execs, 3)
	assert.Equal(t, KindUpdate, conn.execs[0].Kind)
	assert.Equal(t, KindDelete, conn.execs[1].Kind)
	assert.Equal(t, KindInsert, conn.execs[2].Kind)
	assert.Equal(t, int64(103), conn.execs[0].Args["customerNumber"])
	assert.Equal(t, "Brugge", conn.execs[0].Args["city"])
	assert.Equal(t, Args{"customerNumber": int64(112)}, conn.execs[1].Args)

	assert.Zero(t, c.Pending())
	assert.Equal(t, 3, c.Len())
	_, ok := c.FindByKey(112)
	assert.False(t, ok)

	row, ok := c.FindByKey(103)
	require.True(t, ok)
	assert.Equal(t, "Brugge", row.Original["city"])
	row, ok = c.FindByKey(900)
	require.True(t, ok)
	assert.Equal(t, Unchanged, row.State)
	assert.Equal(t, row.Current, row.Original)
}

func TestReconcileIsIdempotent(t *testing.T) {
	c := pendingCache(t)
	conn := &fakeConn{}
	cmds := customerCommands(t)

	_, err := reconcile(context.Background(), quietLogger(), c, cmds, conn)
	require.NoError(t, err)

	conn.execs = nil
	report, err := reconcile(context.Background(), quietLogger(), c, cmds, conn)
	require.NoError(t, err)
	assert.Empty(t, conn.execs)
	assert.Zero(t, report.Inserted+report.Updated+report.Deleted+report.Conflicts+report.Errors)
}

func TestReconcileConflicts(t *testing.T) {
	c := pendingCache(t)
	conn := &fakeConn{exec: func(TableDef, CommandTemplate, Args) (int64, error) { return 0, nil }}

	report, err := reconcile(context.Background(), quietLogger(), c, customerCommands(t), conn)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Conflicts)
	assert.Zero(t, report.Inserted+report.Updated+report.Deleted)
	require.Len(t, report.Failed, 3)
	for _, f := range report.Failed {
		assert.ErrorIs(t, f.Err, ErrConflict)
	}

	// a missing row needs no deleting; updates and inserts stay pending
	s := states(c)
	assert.NotContains(t, s, int64(112))
	assert.Equal(t, Modified, s[int64(103)])
	assert.Equal(t, Added, s[int64(900)])
	assert.Equal(t, 2, c.Pending())
}

func TestReconcileIsolatesRowErrors(t *testing.T) {
	c := pendingCache(t)
	conn := &fakeConn{exec: func(_ TableDef, cmd CommandTemplate, _ Args) (int64, error) {
		if cmd.Kind == KindUpdate {
			return 0, classified(ErrConstraintViolation, errors.New("CHECK constraint failed"))
		}
		return 1, nil
	}}

	report, err := reconcile(context.Background(), quietLogger(), c, customerCommands(t), conn)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Deleted)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, int64(103), report.Failed[0].Key)
	assert.Equal(t, KindUpdate, report.Failed[0].Op)
	assert.ErrorIs(t, report.Failed[0].Err, ErrConstraintViolation)

	assert.Equal(t, Modified, states(c)[int64(103)])
	assert.Equal(t, 1, c.Pending())
}

func TestReconcileAbortsWhenStoreIsLost(t *testing.T) {
	c := pendingCache(t)
	calls := 0
	conn := &fakeConn{exec: func(TableDef, CommandTemplate, Args) (int64, error) {
		calls++
		if calls == 2 {
			return 0, classified(ErrStoreUnavailable, errors.New("connection reset by peer"))
		}
		return 1, nil
	}}

	report, err := reconcile(context.Background(), quietLogger(), c, customerCommands(t), conn)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "reconcile", opErr.Op)
	assert.Equal(t, int64(112), opErr.Key)

	// the partial report covers the rows handled before the failure
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Errors)
	assert.Zero(t, report.Inserted)

	s := states(c)
	assert.Equal(t, Unchanged, s[int64(103)])
	assert.Equal(t, PendingDelete, s[int64(112)])
	assert.Equal(t, Added, s[int64(900)])
}

func TestReconcileEmptyCache(t *testing.T) {
	c := newCustomerCache(t)
	conn := &fakeConn{}

	report, err := Reconcile(context.Background(), c, customerCommands(t), conn)
	require.NoError(t, err)
	assert.Empty(t, conn.execs)
	assert.Equal(t, TableCustomers, report.Table)
}
