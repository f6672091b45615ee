package orderstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerCommands(t *testing.T) CommandSet {
	t.Helper()
	tb, err := ClassicModels().Table(TableCustomers)
	require.NoError(t, err)
	stmts, err := DefaultStatements().ForTable(TableCustomers)
	require.NoError(t, err)
	cmds, err := BuildCommands(tb, stmts)
	require.NoError(t, err)
	return cmds
}

func TestBuildCommands(t *testing.T) {
	cmds := customerCommands(t)

	assert.Equal(t, KindSelect, cmds.Select.Kind)
	assert.Empty(t, cmds.Select.Bindings)

	// data columns first, key last, as in the statement texts
	require.Len(t, cmds.Insert.Bindings, 13)
	assert.Equal(t, ParamBinding{Param: "customerName", Column: "customerName", Source: Current}, cmds.Insert.Bindings[0])
	assert.Equal(t, ParamBinding{Param: "customerNumber", Column: "customerNumber", Source: Current}, cmds.Insert.Bindings[12])

	require.Len(t, cmds.Update.Bindings, 13)
	for _, b := range cmds.Update.Bindings[:12] {
		assert.Equal(t, Current, b.Source, b.Column)
	}
	assert.Equal(t, ParamBinding{Param: "customerNumber", Column: "customerNumber", Source: Original}, cmds.Update.Bindings[12])

	assert.Equal(t, []ParamBinding{{Param: "customerNumber", Column: "customerNumber", Source: Current}}, cmds.Delete.Bindings)

	key, ok := cmds.Update.KeyBinding(cmds.Table)
	require.True(t, ok)
	assert.Equal(t, Original, key.Source)

	_, ok = cmds.Select.KeyBinding(cmds.Table)
	assert.False(t, ok)
}

func TestBuildCommandsCompositeKey(t *testing.T) {
	tb, err := ClassicModels().Table(TableOrderDetails)
	require.NoError(t, err)

	_, err = BuildCommands(tb, TableStatements{Select: "s", Insert: "i", Update: "u", Delete: "d"})
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	cmd := insertCommand(tb, "i")
	assert.Len(t, cmd.Bindings, 5)
	assert.Equal(t, "orderLineNumber", cmd.Bindings[4].Column)
}

func TestBindUsesOriginalKeyForUpdate(t *testing.T) {
	cmds := customerCommands(t)

	original := map[string]any{"customerNumber": int64(103), "city": "Nantes"}
	current := map[string]any{"customerNumber": int64(103), "city": "Gent", "state": nil}

	args := cmds.Update.Bind(current, original)
	assert.Equal(t, int64(103), args["customerNumber"])
	assert.Equal(t, "Gent", args["city"])
	assert.Nil(t, args["state"])
	assert.Contains(t, args, "postalCode")
	assert.Len(t, args, 13)

	// an update of a row without original values has no key to target
	args = cmds.Update.Bind(current, nil)
	assert.Nil(t, args["customerNumber"])
}

func TestBindIgnoresColumnCase(t *testing.T) {
	cmds := customerCommands(t)

	args := cmds.Delete.Bind(map[string]any{"CUSTOMERNUMBER": int64(7)}, nil)
	assert.Equal(t, Args{"customerNumber": int64(7)}, args)
}

func TestKindAndSourceStrings(t *testing.T) {
	assert.Equal(t, "select", KindSelect.String())
	assert.Equal(t, "insert", KindInsert.String())
	assert.Equal(t, "update", KindUpdate.String())
	assert.Equal(t, "delete", KindDelete.String())
	assert.Equal(t, "StatementKind(7)", StatementKind(7).String())
	assert.Equal(t, "current", Current.String())
	assert.Equal(t, "original", Original.String())
}
