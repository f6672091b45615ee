package orderstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementsGet(t *testing.T) {
	stmts := DefaultStatements()

	text, err := stmts.Get("SELECT_ALL_CUSTOMERS")
	require.NoError(t, err)
	assert.Contains(t, text, "FROM customers")

	_, err = stmts.Get("select_all_employees")
	assert.ErrorIs(t, err, ErrUnknownStatement)
}

func TestStatementsMerge(t *testing.T) {
	base := DefaultStatements()
	merged := base.Merge(map[string]string{
		"SELECT_ALL_CUSTOMERS": "SELECT * FROM customers",
		"update_orderdetails":  "   ",
	})

	text, err := merged.Get(StmtSelectAllCustomers)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM customers", text)

	// blank texts count as missing
	_, err = merged.Get("update_orderdetails")
	assert.ErrorIs(t, err, ErrUnknownStatement)

	// the receiver is left untouched
	text, err = base.Get(StmtSelectAllCustomers)
	require.NoError(t, err)
	assert.NotEqual(t, "SELECT * FROM customers", text)

	assert.Contains(t, merged.Names(), "update_orderdetails")
	assert.IsIncreasing(t, merged.Names())
}

func TestStatementsForTable(t *testing.T) {
	stmts := DefaultStatements()

	ts, err := stmts.ForTable("Customers")
	require.NoError(t, err)
	assert.Contains(t, ts.Select, "SELECT customerNumber")
	assert.Contains(t, ts.Insert, "INSERT INTO customers")
	assert.Contains(t, ts.Update, "WHERE customerNumber = :customerNumber")
	assert.Contains(t, ts.Delete, "DELETE FROM customers")

	_, err = stmts.ForTable(TableOrders)
	assert.NoError(t, err)

	// orderdetails is insert only unless update and delete texts are configured
	_, err = stmts.ForTable(TableOrderDetails)
	assert.ErrorIs(t, err, ErrUnknownStatement)

	text, err := stmts.insertFor(TableOrderDetails)
	require.NoError(t, err)
	assert.Contains(t, text, "INSERT INTO orderdetails")

	_, err = stmts.ForTable(TableProducts)
	assert.ErrorIs(t, err, ErrUnknownStatement)

	stmts = stmts.Merge(map[string]string{
		"insert_one_products": "INSERT INTO products VALUES (:productCode)",
		"update_products":     "UPDATE products SET productName = :productName WHERE productCode = :productCode",
		"delete_products":     "DELETE FROM products WHERE productCode = :productCode",
	})
	_, err = stmts.ForTable(TableProducts)
	assert.NoError(t, err)
}
