package orderstore

import (
	"fmt"
	"sort"
	"strings"
)

// Statements holds the statement texts of a Storage, keyed by logical
// operation name such as "select_all_customers" or "insert_one_order".
// Texts use named :column placeholders and are treated as opaque.
type Statements map[string]string

// Statement names are "<verb>_<table>" for the generic templates; the
// customers and orders tables also carry the historical names below.
const (
	StmtSelectAllCustomers    = "select_all_customers"
	StmtInsertOneCustomer     = "insert_one_customer"
	StmtUpdateCustomer        = "update_customer_with_number"
	StmtDeleteCustomer        = "delete_customer_with_number"
	StmtSelectAllOrders       = "select_all_orders"
	StmtInsertOneOrder        = "insert_one_order"
	StmtUpdateOrder           = "update_order_with_number"
	StmtDeleteOrder           = "delete_order_with_number"
	StmtSelectAllOrderDetails = "select_all_orderdetails"
	StmtInsertOrderDetails    = "insert_orderdetails"
	StmtSelectAllProducts     = "select_all_products"
)

var defaultStatements = Statements{
	StmtSelectAllCustomers: `SELECT customerNumber, customerName, contactLastName, contactFirstName, phone, addressLine1,
	addressLine2, city, state, postalCode, country, salesRepEmployeeNumber, creditLimit
FROM customers ORDER BY customerNumber`,
	StmtInsertOneCustomer: `INSERT INTO customers (customerName, contactLastName, contactFirstName, phone, addressLine1,
	addressLine2, city, state, postalCode, country, salesRepEmployeeNumber, creditLimit, customerNumber)
VALUES (:customerName, :contactLastName, :contactFirstName, :phone, :addressLine1,
	:addressLine2, :city, :state, :postalCode, :country, :salesRepEmployeeNumber, :creditLimit, :customerNumber)`,
	StmtUpdateCustomer: `UPDATE customers SET customerName = :customerName, contactLastName = :contactLastName,
	contactFirstName = :contactFirstName, phone = :phone, addressLine1 = :addressLine1, addressLine2 = :addressLine2,
	city = :city, state = :state, postalCode = :postalCode, country = :country,
	salesRepEmployeeNumber = :salesRepEmployeeNumber, creditLimit = :creditLimit
WHERE customerNumber = :customerNumber`,
	StmtDeleteCustomer: `DELETE FROM customers WHERE customerNumber = :customerNumber`,

	StmtSelectAllOrders: `SELECT orderNumber, orderDate, requiredDate, shippedDate, status, comments, customerNumber
FROM orders ORDER BY orderNumber`,
	StmtInsertOneOrder: `INSERT INTO orders (orderDate, requiredDate, shippedDate, status, comments, customerNumber, orderNumber)
VALUES (:orderDate, :requiredDate, :shippedDate, :status, :comments, :customerNumber, :orderNumber)`,
	StmtUpdateOrder: `UPDATE orders SET orderDate = :orderDate, requiredDate = :requiredDate, shippedDate = :shippedDate,
	status = :status, comments = :comments, customerNumber = :customerNumber
WHERE orderNumber = :orderNumber`,
	StmtDeleteOrder: `DELETE FROM orders WHERE orderNumber = :orderNumber`,

	StmtSelectAllOrderDetails: `SELECT orderNumber, productCode, quantityOrdered, priceEach, orderLineNumber
FROM orderdetails ORDER BY orderNumber, orderLineNumber`,
	StmtInsertOrderDetails: `INSERT INTO orderdetails (orderNumber, productCode, quantityOrdered, priceEach, orderLineNumber)
VALUES (:orderNumber, :productCode, :quantityOrdered, :priceEach, :orderLineNumber)`,

	StmtSelectAllProducts: `SELECT productCode, productName, productLine, productScale, productVendor, productDescription,
	quantityInStock, buyPrice, MSRP
FROM products ORDER BY productCode`,
}

// DefaultStatements returns a copy of the built-in statement texts for the
// classicmodels schema.
func DefaultStatements() Statements {
	return defaultStatements.Merge(nil)
}

// Merge returns a copy of s with the entries of overrides replacing its own.
// Keys are matched case-insensitively, so configuration may use
// SELECT_ALL_CUSTOMERS as well.
func (s Statements) Merge(overrides map[string]string) Statements {
	out := make(Statements, len(s)+len(overrides))
	for k, v := range s {
		out[strings.ToLower(k)] = v
	}
	for k, v := range overrides {
		out[strings.ToLower(k)] = v
	}
	return out
}

func (s Statements) Get(name string) (string, error) {
	text, ok := s[strings.ToLower(name)]
	if !ok || strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownStatement, name)
	}
	return text, nil
}

func (s Statements) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ForTable resolves the select, insert, update and delete texts of a table.
func (s Statements) ForTable(table string) (TableStatements, error) {
	names := statementNames(table)

	var texts [4]string
	for i, name := range names {
		text, err := s.Get(name)
		if err != nil {
			return TableStatements{}, err
		}
		texts[i] = text
	}
	return TableStatements{Select: texts[0], Insert: texts[1], Update: texts[2], Delete: texts[3]}, nil
}

func (s Statements) selectFor(table string) (string, error) {
	return s.Get(statementNames(table)[0])
}

func (s Statements) insertFor(table string) (string, error) {
	return s.Get(statementNames(table)[1])
}

// TableStatements are the four statement texts used to build a CommandSet.
type TableStatements struct {
	Select string
	Insert string
	Update string
	Delete string
}

func statementNames(table string) [4]string {
	switch strings.ToLower(table) {
	case TableCustomers:
		return [4]string{StmtSelectAllCustomers, StmtInsertOneCustomer, StmtUpdateCustomer, StmtDeleteCustomer}
	case TableOrders:
		return [4]string{StmtSelectAllOrders, StmtInsertOneOrder, StmtUpdateOrder, StmtDeleteOrder}
	case TableOrderDetails:
		return [4]string{StmtSelectAllOrderDetails, StmtInsertOrderDetails, "update_orderdetails", "delete_orderdetails"}
	}
	t := strings.ToLower(table)
	return [4]string{"select_all_" + t, "insert_one_" + t, "update_" + t, "delete_" + t}
}
