package orderstore

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/guregu/null.v4"
)

// Table names of the classicmodels schema.
const (
	TableCustomers    = "customers"
	TableOrders       = "orders"
	TableOrderDetails = "orderdetails"
	TableProducts     = "products"
)

const dateLayout = "2006-01-02"

type Customer struct {
	Number                 int64       `db:"customerNumber,key"`
	Name                   string      `db:"customerName,size=50"`
	ContactLastName        string      `db:"contactLastName"`
	ContactFirstName       string      `db:"contactFirstName"`
	Phone                  string      `db:"phone"`
	AddressLine1           string      `db:"addressLine1"`
	AddressLine2           null.String `db:"addressLine2,allownull"`
	City                   string      `db:"city"`
	State                  null.String `db:"state,allownull"`
	PostalCode             null.String `db:"postalCode,allownull"`
	Country                string      `db:"country"`
	SalesRepEmployeeNumber null.Int    `db:"salesRepEmployeeNumber,allownull"`
	CreditLimit            null.Float  `db:"creditLimit,allownull"`
}

func (c Customer) String() string {
	return fmt.Sprintf("customer %d [%s, %s %s, %s]", c.Number, c.Name, c.ContactFirstName, c.ContactLastName, c.Country)
}

// Order is an order header. Its detail lines are created on first access to
// Details and are only ever appended to.
type Order struct {
	Number         int64       `db:"orderNumber,key"`
	OrderDate      time.Time   `db:"orderDate"`
	RequiredDate   time.Time   `db:"requiredDate"`
	ShippedDate    null.Time   `db:"shippedDate,allownull"`
	Status         string      `db:"status,size=15"`
	Comments       null.String `db:"comments,allownull"`
	CustomerNumber int64       `db:"customerNumber,ref=customers.customerNumber"`

	details []OrderLine
}

// Details returns the order's lines, creating the collection if it was never
// touched.
func (o *Order) Details() []OrderLine {
	if o.details == nil {
		o.details = []OrderLine{}
	}
	return o.details
}

func (o *Order) AddDetail(lines ...OrderLine) {
	o.details = append(o.Details(), lines...)
}

func (o *Order) String() string {
	detailInfo := "*"
	if o.details != nil {
		detailInfo = strconv.Itoa(len(o.details))
	}
	return fmt.Sprintf("order %d [ordered %s by customer %d, %s details]",
		o.Number, o.OrderDate.Format(dateLayout), o.CustomerNumber, detailInfo)
}

// Equal compares the header fields of two orders; detail lines are ignored.
func (o *Order) Equal(other *Order) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.Number == other.Number &&
		o.OrderDate.Equal(other.OrderDate) &&
		o.RequiredDate.Equal(other.RequiredDate) &&
		o.ShippedDate.Equal(other.ShippedDate) &&
		o.Status == other.Status &&
		o.Comments.Equal(other.Comments) &&
		o.CustomerNumber == other.CustomerNumber
}

// OrderLine is one row of orderdetails, identified by order number and line
// number.
type OrderLine struct {
	OrderNumber int64   `db:"orderNumber,key ref=orders.orderNumber"`
	ProductCode string  `db:"productCode,size=15 ref=products.productCode"`
	Quantity    int64   `db:"quantityOrdered"`
	Price       float64 `db:"priceEach"`
	LineNumber  int64   `db:"orderLineNumber,key"`
}

func (l OrderLine) Total() float64 {
	return float64(l.Quantity) * l.Price
}

func (l OrderLine) String() string {
	return fmt.Sprintf("line %d of order %d [%d x %s at %.2f]", l.LineNumber, l.OrderNumber, l.Quantity, l.ProductCode, l.Price)
}

type Product struct {
	Code        string  `db:"productCode,key size=15"`
	Name        string  `db:"productName"`
	Line        string  `db:"productLine"`
	Scale       string  `db:"productScale"`
	Vendor      string  `db:"productVendor"`
	Description string  `db:"productDescription"`
	InStock     int64   `db:"quantityInStock"`
	BuyPrice    float64 `db:"buyPrice"`
	MSRP        float64 `db:"MSRP"`
}

func (p Product) String() string {
	return fmt.Sprintf("product %s [%s, %s]", p.Code, p.Name, p.Line)
}
