package orderstore

import (
	"context"
	"sort"
)

// ReadAll returns every row of table straight from the store, one field bag
// per row keyed by column name.
func (s *Storage) ReadAll(ctx context.Context, table string) ([]map[string]any, error) {
	tb, err := s.catalog.Table(table)
	if err != nil {
		return nil, err
	}
	text, err := s.stmts.selectFor(tb.Name)
	if err != nil {
		return nil, opError("read", tb.Name, nil, err)
	}

	var rows []map[string]any
	err = s.withConn(ctx, func(conn Conn) error {
		rows, err = readWith(ctx, conn, tb, selectCommand(text))
		return err
	})
	if err != nil {
		return nil, opError("read", tb.Name, nil, err)
	}
	return rows, nil
}

func readWith(ctx context.Context, conn Conn, table TableDef, cmd CommandTemplate) ([]map[string]any, error) {
	rs, err := conn.Query(ctx, table, cmd)
	if err != nil {
		return nil, err
	}
	rows, err := rs.normalize(table)
	if err != nil {
		return nil, err
	}
	readRowsTotal.WithLabelValues(table.Name).Add(float64(len(rows)))
	return rows, nil
}

func readAllAs[T any](ctx context.Context, s *Storage, table string) ([]T, error) {
	rows, err := s.ReadAll(ctx, table)
	if err != nil {
		return nil, err
	}
	out, err := decodeAll[T](rows)
	if err != nil {
		return nil, opError("read", table, nil, err)
	}
	return out, nil
}

func (s *Storage) Customers(ctx context.Context) ([]Customer, error) {
	return readAllAs[Customer](ctx, s, TableCustomers)
}

func (s *Storage) Products(ctx context.Context) ([]Product, error) {
	return readAllAs[Product](ctx, s, TableProducts)
}

func (s *Storage) OrderLines(ctx context.Context) ([]OrderLine, error) {
	return readAllAs[OrderLine](ctx, s, TableOrderDetails)
}

// Orders returns every order with its detail lines attached, sorted by line
// number. Orders and details are read on the same connection.
func (s *Storage) Orders(ctx context.Context) ([]*Order, error) {
	orders, err := s.catalog.Table(TableOrders)
	if err != nil {
		return nil, err
	}
	details, err := s.catalog.Table(TableOrderDetails)
	if err != nil {
		return nil, err
	}
	orderText, err := s.stmts.selectFor(TableOrders)
	if err != nil {
		return nil, opError("read", TableOrders, nil, err)
	}
	detailText, err := s.stmts.selectFor(TableOrderDetails)
	if err != nil {
		return nil, opError("read", TableOrderDetails, nil, err)
	}

	var orderRows, detailRows []map[string]any
	err = s.withConn(ctx, func(conn Conn) error {
		if orderRows, err = readWith(ctx, conn, orders, selectCommand(orderText)); err != nil {
			return err
		}
		detailRows, err = readWith(ctx, conn, details, selectCommand(detailText))
		return err
	})
	if err != nil {
		return nil, opError("read", TableOrders, nil, err)
	}

	headers, err := decodeAll[Order](orderRows)
	if err != nil {
		return nil, opError("read", TableOrders, nil, err)
	}
	lines, err := decodeAll[OrderLine](detailRows)
	if err != nil {
		return nil, opError("read", TableOrderDetails, nil, err)
	}

	byNumber := make(map[int64]*Order, len(headers))
	out := make([]*Order, len(headers))
	for i := range headers {
		o := &headers[i]
		o.Details()
		byNumber[o.Number] = o
		out[i] = o
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].OrderNumber != lines[j].OrderNumber {
			return lines[i].OrderNumber < lines[j].OrderNumber
		}
		return lines[i].LineNumber < lines[j].LineNumber
	})
	for _, l := range lines {
		if o, ok := byNumber[l.OrderNumber]; ok {
			o.AddDetail(l)
		}
	}
	return out, nil
}

func (s *Storage) OrdersForCustomer(ctx context.Context, customer int64) ([]*Order, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(orders, func(o *Order) bool { return o.CustomerNumber == customer }), nil
}

// MaxCustomerNumber returns the highest customer number, or 0 for an empty table.
func (s *Storage) MaxCustomerNumber(ctx context.Context) (int64, error) {
	customers, err := s.Customers(ctx)
	if err != nil {
		return 0, err
	}
	var highest int64
	for _, c := range customers {
		if c.Number > highest {
			highest = c.Number
		}
	}
	return highest, nil
}

// MaxOrderNumber returns the highest order number, or 0 for an empty table.
func (s *Storage) MaxOrderNumber(ctx context.Context) (int64, error) {
	orders, err := readAllAs[Order](ctx, s, TableOrders)
	if err != nil {
		return 0, err
	}
	var highest int64
	for _, o := range orders {
		if o.Number > highest {
			highest = o.Number
		}
	}
	return highest, nil
}

// CustomerTotal sums quantity times price over all order lines of a customer.
func (s *Storage) CustomerTotal(ctx context.Context, customer int64) (float64, error) {
	orders, err := s.OrdersForCustomer(ctx, customer)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, o := range orders {
		for _, l := range o.Details() {
			total += l.Total()
		}
	}
	return total, nil
}
