package orderstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// withTransaction runs fn inside one transaction on a freshly acquired
// connection. The transaction commits only if fn returns nil and is rolled
// back on any error or panic. The connection is released on every path;
// rollback and release failures are joined to the returned error.
func withTransaction(ctx context.Context, backend Backend, logger *log.Entry, fn func(tx Transaction) error) (err error) {
	conn, err := backend.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := conn.Release(); relErr != nil {
			logger.WithField("err", relErr).Error("releasing connection")
			err = errors.Join(err, fmt.Errorf("releasing connection: %w", relErr))
		}
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	// Rollback must still reach the store when ctx is what failed.
	rollback := func() error {
		rbErr := tx.Rollback(context.WithoutCancel(ctx))
		if rbErr != nil {
			logger.WithField("err", rbErr).Error("rolling back transaction")
			return fmt.Errorf("rolling back: %w", rbErr)
		}
		logger.Warn("transaction rolled back")
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			_ = rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		return errors.Join(err, rollback())
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// orderWriter inserts an order and its detail lines atomically.
type orderWriter struct {
	backend      Backend
	orders       TableDef
	details      TableDef
	insertOrder  CommandTemplate
	insertDetail CommandTemplate
	logger       *log.Entry
}

func newOrderWriter(backend Backend, catalog Catalog, stmts Statements, logger *log.Entry) (*orderWriter, error) {
	orders, err := catalog.Table(TableOrders)
	if err != nil {
		return nil, err
	}
	details, err := catalog.Table(TableOrderDetails)
	if err != nil {
		return nil, err
	}
	orderText, err := stmts.insertFor(TableOrders)
	if err != nil {
		return nil, err
	}
	detailText, err := stmts.insertFor(TableOrderDetails)
	if err != nil {
		return nil, err
	}

	return &orderWriter{
		backend:      backend,
		orders:       orders,
		details:      details,
		insertOrder:  insertCommand(orders, orderText),
		insertDetail: insertCommand(details, detailText),
		logger:       logger,
	}, nil
}

// write inserts the order, then each detail in the given order, inside one
// transaction. Details are bound to the order's number, and a zero line
// number is taken from the detail's position (1..N).
func (w *orderWriter) write(ctx context.Context, order *Order, details []OrderLine) error {
	if order == nil {
		return fmt.Errorf("%w: nil order", ErrInvalidValue)
	}

	orderFields, err := w.fields(w.orders, order)
	if err != nil {
		return opError("write order", w.orders.Name, order.Number, err)
	}
	lines := make([]OrderLine, len(details))
	detailFields := make([]map[string]any, len(details))
	for i, d := range details {
		d.OrderNumber = order.Number
		if d.LineNumber == 0 {
			d.LineNumber = int64(i + 1)
		}
		lines[i] = d
		if detailFields[i], err = w.fields(w.details, d); err != nil {
			return opError("write order detail", w.details.Name, lineKey(d), err)
		}
	}

	logger := w.logger.WithFields(log.Fields{"tx": uuid.NewString(), "order": order.Number, "details": len(details)})
	err = withTransaction(ctx, w.backend, logger, func(tx Transaction) error {
		if err := w.exec(ctx, tx, w.orders, w.insertOrder, orderFields); err != nil {
			return opError("write order", w.orders.Name, order.Number, err)
		}
		for i, fields := range detailFields {
			if err := w.exec(ctx, tx, w.details, w.insertDetail, fields); err != nil {
				return opError("write order detail", w.details.Name, lineKey(lines[i]), err)
			}
		}
		return nil
	})

	if err != nil {
		orderWritesTotal.WithLabelValues(outcomeError).Inc()
		logger.WithField("err", err).Warn("order not written")
		return err
	}
	orderWritesTotal.WithLabelValues(outcomeOK).Inc()
	logger.Info("order written")
	return nil
}

func (w *orderWriter) fields(table TableDef, record any) (map[string]any, error) {
	fields, err := FieldsOf(record)
	if err != nil {
		return nil, err
	}
	return coerceFields(table, fields)
}

func (w *orderWriter) exec(ctx context.Context, tx Transaction, table TableDef, cmd CommandTemplate, fields map[string]any) error {
	n, err := tx.Exec(ctx, table, cmd, cmd.Bind(fields, nil))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: insert into %s affected no row", ErrConflict, table.Name)
	}
	return nil
}

func lineKey(d OrderLine) string {
	return fmt.Sprintf("%d/%d", d.OrderNumber, d.LineNumber)
}
