package orderstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RowFailure is a row a reconciliation pass could not apply.
type RowFailure struct {
	Key any
	Op  StatementKind
	Err error
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	ID        string
	Table     string
	Inserted  int
	Updated   int
	Deleted   int
	Conflicts int
	Errors    int
	Failed    []RowFailure
}

func (r ReconcileReport) String() string {
	return fmt.Sprintf("%s: inserted=%d updated=%d deleted=%d conflicts=%d errors=%d",
		r.Table, r.Inserted, r.Updated, r.Deleted, r.Conflicts, r.Errors)
}

// Reconcile writes every pending row of the cache to the store over conn.
// Rows are applied one by one with no enclosing transaction: a failing row is
// recorded in the report and the pass moves on. Only a lost connection aborts
// the pass, in which case the partial report is returned together with an
// error matching ErrStoreUnavailable.
//
// Added rows are inserted, Modified rows updated by their original key, and
// PendingDelete rows deleted. An update or insert affecting no row is a
// conflict and the row keeps its state for a later pass. A delete affecting
// no row is a conflict as well, but the row is dropped since it is already
// gone from the store.
func Reconcile(ctx context.Context, cache *Cache, cmds CommandSet, conn Conn) (ReconcileReport, error) {
	return reconcile(ctx, defaultLogger(), cache, cmds, conn)
}

func reconcile(ctx context.Context, logger *log.Entry, cache *Cache, cmds CommandSet, conn Conn) (ReconcileReport, error) {
	table := cache.Table()
	report := ReconcileReport{ID: uuid.NewString(), Table: table.Name}
	logger = logger.WithFields(log.Fields{"pass": report.ID, "table": table.Name})

	reconcilePassesTotal.Inc()
	defer cache.compact()

	for _, row := range cache.pending() {
		var cmd CommandTemplate
		switch row.State {
		case Added:
			cmd = cmds.Insert
		case Modified:
			cmd = cmds.Update
		case PendingDelete:
			cmd = cmds.Delete
		default:
			continue
		}

		n, execErr := conn.Exec(ctx, table, cmd, cmd.Bind(row.Current, row.Original))
		rowLog := logger.WithFields(log.Fields{"op": cmd.Kind, "key": row.Key})

		switch {
		case execErr != nil && errors.Is(execErr, ErrStoreUnavailable):
			reconcileRowsTotal.WithLabelValues(cmd.Kind.String(), outcomeError).Inc()
			rowLog.WithField("err", execErr).Error("store lost during reconciliation")
			report.Errors++
			report.Failed = append(report.Failed, RowFailure{Key: row.Key, Op: cmd.Kind, Err: execErr})
			return report, opError("reconcile", table.Name, row.Key, execErr)

		case execErr != nil:
			reconcileRowsTotal.WithLabelValues(cmd.Kind.String(), outcomeError).Inc()
			rowLog.WithField("err", execErr).Warn("row not reconciled")
			report.Errors++
			report.Failed = append(report.Failed, RowFailure{Key: row.Key, Op: cmd.Kind, Err: execErr})

		case n == 0:
			reconcileRowsTotal.WithLabelValues(cmd.Kind.String(), outcomeConflict).Inc()
			rowLog.Warn("no row affected, reporting conflict")
			report.Conflicts++
			report.Failed = append(report.Failed, RowFailure{
				Key: row.Key,
				Op:  cmd.Kind,
				Err: fmt.Errorf("%w: %s %s affected no row", ErrConflict, cmd.Kind, table.Name),
			})
			if row.State == PendingDelete {
				cache.remove(row.Key)
			}

		default:
			reconcileRowsTotal.WithLabelValues(cmd.Kind.String(), outcomeOK).Inc()
			rowLog.WithField("rows", n).Debug("row reconciled")
			switch row.State {
			case Added:
				report.Inserted++
				cache.accept(row)
			case Modified:
				report.Updated++
				cache.accept(row)
			case PendingDelete:
				report.Deleted++
				cache.remove(row.Key)
			}
		}
	}

	logger.WithFields(log.Fields{
		"inserted":  report.Inserted,
		"updated":   report.Updated,
		"deleted":   report.Deleted,
		"conflicts": report.Conflicts,
		"errors":    report.Errors,
	}).Info("reconciliation finished")
	return report, nil
}
