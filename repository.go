package orderstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"
)

// Storage is the data access layer over one Backend. It offers the direct
// read path, the transactional order writer and a single offline cache.
// A Storage is not safe for concurrent use.
type Storage struct {
	backend Backend
	catalog Catalog
	stmts   Statements
	logger  *log.Entry
	writer  *orderWriter

	cache *Cache
	cmds  CommandSet
	// dirty is set by cache changes and cleared by a completed pass.
	dirty bool
}

func NewStorage(backend Backend, opts ...StorageOption) (*Storage, error) {
	o := option{statements: DefaultStatements()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}
	catalog := ClassicModels()
	if o.catalog != nil {
		catalog = *o.catalog
	}

	logger := o.logger.WithField("backend", backend.Name())
	writer, err := newOrderWriter(backend, catalog, o.statements, logger)
	if err != nil {
		return nil, err
	}

	return &Storage{
		backend: backend,
		catalog: catalog,
		stmts:   o.statements,
		logger:  logger,
		writer:  writer,
	}, nil
}

func (s *Storage) Catalog() Catalog {
	return s.catalog
}

// LoadCache reads every row of table into a new offline cache, replacing the
// current one. It refuses to drop a cache that still has pending rows.
func (s *Storage) LoadCache(ctx context.Context, table string) error {
	if s.cache != nil && s.cache.Pending() > 0 {
		return opError("load cache", table, nil,
			fmt.Errorf("%w: %d rows of %s", ErrPendingChanges, s.cache.Pending(), s.cache.Table().Name))
	}

	tb, err := s.catalog.Table(table)
	if err != nil {
		return err
	}
	texts, err := s.stmts.ForTable(tb.Name)
	if err != nil {
		return opError("load cache", tb.Name, nil, err)
	}
	cmds, err := BuildCommands(tb, texts)
	if err != nil {
		return opError("load cache", tb.Name, nil, err)
	}

	var rows []map[string]any
	err = s.withConn(ctx, func(conn Conn) error {
		rows, err = readWith(ctx, conn, tb, cmds.Select)
		return err
	})
	if err != nil {
		return opError("load cache", tb.Name, nil, err)
	}

	cache, err := NewCache(tb, rows)
	if err != nil {
		return opError("load cache", tb.Name, nil, err)
	}

	cacheLoadsTotal.Inc()
	s.logger.WithFields(log.Fields{"table": tb.Name, "rows": cache.Len()}).Info("cache loaded")
	s.cache, s.cmds, s.dirty = cache, cmds, false
	return nil
}

func (s *Storage) Cache() (*Cache, error) {
	if s.cache == nil {
		return nil, ErrCacheNotLoaded
	}
	return s.cache, nil
}

// CacheAdd adds a record, given as a model struct or a field map, to the cache.
func (s *Storage) CacheAdd(record any) error {
	c, err := s.Cache()
	if err != nil {
		return err
	}
	fields, err := FieldsOf(record)
	if err != nil {
		return err
	}
	key := lookupFold(fields, c.key.Name)
	s.dirty = true
	return opError("cache add", c.Table().Name, key, c.Add(fields))
}

func (s *Storage) CacheMarkDelete(key any) error {
	c, err := s.Cache()
	if err != nil {
		return err
	}
	s.dirty = true
	return opError("cache delete", c.Table().Name, key, c.MarkDelete(key))
}

func (s *Storage) CachePatch(key any, fields map[string]any) error {
	c, err := s.Cache()
	if err != nil {
		return err
	}
	s.dirty = true
	return opError("cache patch", c.Table().Name, key, c.PatchFields(key, fields))
}

// CacheRow returns the live cached row with key.
func (s *Storage) CacheRow(key any) (Row, error) {
	c, err := s.Cache()
	if err != nil {
		return Row{}, err
	}
	row, err := c.Row(key)
	if err != nil {
		return Row{}, opError("cache get", c.Table().Name, key, err)
	}
	return row, nil
}

func (s *Storage) CacheSnapshot() ([]Row, error) {
	c, err := s.Cache()
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// Reconcile writes the cache's pending rows to the store on one connection.
func (s *Storage) Reconcile(ctx context.Context) (ReconcileReport, error) {
	c, err := s.Cache()
	if err != nil {
		return ReconcileReport{}, err
	}

	var report ReconcileReport
	err = s.withConn(ctx, func(conn Conn) error {
		report, err = reconcile(ctx, s.logger, c, s.cmds, conn)
		return err
	})
	if err == nil {
		s.dirty = false
	} else if !errors.Is(err, ErrStoreUnavailable) {
		err = opError("reconcile", c.Table().Name, nil, err)
	}
	return report, err
}

// WriteOrderWithDetails inserts order and details in one transaction. Either
// all rows reach the store or none do.
func (s *Storage) WriteOrderWithDetails(ctx context.Context, order *Order, details []OrderLine) error {
	return s.writer.write(ctx, order, details)
}

// WriteOrder writes an order together with the details attached to it.
func (s *Storage) WriteOrder(ctx context.Context, order *Order) error {
	return s.writer.write(ctx, order, order.Details())
}

// Close reconciles the cache if it changed since the last completed pass, then
// closes the backend. Rows a pass already reported as failed are not retried.
func (s *Storage) Close(ctx context.Context) error {
	var errs []error
	if s.cache != nil && s.dirty && s.cache.Pending() > 0 {
		report, err := s.Reconcile(ctx)
		if err != nil {
			errs = append(errs, err)
		} else if len(report.Failed) > 0 {
			errs = append(errs, fmt.Errorf("%d rows of %s not reconciled on close: %w",
				len(report.Failed), report.Table, report.Failed[0].Err))
		}
	}
	if err := s.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing %s backend: %w", s.backend.Name(), err))
	}
	return errors.Join(errs...)
}

// withConn runs fn on a connection acquired for its duration only.
func (s *Storage) withConn(ctx context.Context, fn func(conn Conn) error) (err error) {
	conn, err := s.backend.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := conn.Release(); relErr != nil {
			s.logger.WithField("err", relErr).Error("releasing connection")
			err = errors.Join(err, fmt.Errorf("releasing connection: %w", relErr))
		}
	}()
	return fn(conn)
}

// FieldsOf returns the column values of a record. Structs map through their
// `db` tags; maps with string keys are copied as they are. Nullable fields
// that are null map to nil.
func FieldsOf(record any) (map[string]any, error) {
	if m, ok := record.(map[string]any); ok {
		return maps.Clone(m), nil
	}

	dataVal := reflect.ValueOf(record)
	for dataVal.Kind() == reflect.Ptr {
		if dataVal.IsNil() {
			return nil, fmt.Errorf("%w: nil record", ErrInvalidValue)
		}
		dataVal = dataVal.Elem()
	}

	switch dataVal.Kind() {
	case reflect.Map:
		if dataVal.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: record as map should have string keys", ErrInvalidValue)
		}
		result := make(map[string]any, dataVal.Len())
		iter := dataVal.MapRange()
		for iter.Next() {
			result[iter.Key().String()] = iter.Value().Interface()
		}
		return result, nil
	case reflect.Struct:
	default:
		return nil, fmt.Errorf("%w: record must be a struct or a map, got %s", ErrInvalidValue, dataVal.Kind())
	}

	valType := dataVal.Type()
	result := make(map[string]any, valType.NumField())
	for i := 0; i < valType.NumField(); i++ {
		tag, ok := columnNameOf(valType.Field(i))
		if !ok {
			continue
		}

		val := dataVal.Field(i).Interface()
		if v, ok := val.(driver.Valuer); ok {
			buffVal, err := v.Value()
			if err != nil {
				return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidValue, valType.Field(i).Name, err)
			}
			val = buffVal
		}
		result[tag.name] = val
	}
	return result, nil
}

// decodeRecord fills the struct dest points to from a normalized field bag.
func decodeRecord(fields map[string]any, dest any) error {
	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.IsNil() || destVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode destination must be a non nil struct pointer, got %T", dest)
	}
	destVal = destVal.Elem()
	destType := destVal.Type()

	for i := 0; i < destType.NumField(); i++ {
		field := destType.Field(i)
		tag, ok := columnNameOf(field)
		if !ok {
			continue
		}
		if err := assignField(destVal.Field(i), lookupFold(fields, tag.name)); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrSchemaMismatch, destType.Name(), field.Name, err)
		}
	}
	return nil
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	nullTimeType = reflect.TypeOf(null.Time{})
)

func assignField(fv reflect.Value, v any) error {
	if s, ok := v.(string); ok && (fv.Type() == timeType || fv.Type() == nullTimeType) {
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		v = t
	}

	if scanner, ok := fv.Addr().Interface().(sql.Scanner); ok {
		return scanner.Scan(v)
	}

	if v == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}

	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.String:
		s, err := toText(v)
		if err != nil {
			return err
		}
		fv.SetString(s)
	default:
		return fmt.Errorf("cannot assign %T to %s", v, fv.Type())
	}
	return nil
}

func decodeAll[T any](rows []map[string]any) ([]T, error) {
	out := make([]T, len(rows))
	for i, row := range rows {
		if err := decodeRecord(row, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
