package orderstore

import (
	"fmt"
	"maps"
	"strings"
)

// RowState is the pending change of a cached row.
type RowState int

const (
	Unchanged RowState = iota
	Added
	Modified
	PendingDelete
)

func (s RowState) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case PendingDelete:
		return "deleted"
	default:
		return fmt.Sprintf("RowState(%d)", int(s))
	}
}

// Row is one cached record. Current holds the in-memory values, Original the
// values last read from or written to the store (nil for Added rows).
type Row struct {
	Key      any
	State    RowState
	Current  map[string]any
	Original map[string]any
}

func (r Row) Get(column string) any {
	return lookupFold(r.Current, column)
}

func (r *Row) copy() Row {
	return Row{
		Key:      r.Key,
		State:    r.State,
		Current:  maps.Clone(r.Current),
		Original: maps.Clone(r.Original),
	}
}

// Cache is an offline copy of one table with per-row change tracking. A Cache
// has a single owner; callers sharing one across goroutines must serialize
// access themselves.
type Cache struct {
	table TableDef
	key   Column
	rows  []*Row
	index map[any]*Row
}

// NewCache builds a cache over rows read from the store, all tagged
// Unchanged. The rows must already be normalized against the table.
func NewCache(table TableDef, rows []map[string]any) (*Cache, error) {
	key, err := table.KeyColumn()
	if err != nil {
		return nil, err
	}

	c := &Cache{
		table: table,
		key:   key,
		rows:  make([]*Row, 0, len(rows)),
		index: make(map[any]*Row, len(rows)),
	}
	for i, fields := range rows {
		k := fields[key.Name]
		if k == nil {
			return nil, fmt.Errorf("%w: row %d of %s has a null key", ErrSchemaMismatch, i, table.Name)
		}
		if _, dup := c.index[k]; dup {
			return nil, fmt.Errorf("%w: key %v appears twice in %s", ErrSchemaMismatch, k, table.Name)
		}
		c.append(&Row{Key: k, State: Unchanged, Current: fields, Original: maps.Clone(fields)})
	}
	return c, nil
}

func (c *Cache) Table() TableDef {
	return c.table
}

// Len counts every cached row, including rows pending deletion.
func (c *Cache) Len() int {
	return len(c.rows)
}

// Pending counts the rows a reconciliation would write.
func (c *Cache) Pending() int {
	n := 0
	for _, r := range c.rows {
		if r.State != Unchanged {
			n++
		}
	}
	return n
}

// FindByKey looks up a live row. Rows pending deletion are not found.
func (c *Cache) FindByKey(key any) (Row, bool) {
	k, err := c.normalizeKey(key)
	if err != nil {
		return Row{}, false
	}
	r, ok := c.index[k]
	if !ok || r.State == PendingDelete {
		return Row{}, false
	}
	return r.copy(), true
}

// Row is FindByKey for callers that need an error: an invalid key fails with
// ErrInvalidValue and a missing or deleted row with ErrKeyNotFound.
func (c *Cache) Row(key any) (Row, error) {
	k, err := c.normalizeKey(key)
	if err != nil {
		return Row{}, err
	}
	r, ok := c.index[k]
	if !ok || r.State == PendingDelete {
		return Row{}, fmt.Errorf("%w: %s key %v", ErrKeyNotFound, c.table.Name, k)
	}
	return r.copy(), nil
}

// Add appends a new row tagged Added. The key must not belong to a live row.
// Adding the key of a row pending deletion revives it as Modified with the
// new values. Nullable columns missing from fields are stored as null.
func (c *Cache) Add(fields map[string]any) error {
	values, err := coerceFields(c.table, fields)
	if err != nil {
		return err
	}
	for _, col := range c.table.Columns {
		if _, ok := values[col.Name]; ok {
			continue
		}
		if !col.AllowNull {
			return fmt.Errorf("%w: column %s is required", ErrInvalidValue, col.Name)
		}
		values[col.Name] = nil
	}

	k := values[c.key.Name]
	if existing, ok := c.index[k]; ok {
		if existing.State != PendingDelete {
			return fmt.Errorf("%w: %s key %v", ErrDuplicateKey, c.table.Name, k)
		}
		existing.Current = values
		existing.State = Modified
		return nil
	}

	c.append(&Row{Key: k, State: Added, Current: values})
	return nil
}

// MarkDelete tags the row with key for deletion. It is a no-op when no such
// row exists. A row that was added and never reconciled is dropped at once.
func (c *Cache) MarkDelete(key any) error {
	k, err := c.normalizeKey(key)
	if err != nil {
		return err
	}
	r, ok := c.index[k]
	if !ok {
		return nil
	}

	switch r.State {
	case Added:
		c.remove(k)
		c.compact()
	case Unchanged, Modified:
		r.State = PendingDelete
	}
	return nil
}

// PatchFields assigns field values to the row with key. It is a no-op when no
// such row exists. Every field is validated before any is applied. An
// Unchanged row becomes Modified; Added and PendingDelete rows keep their
// state.
func (c *Cache) PatchFields(key any, fields map[string]any) error {
	k, err := c.normalizeKey(key)
	if err != nil {
		return err
	}
	r, ok := c.index[k]
	if !ok {
		return nil
	}

	values, err := coerceFields(c.table, fields)
	if err != nil {
		return err
	}
	if nk, ok := values[c.key.Name]; ok && nk != k {
		return fmt.Errorf("%w: %s.%s %v -> %v", ErrKeyImmutable, c.table.Name, c.key.Name, k, nk)
	}

	maps.Copy(r.Current, values)
	if r.State == Unchanged {
		r.State = Modified
	}
	return nil
}

// Snapshot returns a copy of every cached row in cache order, rows pending
// deletion included. It reflects in-memory state, not the store.
func (c *Cache) Snapshot() []Row {
	out := make([]Row, len(c.rows))
	for i, r := range c.rows {
		out[i] = r.copy()
	}
	return out
}

func (c *Cache) normalizeKey(key any) (any, error) {
	k, err := coerce(c.key, key)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, fmt.Errorf("%w: null key for %s", ErrInvalidValue, c.table.Name)
	}
	return k, nil
}

func (c *Cache) append(r *Row) {
	c.rows = append(c.rows, r)
	c.index[r.Key] = r
}

// pending returns the rows awaiting reconciliation, in cache order.
func (c *Cache) pending() []*Row {
	var out []*Row
	for _, r := range c.rows {
		if r.State != Unchanged {
			out = append(out, r)
		}
	}
	return out
}

// accept records that the store now holds the row's current values.
func (c *Cache) accept(r *Row) {
	r.Original = maps.Clone(r.Current)
	r.State = Unchanged
}

// remove unindexes a row; compact drops unindexed rows from the ordered slice.
func (c *Cache) remove(key any) {
	delete(c.index, key)
}

func (c *Cache) compact() {
	kept := c.rows[:0]
	for _, r := range c.rows {
		if live, ok := c.index[r.Key]; ok && live == r {
			kept = append(kept, r)
		}
	}
	clear(c.rows[len(kept):])
	c.rows = kept
}

// ParsePatch builds a field patch from a semicolon separated list of columns
// and the matching list of values, e.g. ParsePatch("city;phone", "Gent;555").
func ParsePatch(fields, values string) (map[string]any, error) {
	names := strings.Split(fields, ";")
	vals := strings.Split(values, ";")
	if len(names) != len(vals) {
		return nil, fmt.Errorf("%w: %d fields but %d values", ErrInvalidValue, len(names), len(vals))
	}

	patch := make(map[string]any, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty field name at position %d", ErrUnknownColumn, i)
		}
		patch[name] = vals[i]
	}
	return patch, nil
}
