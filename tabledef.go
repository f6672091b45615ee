package orderstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ColumnType is the logical type of a column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
)

func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

type Column struct {
	Name       string
	Type       ColumnType
	IsKey      bool
	AllowNull  bool
	Size       int    // Length bound of a text column, 0 for none.
	References string // Foreign key target as "table.column".
}

// TableDef is the logical schema of one table: its ordered columns and the
// column(s) forming its primary key.
type TableDef struct {
	Schema  string
	Name    string
	Columns []Column
}

func (t TableDef) FullTableName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

func (t TableDef) ColumnNames() []string {
	return Map(t.Columns, func(c Column) string { return c.Name })
}

// Column looks up a column by name, ignoring case.
func (t TableDef) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

func (t TableDef) KeyColumns() []Column {
	return Filter(t.Columns, func(c Column) bool { return c.IsKey })
}

// KeyColumn returns the single primary key column. Tables with a composite
// key fail with ErrSchemaMismatch.
func (t TableDef) KeyColumn() (Column, error) {
	keys := t.KeyColumns()
	if len(keys) != 1 {
		return Column{}, fmt.Errorf("%w: table %s has %d key columns, want 1", ErrSchemaMismatch, t.Name, len(keys))
	}
	return keys[0], nil
}

func (t TableDef) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: table name is empty", ErrSchemaMismatch)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %s has no columns", ErrSchemaMismatch, t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.ToUpper(c.Name)
		if c.Name == "" || seen[name] {
			return fmt.Errorf("%w: table %s has empty or duplicate column %q", ErrSchemaMismatch, t.Name, c.Name)
		}
		seen[name] = true
	}

	if len(t.KeyColumns()) == 0 {
		return fmt.Errorf("%w: table %s has no key column", ErrSchemaMismatch, t.Name)
	}
	return nil
}

// TableDefFromModel derives a TableDef from the `db` tags of a record struct.
func TableDefFromModel(name string, model any) (TableDef, error) {
	mtyp := indirectType(reflect.TypeOf(model))
	if mtyp.Kind() != reflect.Struct {
		return TableDef{}, fmt.Errorf("model for table %s must be a struct, got %s", name, mtyp.Kind())
	}

	var cols []Column
	for i := 0; i < mtyp.NumField(); i++ {
		field := mtyp.Field(i)
		tag, ok := columnNameOf(field)
		if !ok {
			continue
		}

		ctype, ok := columnTypeOf(field.Type)
		if !ok {
			return TableDef{}, fmt.Errorf("unknown column type for Go type %s in %s.%s", field.Type, mtyp.Name(), field.Name)
		}

		cols = append(cols, Column{
			Name:       tag.name,
			Type:       ctype,
			IsKey:      tag.isKey,
			AllowNull:  tag.allowNull,
			Size:       tag.size,
			References: tag.references,
		})
	}

	tb := TableDef{Name: name, Columns: cols}
	return tb, tb.Validate()
}

func columnTypeOf(typ reflect.Type) (ColumnType, bool) {
	typ = indirectType(typ)
	switch typ.Kind() {
	case reflect.String:
		return TypeText, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger, true
	case reflect.Float32, reflect.Float64:
		return TypeReal, true
	case reflect.Struct:
		switch typ.Name() {
		case "Time", "String", "NullString", "NullTime":
			return TypeText, true
		case "Int", "NullInt32", "NullInt64":
			return TypeInteger, true
		case "Float", "NullFloat64":
			return TypeReal, true
		}
	}
	return 0, false
}

// Catalog is the set of tables a Storage can address by name.
type Catalog struct {
	tables map[string]TableDef
}

func NewCatalog(defs ...TableDef) (Catalog, error) {
	c := Catalog{tables: make(map[string]TableDef, len(defs))}
	for _, tb := range defs {
		if err := tb.Validate(); err != nil {
			return Catalog{}, err
		}
		c.tables[strings.ToLower(tb.Name)] = tb
	}
	return c, nil
}

// ClassicModels returns the catalog of the customers / orders schema, derived
// from the record model.
func ClassicModels() Catalog {
	c, err := NewCatalog(
		mustTableDef(TableCustomers, Customer{}),
		mustTableDef(TableOrders, Order{}),
		mustTableDef(TableOrderDetails, OrderLine{}),
		mustTableDef(TableProducts, Product{}),
	)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Catalog) Table(name string) (TableDef, error) {
	tb, ok := c.tables[strings.ToLower(name)]
	if !ok {
		return TableDef{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return tb, nil
}

func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.tables))
	for _, tb := range c.tables {
		names = append(names, tb.Name)
	}
	sort.Strings(names)
	return names
}

func mustTableDef(name string, model any) TableDef {
	tb, err := TableDefFromModel(name, model)
	if err != nil {
		panic(err)
	}
	return tb
}
