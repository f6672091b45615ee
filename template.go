package orderstore

import (
	"fmt"
	"strings"
)

type StatementKind int

const (
	KindSelect StatementKind = iota
	KindInsert
	KindUpdate
	KindDelete
)

func (k StatementKind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("StatementKind(%d)", int(k))
	}
}

// ValueSource says which version of a row a parameter takes its value from.
type ValueSource int

const (
	Current ValueSource = iota
	Original
)

func (s ValueSource) String() string {
	if s == Original {
		return "original"
	}
	return "current"
}

type ParamBinding struct {
	Param  string
	Column string
	Source ValueSource
}

// CommandTemplate is a parameterized statement shape, built once per table
// and bound to a row's values for every execution.
type CommandTemplate struct {
	Kind     StatementKind
	Text     string
	Bindings []ParamBinding
}

// Args maps parameter names to bound values.
type Args map[string]any

// Bind resolves every binding against the current or original values of a row.
// Columns absent from the row bind as nil.
func (c CommandTemplate) Bind(current, original map[string]any) Args {
	args := make(Args, len(c.Bindings))
	for _, b := range c.Bindings {
		src := current
		if b.Source == Original {
			src = original
		}
		args[b.Param] = lookupFold(src, b.Column)
	}
	return args
}

// KeyBinding returns the binding the statement identifies its row by.
func (c CommandTemplate) KeyBinding(table TableDef) (ParamBinding, bool) {
	for _, b := range c.Bindings {
		if col, ok := table.Column(b.Column); ok && col.IsKey {
			return b, true
		}
	}
	return ParamBinding{}, false
}

// CommandSet holds the four templates of one table.
type CommandSet struct {
	Table  TableDef
	Select CommandTemplate
	Insert CommandTemplate
	Update CommandTemplate
	Delete CommandTemplate
}

// BuildCommands builds the select, insert, update and delete templates of a
// table with a single key column. Data columns always bind their current
// value. The key binds its current value for insert and delete, and its
// original value for update, so an update always targets the row as it was
// read from the store.
func BuildCommands(table TableDef, stmts TableStatements) (CommandSet, error) {
	if err := table.Validate(); err != nil {
		return CommandSet{}, err
	}
	key, err := table.KeyColumn()
	if err != nil {
		return CommandSet{}, err
	}

	data := dataBindings(table)
	return CommandSet{
		Table:  table,
		Select: selectCommand(stmts.Select),
		Insert: CommandTemplate{
			Kind:     KindInsert,
			Text:     stmts.Insert,
			Bindings: append(clone(data), binding(key, Current)),
		},
		Update: CommandTemplate{
			Kind:     KindUpdate,
			Text:     stmts.Update,
			Bindings: append(clone(data), binding(key, Original)),
		},
		Delete: CommandTemplate{
			Kind:     KindDelete,
			Text:     stmts.Delete,
			Bindings: []ParamBinding{binding(key, Current)},
		},
	}, nil
}

func selectCommand(text string) CommandTemplate {
	return CommandTemplate{Kind: KindSelect, Text: text}
}

// insertCommand builds an insert template for tables of any key shape, every
// column bound at its current value.
func insertCommand(table TableDef, text string) CommandTemplate {
	bindings := dataBindings(table)
	for _, key := range table.KeyColumns() {
		bindings = append(bindings, binding(key, Current))
	}
	return CommandTemplate{Kind: KindInsert, Text: text, Bindings: bindings}
}

func dataBindings(table TableDef) []ParamBinding {
	var out []ParamBinding
	for _, col := range table.Columns {
		if !col.IsKey {
			out = append(out, binding(col, Current))
		}
	}
	return out
}

func binding(col Column, src ValueSource) ParamBinding {
	return ParamBinding{Param: col.Name, Column: col.Name, Source: src}
}

func clone(b []ParamBinding) []ParamBinding {
	return append([]ParamBinding(nil), b...)
}

func lookupFold(m map[string]any, name string) any {
	if v, ok := m[name]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}
