package orderstore

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	dateLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// coerce normalizes v to the Go representation of the column's logical type:
// int64 for integer, float64 for real and string for text. A nil value stays nil.
func coerce(col Column, v any) (any, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", ErrInvalidValue, col.Name, err)
		}
		v = dv
	}

	if v == nil {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch col.Type {
	case TypeInteger:
		out, err = toInt64(v)
	case TypeReal:
		out, err = toFloat64(v)
	case TypeText:
		out, err = toText(v)
	default:
		err = fmt.Errorf("unsupported column type %s", col.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: column %s: %v", ErrInvalidValue, col.Name, err)
	}
	return out, nil
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("%v is not an integer", f)
		}
		// 2^63 is the first float64 above math.MaxInt64.
		if f < math.MinInt64 || f >= 1<<63 {
			return 0, fmt.Errorf("%v overflows int64", f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("cannot use %T as integer", v)
}

func toFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, fmt.Errorf("cannot use %T as real", v)
}

func toText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case time.Time:
		return formatTime(t), nil
	case fmt.Stringer:
		return t.String(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	}
	return "", fmt.Errorf("cannot use %T as text", v)
}

// formatTime keeps dates as plain dates so that date columns round trip
// through every driver the same way.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format("2006-01-02 15:04:05")
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
}

// coerceFields normalizes a field bag against the table, rejecting columns the
// table does not have. The returned map is keyed by the table's column names.
func coerceFields(table TableDef, fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		col, ok := table.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table.Name, name)
		}
		if _, dup := out[col.Name]; dup {
			return nil, fmt.Errorf("%w: column %s given more than once", ErrInvalidValue, col.Name)
		}
		cv, err := coerce(col, v)
		if err != nil {
			return nil, err
		}
		if cv == nil && !col.AllowNull {
			return nil, fmt.Errorf("%w: column %s does not allow null", ErrInvalidValue, col.Name)
		}
		out[col.Name] = cv
	}
	return out, nil
}
