package orderstore

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// dbTag is the parsed form of a `db:"name,key allownull ref=table.column"`
// struct tag.
type dbTag struct {
	name       string
	size       int
	isKey      bool
	allowNull  bool
	skip       bool
	references string
}

func parseDBTag(value string) (tag dbTag) {
	tagArr := strings.Split(value, ",")
	tag.name = strings.TrimSpace(tagArr[0])
	if tag.name == "-" {
		tag.skip = true
		return
	}

	if len(tagArr) < 2 {
		return
	}

	checkBool := func(key string, kv []string) bool {
		if !strings.EqualFold(strings.TrimSpace(kv[0]), key) {
			return false
		}
		if len(kv) > 1 {
			return !strings.EqualFold(strings.TrimSpace(kv[1]), "false")
		}
		return true
	}

	for _, opt := range strings.Fields(tagArr[1]) {
		kv := strings.SplitN(opt, "=", 2)
		switch {
		case checkBool("key", kv):
			tag.isKey = true
			tag.allowNull = false
		case checkBool("allownull", kv):
			tag.allowNull = !tag.isKey
		case strings.EqualFold(kv[0], "size") && len(kv) > 1:
			tag.size, _ = strconv.Atoi(kv[1])
		case strings.EqualFold(kv[0], "ref") && len(kv) > 1:
			tag.references = kv[1]
		}
	}

	return
}

// columnNameOf returns the column a struct field maps to. Untagged fields map
// to the lower camel case of the field name, which is how the classicmodels
// schema names its columns.
func columnNameOf(field reflect.StructField) (dbTag, bool) {
	if !field.IsExported() {
		return dbTag{}, false
	}

	raw, ok := field.Tag.Lookup("db")
	tag := parseDBTag(raw)
	if tag.skip {
		return tag, false
	}
	if !ok || tag.name == "" {
		tag.name = strcase.ToLowerCamel(field.Name)
	}
	return tag, true
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func Map[In any, Out any](list []In, mapFn func(val In) Out) []Out {
	var newSlice = make([]Out, len(list))
	for i, val := range list {
		newSlice[i] = mapFn(val)
	}

	return newSlice
}

func Filter[T any](slice []T, filterFunc func(val T) bool) []T {
	var newSlice []T
	for i, val := range slice {
		if filterFunc(val) {
			newSlice = append(newSlice, slice[i])
		}
	}

	return newSlice
}
