// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlitekit

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
)

// mapper walks struct fields using the same "db" tag rules as sqlx.
var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

var (
	timeType     = reflect.TypeOf(time.Time{})
	namedArgType = reflect.TypeOf(sql.NamedArg{})
	valuerType   = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Flatten turns call parameters into the positional list handed to the
// driver.
//
// Slices and arrays are flattened recursively. Structs contribute their
// exported field values in declaration order, with embedded structs inlined
// and fields tagged `db:"-"` left out. Maps contribute their values ordered
// by key. Pointers are followed and nil becomes a NULL parameter.
// []byte, time.Time, sql.NamedArg and driver.Valuer values are passed as is.
func Flatten(params ...any) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		out = appendFlat(out, reflect.ValueOf(p))
	}
	return out
}

func appendFlat(out []any, v reflect.Value) []any {
	if !v.IsValid() {
		return append(out, nil)
	}
	if isScalar(v.Type()) {
		return append(out, v.Interface())
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return append(out, nil)
		}
		return appendFlat(out, v.Elem())
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			out = appendFlat(out, v.Index(i))
		}
		return out
	case reflect.Map:
		for _, k := range sortedKeys(v) {
			out = appendFlat(out, v.MapIndex(k))
		}
		return out
	case reflect.Struct:
		return appendFields(out, v, mapper.TypeMap(v.Type()).Tree)
	}
	return append(out, v.Interface())
}

// appendFields appends the field values of struct v described by fi.
func appendFields(out []any, v reflect.Value, fi *reflectx.FieldInfo) []any {
	for _, child := range fi.Children {
		if child == nil {
			continue
		}
		fv := v.Field(child.Field.Index[0])
		if !child.Embedded || isScalar(fv.Type()) {
			if fv.CanInterface() {
				out = appendFlat(out, fv)
			}
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Struct {
			out = appendFields(out, fv, child)
		} else if fv.CanInterface() {
			out = appendFlat(out, fv)
		}
	}
	return out
}

// isScalar reports whether values of t are bound as a single parameter.
func isScalar(t reflect.Type) bool {
	switch {
	case t == timeType, t == namedArgType:
		return true
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return true
	case t.Kind() != reflect.Interface && t.Implements(valuerType):
		return true
	}
	return false
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch a.Kind() {
		case reflect.String:
			return a.String() < b.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return a.Int() < b.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return a.Uint() < b.Uint()
		case reflect.Float32, reflect.Float64:
			return a.Float() < b.Float()
		}
		return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
	})
	return keys
}
