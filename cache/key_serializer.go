package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator joins cache key segments.
const KeySeparator = "::"

// KeyPart is implemented by values that know their own stable cache key form,
// such as criteria.Criteria.
type KeyPart interface {
	CacheKeyPart() string
}

type defaultKeySerializer struct{}

// NewDefaultKeySerializer returns the reflection based KeySerializer. Maps are
// written with sorted keys and struct fields by name, so equal arguments give
// equal keys across processes. Functions and channels are keyed by address
// and are only stable within one process.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

func (s defaultKeySerializer) SerializeKey(method string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.value(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s defaultKeySerializer) value(v any) string {
	if v == nil {
		return "nil"
	}
	if kp, ok := v.(KeyPart); ok {
		return kp.CacheKeyPart()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.value(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		if b, ok := v.([]byte); ok {
			return "bytes:" + string(b)
		}
		return "slice" + s.elements(rv)
	case reflect.Array:
		return "array" + s.elements(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.mapValue(rv)
	case reflect.Struct:
		return s.structValue(rv)
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("%v", v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + rv.Type().String()
	}
	return "json:" + string(data)
}

func (s defaultKeySerializer) elements(rv reflect.Value) string {
	items := make([]string, rv.Len())
	for i := range items {
		items[i] = s.value(rv.Index(i).Interface())
	}
	return fmt.Sprintf("[%d]:{%s}", len(items), strings.Join(items, ","))
}

func (s defaultKeySerializer) mapValue(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.value(iter.Key().Interface())+"="+s.value(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func (s defaultKeySerializer) structValue(rv reflect.Value) string {
	rt := rv.Type()
	fields := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fields = append(fields, field.Name+":"+s.value(rv.Field(i).Interface()))
	}
	return "struct:{" + strings.Join(fields, ",") + "}"
}
