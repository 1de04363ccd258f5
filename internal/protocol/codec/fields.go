package codec

import (
	"reflect"
	"strings"
	"sync"
)

type field struct {
	name      string
	index     []int
	omitEmpty bool
}

type structInfo struct {
	fields []field
	byName map[string]int
}

func (s *structInfo) lookup(name string) (field, bool) {
	if i, ok := s.byName[name]; ok {
		return s.fields[i], true
	}
	for _, f := range s.fields {
		if strings.EqualFold(f.name, name) {
			return f, true
		}
	}
	return field{}, false
}

var fieldCache sync.Map // map[reflect.Type]*structInfo

func cachedFields(t reflect.Type) *structInfo {
	if info, ok := fieldCache.Load(t); ok {
		return info.(*structInfo)
	}
	info, _ := fieldCache.LoadOrStore(t, buildFields(t))
	return info.(*structInfo)
}

// buildFields walks exported fields in declaration order, flattening
// embedded non-pointer structs. The first field claiming a name wins.
func buildFields(t reflect.Type) *structInfo {
	info := &structInfo{byName: make(map[string]int)}
	var walk func(t reflect.Type, index []int)
	walk = func(t reflect.Type, index []int) {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			tag := sf.Tag.Get("xmlrpc")
			if tag == "-" {
				continue
			}
			name, opts, _ := strings.Cut(tag, ",")
			idx := make([]int, len(index)+1)
			copy(idx, index)
			idx[len(index)] = i
			if sf.Anonymous && sf.Type.Kind() == reflect.Struct && name == "" {
				walk(sf.Type, idx)
				continue
			}
			if !sf.IsExported() {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			if _, dup := info.byName[name]; dup {
				continue
			}
			info.byName[name] = len(info.fields)
			info.fields = append(info.fields, field{
				name:      name,
				index:     idx,
				omitEmpty: opts == "omitempty",
			})
		}
	}
	walk(t, nil)
	return info
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
