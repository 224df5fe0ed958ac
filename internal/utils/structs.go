package utils

import (
	"fmt"
	"reflect"
)

var ColumnTag = "db"

func StructTagValues(input any) []string {

	targetValue := reflect.ValueOf(input)
	if targetValue.Kind() == reflect.Ptr {
		targetValue = targetValue.Elem()
	}

	if targetValue.Kind() != reflect.Struct {
		panic("input must be a pointer to a struct or a struct")
	}

	targetType := targetValue.Type()

	result := make([]string, 0, targetValue.NumField())

	for i := 0; i < targetValue.NumField(); i++ {

		if targetType.Field(i).PkgPath != "" {
			continue
		}

		tagValue := targetType.Field(i).Tag.Get(ColumnTag)
		if tagValue == "" || tagValue == "-" {
			continue
		}

		result = append(result, tagValue)

	}

	return result

}

// StructToMap returns the ColumnTag columns of input keyed to their values,
// for squirrel SetMap.
func StructToMap(input any) map[string]any {
	targetValue := reflect.ValueOf(input)
	if targetValue.Kind() == reflect.Ptr {
		targetValue = targetValue.Elem()
	}

	if targetValue.Kind() != reflect.Struct {
		panic("input must be a pointer to a struct or a struct")
	}

	targetType := targetValue.Type()
	result := make(map[string]any, targetValue.NumField())

	for i := 0; i < targetValue.NumField(); i++ {
		if targetType.Field(i).PkgPath != "" {
			continue
		}

		tagValue := targetType.Field(i).Tag.Get(ColumnTag)
		if tagValue == "" || tagValue == "-" {
			continue
		}

		result[tagValue] = targetValue.Field(i).Interface()
	}

	return result
}

// TagPaths walks input and returns the dotted path of every leaf field
// carrying tag, keyed to its reflect.Kind. Nested structs contribute their
// own tag as a prefix, e.g. "symptoms.incontinence".
func TagPaths(input any, tag string) map[string]reflect.Kind {
	t := reflect.TypeOf(input)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		panic("input must be a pointer to a struct or a struct")
	}

	out := make(map[string]reflect.Kind)
	collectTagPaths(t, tag, "", out)
	return out
}

func collectTagPaths(t reflect.Type, tag, prefix string, out map[string]reflect.Kind) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}

		name := field.Tag.Get(tag)
		if name == "" || name == "-" {
			continue
		}

		path := name
		if prefix != "" {
			path = fmt.Sprintf("%s.%s", prefix, name)
		}

		if field.Type.Kind() == reflect.Struct {
			collectTagPaths(field.Type, tag, path, out)
			continue
		}

		out[path] = field.Type.Kind()
	}
}

// TagIndexes is TagPaths keyed to the reflect index sequence of each leaf,
// suitable for reflect.Value.FieldByIndex.
func TagIndexes(input any, tag string) map[string][]int {
	t := reflect.TypeOf(input)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		panic("input must be a pointer to a struct or a struct")
	}

	out := make(map[string][]int)
	collectTagIndexes(t, tag, "", nil, out)
	return out
}

func collectTagIndexes(t reflect.Type, tag, prefix string, index []int, out map[string][]int) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}

		name := field.Tag.Get(tag)
		if name == "" || name == "-" {
			continue
		}

		path := name
		if prefix != "" {
			path = fmt.Sprintf("%s.%s", prefix, name)
		}

		fieldIndex := append(append([]int(nil), index...), i)

		if field.Type.Kind() == reflect.Struct {
			collectTagIndexes(field.Type, tag, path, fieldIndex, out)
			continue
		}

		out[path] = fieldIndex
	}
}
