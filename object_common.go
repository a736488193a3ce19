package msgpack

import "reflect"

// objectField is one property of a synthesized object converter, built by
// the visitor (visitor.go) from a PropertyShape plus its resolved element
// Converter. Shared by the map-shaped and array-shaped object converters
// (spec.md §4.5).
type objectField struct {
	name          string
	nameHash      uint32
	fieldIndex    []int
	keyIndex      int // array-shaped path only
	converter     Converter
	nullable      bool
	suppressZero  bool // omit when zero-valued and config.SerializeDefaultValues is false
	ctorParamName string
}

func (f *objectField) get(v reflect.Value) reflect.Value {
	return v.FieldByIndex(f.fieldIndex)
}

func (f *objectField) isZero(v reflect.Value) bool {
	return v.FieldByIndex(f.fieldIndex).IsZero()
}

// constructorPlan carries the argument-state flow of spec.md §4.2/§4.5 for
// types implementing ArgumentStateConstructor: decode fills a scratch
// argument-state value's exported fields by case-insensitive name match,
// then FromArgumentState builds the real value.
type constructorPlan struct {
	stateType reflect.Type // may be a pointer type
	ctorType  reflect.Type // *T, implements ArgumentStateConstructor
	// stateFieldByLowerName maps the lowercased argument-state field name
	// to its field index, for case-insensitive matching against property
	// names during decode (spec.md §4.2's constructor-parameter match).
	stateFieldByLowerName map[string][]int
}
