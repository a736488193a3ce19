package msgpack

import (
	"reflect"
	"strings"
)

// visitor walks a TypeShape and synthesizes a Converter, per spec.md
// §4.2/§4.3. One visitor is created per top-level getConverter call
// (serializer.go); its visiting set is local to that call chain, which is
// what lets registry.go's GetOrAdd tell a structural cycle (same call
// chain revisits a type) apart from two different goroutines racing to
// build the same type concurrently (spec.md §5).
type visitor struct {
	serializer *Serializer
	visiting   visitSet
}

// converterFor is the single path every nested converter lookup goes
// through, whether requested from Marshal/Unmarshal directly or from
// inside another converter's synthesis.
func (v *visitor) converterFor(t reflect.Type) (Converter, error) {
	return v.serializer.registry.GetOrAdd(t, v.visiting, func() (Converter, error) {
		return v.synthesize(t)
	})
}

// synthesize only runs for types the registry hasn't already published —
// user-registered converters and the built-in table (registered via
// Registry.Preload) are found by GetOrAdd before this is ever called,
// which is what realizes dispatch-policy steps 1 and 2 of spec.md §4.2.
// Step 3, structural shape dispatch, happens here.
func (v *visitor) synthesize(t reflect.Type) (Converter, error) {
	shape := v.serializer.shapes.shapeOf(t)

	var conv Converter
	var err error

	switch shape.Kind {
	case ShapeNullable:
		conv, err = v.synthesizeNullable(shape)
	case ShapeEnum:
		conv = newEnumConverter(shape.EnumBase.Type)
	case ShapeEnumerable:
		conv, err = v.synthesizeEnumerable(t, shape)
	case ShapeDictionary:
		conv, err = v.synthesizeDictionary(shape)
	case ShapeObject:
		conv, err = v.synthesizeObject(t, shape)
	case ShapeUnion:
		conv, err = v.synthesizeUnion(t)
	default:
		return nil, newErr(KindNotSupported, "no converter available for %s", t)
	}
	if err != nil {
		return nil, err
	}
	return v.serializer.wrapForReferences(conv), nil
}

func (v *visitor) synthesizeNullable(shape *TypeShape) (Converter, error) {
	elemConv, err := v.converterFor(shape.Element.Type)
	if err != nil {
		return nil, err
	}
	return &nullableConverter{elem: elemConv}, nil
}

func (v *visitor) synthesizeEnumerable(t reflect.Type, shape *TypeShape) (Converter, error) {
	if shape.IsArray {
		if v.serializer.config.MultiDimensionalArrayFormat == MultiDimFlat {
			dims, leafType := multiDimArrayDims(t)
			if len(dims) > 1 {
				leafConv, err := v.converterFor(leafType)
				if err != nil {
					return nil, err
				}
				return &flatArrayConverter{leaf: leafConv, dims: dims}, nil
			}
		}
		elemConv, err := v.converterFor(shape.Element.Type)
		if err != nil {
			return nil, err
		}
		return &arrayConverter{elem: elemConv, length: shape.ArrayLen}, nil
	}
	elemConv, err := v.converterFor(shape.Element.Type)
	if err != nil {
		return nil, err
	}
	return &sliceConverter{elem: elemConv}, nil
}

func (v *visitor) synthesizeDictionary(shape *TypeShape) (Converter, error) {
	keyConv, err := v.converterFor(shape.Key.Type)
	if err != nil {
		return nil, err
	}
	elemConv, err := v.converterFor(shape.Element.Type)
	if err != nil {
		return nil, err
	}
	return &mapConverter{key: keyConv, elem: elemConv}, nil
}

// synthesizeObject builds either the map-shaped or array-shaped object
// converter, per spec.md §4.5. Mixing keyed and unkeyed properties on the
// same type is a fatal ShapeConstructionError (spec.md §4.8), raised here
// at first construction rather than silently picking one representation.
func (v *visitor) synthesizeObject(t reflect.Type, shape *TypeShape) (Converter, error) {
	fields := make([]*objectField, 0, len(shape.Properties))
	keyedCount, namedCount := 0, 0

	for _, ps := range shape.Properties {
		fieldConv, err := v.converterFor(ps.Type.Type)
		if err != nil {
			return nil, err
		}
		f := &objectField{
			name:          v.serializer.serializedName(ps),
			fieldIndex:    ps.FieldIndex,
			converter:     fieldConv,
			nullable:      ps.Nullable,
			suppressZero:  !v.serializer.config.SerializeDefaultValues,
			ctorParamName: ps.GoName,
		}
		if ps.KeyIndex != nil {
			f.keyIndex = *ps.KeyIndex
			keyedCount++
		} else {
			namedCount++
		}
		fields = append(fields, f)
	}
	if keyedCount > 0 && namedCount > 0 {
		return nil, newErr(KindShapeConstructionError, "%s mixes keyed and named properties", t)
	}

	var plan *constructorPlan
	var build func(reflect.Value) (reflect.Value, error)
	if shape.Constructor != nil && !shape.Constructor.IsDefault {
		p, b, err := v.buildConstructorPlan(t)
		if err != nil {
			return nil, err
		}
		plan, build = p, b
	}

	if keyedCount > 0 {
		return newObjectArrayConverter(fields, plan, build), nil
	}
	return newObjectMapConverter(fields, plan, build), nil
}

// buildConstructorPlan reflects over the argument-state sample value to
// build the case-insensitive name lookup used during decode, and a
// closure that performs the final FromArgumentState call once decode
// completes (spec.md §4.2/§4.5's non-default constructor flow).
func (v *visitor) buildConstructorPlan(t reflect.Type) (*constructorPlan, func(reflect.Value) (reflect.Value, error), error) {
	sampleIface := reflect.New(t).Interface().(ArgumentStateConstructor)
	stateSample := sampleIface.NewArgumentState()
	stateVal := reflect.ValueOf(stateSample)
	if stateVal.Kind() != reflect.Ptr {
		return nil, nil, newErr(KindShapeConstructionError, "%s.NewArgumentState must return a pointer", t)
	}
	stateElemType := stateVal.Type().Elem()

	byLower := make(map[string][]int, stateElemType.NumField())
	for i := 0; i < stateElemType.NumField(); i++ {
		f := stateElemType.Field(i)
		if f.PkgPath != "" {
			continue
		}
		byLower[strings.ToLower(f.Name)] = append([]int{}, f.Index...)
	}

	plan := &constructorPlan{
		stateType:             stateVal.Type(),
		ctorType:              reflect.PtrTo(t),
		stateFieldByLowerName: byLower,
	}
	build := func(state reflect.Value) (reflect.Value, error) {
		sample := reflect.New(t).Interface().(ArgumentStateConstructor)
		result := sample.FromArgumentState(state.Interface())
		rv := reflect.ValueOf(result)
		if rv.Type() == t {
			return rv, nil
		}
		if rv.Kind() == reflect.Ptr && rv.Type().Elem() == t {
			return rv.Elem(), nil
		}
		return reflect.Value{}, newErr(KindShapeConstructionError, "FromArgumentState returned incompatible type %s for %s", rv.Type(), t)
	}
	return plan, build, nil
}

// synthesizeUnion resolves the base/subtype group registered for
// interface type t via Serializer.RegisterKnownSubType. A base is
// typically a concrete struct that other structs embed to implicitly
// satisfy t (the Go idiom for shared-behavior inheritance); this walks
// the registration table for the one whose base is assignable to t.
func (v *visitor) synthesizeUnion(t reflect.Type) (Converter, error) {
	for base, subtypes := range v.serializer.knownSubTypes {
		if !base.AssignableTo(t) {
			continue
		}
		baseConv, err := v.converterFor(base)
		if err != nil {
			return nil, err
		}
		convForType := make(map[reflect.Type]Converter, len(subtypes))
		for _, st := range subtypes {
			sc, err := v.converterFor(st.Type)
			if err != nil {
				return nil, err
			}
			convForType[st.Type] = sc
		}
		return newUnionConverter(t, base, baseConv, subtypes, convForType), nil
	}
	return nil, newErr(KindShapeConstructionError, "no known subtypes registered for union type %s", t)
}
