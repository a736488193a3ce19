package msgpack

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ShapeKind is the variant tag of spec.md §3's TypeShape: "one of the
// variants {object, enumerable, dictionary, enum, nullable/optional,
// primitive-by-identity}".
type ShapeKind int

const (
	ShapeObject ShapeKind = iota
	ShapeEnumerable
	ShapeDictionary
	ShapeEnum
	ShapeNullable
	ShapePrimitive
	// ShapeUnion is a Go interface type whose concrete values are one of a
	// Serializer's registered KnownSubTypes (spec.md §4.2's polymorphic
	// dispatch). There is no Go-reflect-level shape information for which
	// concrete types satisfy an interface, so the visitor resolves this
	// kind's converter directly from Serializer.knownSubTypes rather than
	// from anything stored on the TypeShape itself.
	ShapeUnion
)

// ConstructionStrategy is spec.md §4.4's dispatch tag for how a
// collection is built on decode. Go's native slice/map types collapse
// most of the spec's four-strategy axis onto Span (preallocate a known
// length, fill by index) and Mutable (allocate empty, add incrementally);
// None and Enumerable remain for user types that can't expose either.
type ConstructionStrategy int

const (
	StrategyNone ConstructionStrategy = iota
	StrategyMutable
	StrategySpan
	StrategyEnumerable
)

// KnownSubType is one entry of spec.md §4.2's "KnownSubType(alias,
// subtype)" attribute, registered on a Serializer rather than read off a
// struct tag (Go struct tags can't reference a type value).
type KnownSubType struct {
	Alias int32
	Type  reflect.Type
}

// PropertyShape describes one struct field the way spec.md §3 describes
// a property shape: name, declared type shape, getter/setter presence
// and nullability, plus the bits the visitor needs to choose the keyed
// vs. named path.
type PropertyShape struct {
	GoName       string
	Name         string // serialized name before naming-policy transform
	NameOverride string
	FieldIndex   []int
	Type         *TypeShape
	Nullable     bool
	HasGetter    bool
	HasSetter    bool
	KeyIndex     *int
	Skip         bool
	HasDefault   bool
	DefaultTag   string
}

// ParameterShape mirrors spec.md §3's constructor-parameter shape.
type ParameterShape struct {
	Name       string
	Type       *TypeShape
	HasDefault bool
}

// ConstructorShape mirrors spec.md §3: a parameter-less default handle,
// or an argument-state pair for non-default construction (see
// ArgumentStateConstructor in serializer.go).
type ConstructorShape struct {
	IsDefault  bool
	Parameters []ParameterShape
}

// TypeShape is the structural description the visitor walks, standing
// in for the external shape-provider collaborator of spec.md §6.1.
type TypeShape struct {
	Type          reflect.Type
	Kind          ShapeKind
	Element       *TypeShape // enumerable element, nullable element, dictionary value
	Key           *TypeShape // dictionary key
	EnumBase      *TypeShape
	Properties    []PropertyShape
	Constructor   *ConstructorShape
	Strategy      ConstructionStrategy
	IsArray       bool // fixed-length Go array vs. slice
	ArrayLen      int
}

// shapeProvider builds and caches TypeShapes by reflect.Type, inserting
// a not-yet-filled shape into the cache before recursing into field/
// element types so self-referential and mutually recursive Go types
// (e.g. `type Node struct { Next *Node }`) don't loop forever while the
// shape itself is being computed (spec.md §9 "Open recursion at the type
// level" applies one level earlier than converter synthesis: shape
// description must also tolerate cycles).
type shapeProvider struct {
	mu    sync.Mutex
	cache map[reflect.Type]*TypeShape
}

func newShapeProvider() *shapeProvider {
	return &shapeProvider{cache: make(map[reflect.Type]*TypeShape)}
}

func (p *shapeProvider) shapeOf(t reflect.Type) *TypeShape {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shapeOfLocked(t)
}

func (p *shapeProvider) shapeOfLocked(t reflect.Type) *TypeShape {
	if s, ok := p.cache[t]; ok {
		return s
	}
	shape := &TypeShape{Type: t}
	p.cache[t] = shape
	p.fill(shape, t)
	return shape
}

func (p *shapeProvider) fill(shape *TypeShape, t reflect.Type) {
	switch t.Kind() {
	case reflect.Ptr:
		shape.Kind = ShapeNullable
		shape.Element = p.shapeOfLocked(t.Elem())

	case reflect.Slice:
		shape.Kind = ShapeEnumerable
		shape.Strategy = StrategySpan
		shape.Element = p.shapeOfLocked(t.Elem())

	case reflect.Array:
		shape.Kind = ShapeEnumerable
		shape.Strategy = StrategySpan
		shape.IsArray = true
		shape.ArrayLen = t.Len()
		shape.Element = p.shapeOfLocked(t.Elem())

	case reflect.Map:
		shape.Kind = ShapeDictionary
		shape.Strategy = StrategyMutable
		shape.Key = p.shapeOfLocked(t.Key())
		shape.Element = p.shapeOfLocked(t.Elem())

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if isNamedType(t) {
			shape.Kind = ShapeEnum
			shape.EnumBase = p.shapeOfLocked(basicTypeForKind(t.Kind()))
		} else {
			shape.Kind = ShapePrimitive
		}

	case reflect.Struct:
		shape.Kind = ShapeObject
		p.fillObject(shape, t)

	case reflect.Interface:
		shape.Kind = ShapeUnion

	default:
		shape.Kind = ShapePrimitive
	}
}

// isNamedType reports whether t is a defined (named) type rather than an
// unnamed basic type — Go's closest analogue to "this is an enum, not
// just an int" (spec.md §6's enum shape).
func isNamedType(t reflect.Type) bool {
	return t.Name() != "" && t.PkgPath() != ""
}

var basicTypeByKind = map[reflect.Kind]reflect.Type{
	reflect.Int:    reflect.TypeOf(int(0)),
	reflect.Int8:   reflect.TypeOf(int8(0)),
	reflect.Int16:  reflect.TypeOf(int16(0)),
	reflect.Int32:  reflect.TypeOf(int32(0)),
	reflect.Int64:  reflect.TypeOf(int64(0)),
	reflect.Uint:   reflect.TypeOf(uint(0)),
	reflect.Uint8:  reflect.TypeOf(uint8(0)),
	reflect.Uint16: reflect.TypeOf(uint16(0)),
	reflect.Uint32: reflect.TypeOf(uint32(0)),
	reflect.Uint64: reflect.TypeOf(uint64(0)),
}

func basicTypeForKind(k reflect.Kind) reflect.Type { return basicTypeByKind[k] }

func (p *shapeProvider) fillObject(shape *TypeShape, t reflect.Type) {
	props := make([]PropertyShape, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported: Go has no getter/setter to abstract over
			continue
		}
		ps := parseFieldTag(f)
		if ps.Skip {
			continue
		}
		ps.GoName = f.Name
		if ps.Name == "" {
			ps.Name = f.Name
		}
		ps.FieldIndex = append([]int{}, f.Index...)
		ps.Type = p.shapeOfLocked(f.Type)
		ps.Nullable = f.Type.Kind() == reflect.Ptr
		ps.HasGetter = true
		ps.HasSetter = true
		props = append(props, ps)
	}
	shape.Properties = props
	shape.Constructor = &ConstructorShape{IsDefault: true}

	if _, ok := argumentStateConstructorOf(t); ok {
		shape.Constructor = buildParameterizedConstructor(t, props)
	}
}

var argumentStateConstructorType = reflect.TypeOf((*ArgumentStateConstructor)(nil)).Elem()

// argumentStateConstructorOf reports whether *t implements
// ArgumentStateConstructor (see serializer.go), i.e. whether the
// non-default constructor flow of spec.md §4.2/§4.5 applies.
func argumentStateConstructorOf(t reflect.Type) (reflect.Type, bool) {
	pt := reflect.PtrTo(t)
	if pt.Implements(argumentStateConstructorType) {
		return pt, true
	}
	return nil, false
}

// buildParameterizedConstructor derives one ParameterShape per exported
// field of the sample argument-state value, matching spec.md §3's
// "argument-state constructor handle" — the scratch struct's field names
// are the constructor parameter names used for case-insensitive matching
// against properties (spec.md §4.2 "Find the matching constructor
// parameter by case-insensitive name match").
func buildParameterizedConstructor(t reflect.Type, props []PropertyShape) *ConstructorShape {
	sample := reflect.New(t).Interface().(ArgumentStateConstructor).NewArgumentState()
	st := reflect.TypeOf(sample)
	for st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	params := make([]ParameterShape, 0, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if f.PkgPath != "" {
			continue
		}
		params = append(params, ParameterShape{Name: f.Name})
	}
	return &ConstructorShape{IsDefault: false, Parameters: params}
}

// parseFieldTag reads the `msgpack:"..."` struct tag, Go's stand-in for
// spec.md §6.1's attribute provider (`KeyAttribute`, name override,
// `-` to skip). Grammar: comma-separated tokens; a bare token that isn't
// "-" is a name override; `key=N` sets the array-shaped key index.
func parseFieldTag(f reflect.StructField) PropertyShape {
	tag, ok := f.Tag.Lookup("msgpack")
	if !ok {
		return PropertyShape{}
	}
	parts := strings.Split(tag, ",")
	if len(parts) == 0 {
		return PropertyShape{}
	}
	var ps PropertyShape
	if parts[0] == "-" {
		ps.Skip = true
		return ps
	}
	if parts[0] != "" {
		ps.NameOverride = parts[0]
		ps.Name = parts[0]
	}
	for _, tok := range parts[1:] {
		switch {
		case strings.HasPrefix(tok, "key="):
			if n, err := strconv.Atoi(strings.TrimPrefix(tok, "key=")); err == nil {
				idx := n
				ps.KeyIndex = &idx
			}
		case strings.HasPrefix(tok, "default="):
			ps.HasDefault = true
			ps.DefaultTag = strings.TrimPrefix(tok, "default=")
		}
	}
	return ps
}
