package msgpack

import "reflect"

// unionConverter implements spec.md §4.2's known-subtype polymorphic
// dispatch: the wire form is a 2-element array `[alias|nil, payload]`.
// alias is the registered KnownSubType alias when the concrete value is
// one of the subtypes registered via Serializer.RegisterKnownSubType;
// nil marks a payload that is the base type's own shape directly (a value
// whose concrete type is the base type itself, not one of its
// registered subtypes).
type unionConverter struct {
	ifaceType    reflect.Type
	baseType     reflect.Type
	baseConv     Converter
	aliasToType  map[int32]reflect.Type
	typeToAlias  map[reflect.Type]int32
	convForType  map[reflect.Type]Converter
}

func newUnionConverter(ifaceType, baseType reflect.Type, baseConv Converter, subtypes []KnownSubType, convForType map[reflect.Type]Converter) *unionConverter {
	u := &unionConverter{
		ifaceType:   ifaceType,
		baseType:    baseType,
		baseConv:    baseConv,
		aliasToType: make(map[int32]reflect.Type, len(subtypes)),
		typeToAlias: make(map[reflect.Type]int32, len(subtypes)),
		convForType: convForType,
	}
	for _, st := range subtypes {
		u.aliasToType[st.Alias] = st.Type
		u.typeToAlias[st.Type] = st.Alias
	}
	return u
}

func (c *unionConverter) PreferAsync() bool { return false }

func (c *unionConverter) Write(ctx *WriteContext, w *Writer, v reflect.Value) error {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			w.WriteNil()
			return nil
		}
		v = v.Elem()
	}
	ct := v.Type()

	w.WriteArrayHeader(2)
	childCtx, err := ctx.child()
	if err != nil {
		return err
	}

	if alias, ok := c.typeToAlias[ct]; ok {
		w.WriteInt(int64(alias))
		return c.convForType[ct].Write(childCtx, w, v)
	}
	if ct == c.baseType {
		w.WriteNil()
		return c.baseConv.Write(childCtx, w, v)
	}
	return newErr(KindShapeConstructionError, "%s is not a known subtype of %s", ct, c.baseType)
}

func (c *unionConverter) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	isNilValue, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNilValue {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	if n != 2 {
		return newErr(KindDecodeFormatError, "union payload must be a 2-element array, got %d", n)
	}

	isAliasNil, err := r.TryReadNil()
	if err != nil {
		return err
	}

	childCtx, err := ctx.child()
	if err != nil {
		return err
	}

	if isAliasNil {
		out := reflect.New(c.baseType).Elem()
		if err := c.baseConv.Read(childCtx, r, out); err != nil {
			return err
		}
		target.Set(out)
		return nil
	}

	alias, err := r.ReadI64()
	if err != nil {
		return err
	}
	subtype, ok := c.aliasToType[int32(alias)]
	if !ok {
		return newErr(KindDecodeFormatError, "unknown union alias %d", alias)
	}
	out := reflect.New(subtype).Elem()
	if err := c.convForType[subtype].Read(childCtx, r, out); err != nil {
		return err
	}
	target.Set(out)
	return nil
}
