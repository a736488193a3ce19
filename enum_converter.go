package msgpack

import "reflect"

// enumConverter serializes a named integer type (e.g. `type Color int`)
// as its underlying primitive's wire form, per spec.md §4.2's enum shape
// ("the same wire representation as its base type, with the name
// existing only in the host language's type system").
type enumConverter struct {
	signed bool
}

func (c *enumConverter) PreferAsync() bool { return false }

func (c *enumConverter) Write(ctx *WriteContext, w *Writer, v reflect.Value) error {
	if c.signed {
		w.WriteInt(v.Int())
	} else {
		w.WriteUint(v.Uint())
	}
	return nil
}

func (c *enumConverter) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	if err := rejectNil(r, target.Type()); err != nil {
		return err
	}
	if c.signed {
		i, err := r.ReadI64()
		if err != nil {
			return err
		}
		if target.OverflowInt(i) {
			return newErr(KindDecodeFormatError, "%d overflows %s", i, target.Type())
		}
		target.SetInt(i)
		return nil
	}
	u, err := r.ReadU64()
	if err != nil {
		return err
	}
	if target.OverflowUint(u) {
		return newErr(KindDecodeFormatError, "%d overflows %s", u, target.Type())
	}
	target.SetUint(u)
	return nil
}

func newEnumConverter(base reflect.Type) *enumConverter {
	switch base.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &enumConverter{signed: true}
	default:
		return &enumConverter{signed: false}
	}
}
