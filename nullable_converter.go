package msgpack

import "reflect"

// nullableConverter wraps the converter for T in the conversion of *T,
// per spec.md §4.2's "optional/nullable shape wraps an inner converter";
// nil is written as mpNil and, on decode, short-circuits without ever
// invoking the inner converter (spec.md §4.2 "TryReadNil short-circuits").
//
// Read only allocates a fresh pointee when target doesn't already hold
// one: referenceWrapper (reference.go) may have pre-allocated the pointee
// itself, before recording its identity, so a self-referential graph
// resolves to the same pointer the tracker recorded rather than a later
// replacement.
type nullableConverter struct {
	elem Converter
}

func (c *nullableConverter) PreferAsync() bool { return c.elem.PreferAsync() }

func (c *nullableConverter) Write(ctx *WriteContext, w *Writer, v reflect.Value) error {
	if v.IsNil() {
		w.WriteNil()
		return nil
	}
	return c.elem.Write(ctx, w, v.Elem())
}

func (c *nullableConverter) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	if target.IsNil() {
		target.Set(reflect.New(target.Type().Elem()))
	}
	return c.elem.Read(ctx, r, target.Elem())
}
