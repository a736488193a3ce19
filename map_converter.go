package msgpack

import "reflect"

// mapConverter implements the Mutable construction strategy for Go maps
// (spec.md §4.4): allocate empty, decode a map header of n pairs, and add
// each pair as it is decoded.
type mapConverter struct {
	key  Converter
	elem Converter
}

func (c *mapConverter) PreferAsync() bool { return false }

func (c *mapConverter) Write(ctx *WriteContext, w *Writer, v reflect.Value) error {
	w.WriteMapHeader(v.Len())
	iter := v.MapRange()
	for iter.Next() {
		kCtx, err := ctx.child()
		if err != nil {
			return err
		}
		if err := c.key.Write(kCtx, w, iter.Key()); err != nil {
			return err
		}
		vCtx, err := ctx.child()
		if err != nil {
			return err
		}
		if err := c.elem.Write(vCtx, w, iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func (c *mapConverter) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	if err := rejectNil(r, target.Type()); err != nil {
		return err
	}
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	t := target.Type()
	out := reflect.MakeMapWithSize(t, int(n))
	for i := 0; i < int(n); i++ {
		kCtx, err := ctx.child()
		if err != nil {
			return err
		}
		key := reflect.New(t.Key()).Elem()
		if err := c.key.Read(kCtx, r, key); err != nil {
			return err
		}
		vCtx, err := ctx.child()
		if err != nil {
			return err
		}
		val := reflect.New(t.Elem()).Elem()
		if err := c.elem.Read(vCtx, r, val); err != nil {
			return err
		}
		out.SetMapIndex(key, val)
	}
	target.Set(out)
	return nil
}
