package msgpack

import "reflect"

// sliceConverter implements the Span construction strategy for Go slices
// (spec.md §4.4): preallocate a slice of the decoded length, then fill by
// index. []byte is handled by byteSliceConverter in builtins.go and never
// reaches here — the visitor's dispatch-policy lookup finds it first.
type sliceConverter struct {
	elem Converter
}

func (c *sliceConverter) PreferAsync() bool { return false }

func (c *sliceConverter) Write(ctx *WriteContext, w *Writer, v reflect.Value) error {
	n := v.Len()
	w.WriteArrayHeader(n)
	for i := 0; i < n; i++ {
		childCtx, err := ctx.child()
		if err != nil {
			return err
		}
		if err := c.elem.Write(childCtx, w, v.Index(i)); err != nil {
			return err
		}
		// A Writer behind an AsyncWriter has a flushFn: hand it the
		// finished elements once the unflushed bytes pass the threshold.
		if w.flushFn != nil && w.IsTimeToFlush(ctx) {
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *sliceConverter) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	if err := rejectNil(r, target.Type()); err != nil {
		return err
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	out := reflect.MakeSlice(target.Type(), int(n), int(n))
	for i := 0; i < int(n); i++ {
		childCtx, err := ctx.child()
		if err != nil {
			return err
		}
		if err := c.elem.Read(childCtx, r, out.Index(i)); err != nil {
			return err
		}
	}
	target.Set(out)
	return nil
}
