package msgpack

import (
	"context"
	"reflect"
)

// Converter is the pair of encode/decode routines for one type, per
// spec.md §3. It is non-generic and reflect.Value-based, mirroring the
// teacher's Serializer interface (type.go: typeToSerializers map[reflect.Type]Serializer).
// Converters are referentially immutable once published to the Registry
// and may be composed by reference (spec.md §3 Converter\<T> invariant).
type Converter interface {
	// Write encodes v (already indirected to a concrete, non-pointer
	// value where applicable) to w.
	Write(ctx *WriteContext, w *Writer, v reflect.Value) error
	// Read decodes into target, which must be addressable and settable.
	// Reading nil into a target whose type cannot represent absence
	// fails with UnexpectedNil (spec.md §4.8).
	Read(ctx *ReadContext, r *Reader, target reflect.Value) error
	// PreferAsync reports whether this converter has a genuine async
	// implementation worth awaiting directly, vs. one that would just
	// synchronously decode from a buffered whole-structure slice
	// (spec.md §4.7, §9 "Async boundary").
	PreferAsync() bool
}

// AsyncConverter is the optional async counterpart described in spec.md
// §3 ("plus optional async counterparts"). MarshalAsync/UnmarshalAsync
// (serializer.go) use it directly when the top-level converter implements
// it, instead of falling back to writeAsyncViaSync/readAsyncViaSync, and
// delayedConverter forwards to it. None of this package's aggregate
// converters implements it.
type AsyncConverter interface {
	WriteAsync(ctx context.Context, wctx *WriteContext, w *AsyncWriter, v reflect.Value) error
	ReadAsync(ctx context.Context, rctx *ReadContext, r *AsyncReader, target reflect.Value) error
}

// delayedConverter is the placeholder the Registry hands out while a
// type's real converter is still UnderConstruction (spec.md §4.3). It
// holds a reference to a *converterSlot and defers to the eventual Ready
// converter on first call, which breaks unbounded recursion during shape
// traversal for self-referential and mutually-recursive types.
type delayedConverter struct {
	slot *converterSlot
}

// resolve waits on the slot's condition variable keyed off its done flag
// (matching converterSlot.await), not off converter being non-nil — a
// synthesis failure still sets done with a nil converter, and a predicate
// that never becomes true after the one-time Broadcast would otherwise
// wait forever.
func (d *delayedConverter) resolve() (Converter, error) {
	d.slot.mu.Lock()
	defer d.slot.mu.Unlock()
	for !d.slot.done {
		d.slot.cond.Wait()
	}
	return d.slot.converter, d.slot.err
}

func (d *delayedConverter) Write(ctx *WriteContext, w *Writer, v reflect.Value) error {
	c, err := d.resolve()
	if err != nil {
		return err
	}
	return c.Write(ctx, w, v)
}

func (d *delayedConverter) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	c, err := d.resolve()
	if err != nil {
		return err
	}
	return c.Read(ctx, r, target)
}

func (d *delayedConverter) PreferAsync() bool {
	c, err := d.resolve()
	if err != nil {
		return false
	}
	return c.PreferAsync()
}

func (d *delayedConverter) WriteAsync(ctx context.Context, wctx *WriteContext, w *AsyncWriter, v reflect.Value) error {
	c, err := d.resolve()
	if err != nil {
		return err
	}
	if ac, ok := c.(AsyncConverter); ok {
		return ac.WriteAsync(ctx, wctx, w, v)
	}
	return writeAsyncViaSync(ctx, wctx, w, v, c)
}

func (d *delayedConverter) ReadAsync(ctx context.Context, rctx *ReadContext, r *AsyncReader, target reflect.Value) error {
	c, err := d.resolve()
	if err != nil {
		return err
	}
	if ac, ok := c.(AsyncConverter); ok {
		return ac.ReadAsync(ctx, rctx, r, target)
	}
	return readAsyncViaSync(ctx, rctx, r, target, c)
}
