package msgpack

import (
	"reflect"
	"sync"
	"unsafe"
)

// stringDataPointer returns the address of s's backing bytes, used as an
// identity key for shared-string dedup (spec.md §4.6 scenario: "two
// fields of the same object referencing the identical string instance").
// The teacher's own xlang tests (fory_xlang_test.go) reach for unsafe to
// inspect buffer internals directly; this follows the same idiom.
func stringDataPointer(s string) uintptr {
	return uintptr(unsafe.Pointer(unsafe.StringData(s)))
}

// refTracker is spec.md §3's RefTracker: a bidirectional mapping between
// object identity and a sequence number, scoped to one top-level
// operation. The write side keys on a Go-level identity (pointer, map,
// slice header, or interned string data pointer); the read side simply
// appends decoded values in sequence-number order.
type refTracker struct {
	writeSeen map[uintptr]int32
	readSeen  []reflect.Value
}

func newRefTracker() *refTracker {
	return &refTracker{writeSeen: make(map[uintptr]int32)}
}

func (t *refTracker) reset() {
	for k := range t.writeSeen {
		delete(t.writeSeen, k)
	}
	t.readSeen = t.readSeen[:0]
}

func (t *refTracker) trackWrite(key uintptr) (seq int32, isNew bool) {
	if seq, ok := t.writeSeen[key]; ok {
		return seq, false
	}
	seq = int32(len(t.writeSeen))
	t.writeSeen[key] = seq
	return seq, true
}

func (t *refTracker) reserve() int32 {
	t.readSeen = append(t.readSeen, reflect.Value{})
	return int32(len(t.readSeen) - 1)
}

func (t *refTracker) record(seq int32, v reflect.Value) {
	t.readSeen[seq] = v
}

func (t *refTracker) resolve(seq int32) (reflect.Value, bool) {
	if seq < 0 || int(seq) >= len(t.readSeen) {
		return reflect.Value{}, false
	}
	v := t.readSeen[seq]
	return v, v.IsValid()
}

// refTrackerPool is spec.md §3/§5's process-wide-per-serializer pool: "a
// depleted pool allocates a fresh instance rather than blocking". A
// sync.Pool already has exactly that behavior, so it is used as-is
// rather than hand-rolling a bounded stack.
type refTrackerPool struct {
	pool sync.Pool
}

func newRefTrackerPool() *refTrackerPool {
	return &refTrackerPool{pool: sync.Pool{New: func() interface{} { return newRefTracker() }}}
}

func (p *refTrackerPool) get() *refTracker {
	return p.pool.Get().(*refTracker)
}

// put returns tracker to the pool. Every exit path from a top-level
// Marshal/Unmarshal call reaches this via defer, satisfying spec.md §3's
// "on any exit path ... a borrowed RefTracker is returned to its pool
// exactly once" invariant.
func (p *refTrackerPool) put(t *refTracker) {
	t.reset()
	p.pool.Put(t)
}

// identityKey returns a Go-level identity for v and whether v's kind
// carries a meaningful notion of shared identity at all. Value kinds
// with no backing allocation (bool, numeric) are never trackable; Go's
// own type system mostly prevents non-pointer cycles, so only Ptr/Map/
// Slice/Chan/Func and (via its backing array pointer) String participate.
func identityKey(v reflect.Value) (uintptr, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return 0, false
		}
		return v.Pointer(), true
	case reflect.Slice:
		if v.IsNil() {
			return 0, false
		}
		return v.Pointer(), true
	case reflect.String:
		if v.Len() == 0 {
			return 0, false
		}
		return stringDataPointer(v.String()), true
	default:
		return 0, false
	}
}

func putVarUint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func takeVarUint(p []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, b := range p {
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return v, len(p)
}

// referenceWrapper is the interposer of spec.md §4.6: when reference
// preservation is enabled, it wraps every converter uniformly. With
// tracking disabled, Serializer.wrapForReferences returns the inner
// converter unmodified so the hot path never pays a conditional
// (spec.md §9 "Reference preservation as an interposer").
type referenceWrapper struct {
	inner Converter
}

func (s *Serializer) wrapForReferences(c Converter) Converter {
	if !s.config.PreserveReferences {
		return c
	}
	return &referenceWrapper{inner: c}
}

func (w *referenceWrapper) PreferAsync() bool { return w.inner.PreferAsync() }

func (w *referenceWrapper) Write(ctx *WriteContext, wr *Writer, v reflect.Value) error {
	if ctx.refs == nil {
		return w.inner.Write(ctx, wr, v)
	}
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return w.inner.Write(ctx, wr, v)
	}
	key, trackable := identityKey(v)
	if !trackable {
		return w.inner.Write(ctx, wr, v)
	}
	seq, isNew := ctx.refs.trackWrite(key)
	if !isNew {
		wr.WriteExt(extReference, putVarUint(nil, uint64(seq)))
		return nil
	}
	return w.inner.Write(ctx, wr, v)
}

func (w *referenceWrapper) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	if ctx.refs == nil {
		return w.inner.Read(ctx, r, target)
	}
	if isRef, seq, err := tryReadReferenceToken(r); err != nil {
		return err
	} else if isRef {
		resolved, ok := ctx.refs.resolve(seq)
		if !ok {
			return newErr(KindNotSupported, "reference to unknown sequence number %d", seq)
		}
		target.Set(resolved)
		return nil
	}

	if target.Kind() == reflect.Ptr {
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
		seq := ctx.refs.reserve()
		ctx.refs.record(seq, target)
		return w.inner.Read(ctx, r, target)
	}

	// Only the kinds identityKey considers trackable ever get a sequence
	// number assigned on the write side (see referenceWrapper.Write); a
	// struct, array, or primitive value must skip reserve/record entirely
	// here too, or the read-side sequence counter drifts out of step with
	// the write-side one the moment such a value sits inside a
	// reference-tracked graph.
	switch target.Kind() {
	case reflect.String:
		// A string has no children that could themselves consume a
		// sequence number mid-decode, so deciding after the fact (once
		// its length is known) still lands in the same relative order
		// the write side used; this is what lets an empty string, which
		// identityKey never tracks, correctly consume no sequence number
		// here either.
		if err := w.inner.Read(ctx, r, target); err != nil {
			return err
		}
		if target.Len() > 0 {
			seq := ctx.refs.reserve()
			ctx.refs.record(seq, target)
		}
		return nil
	case reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Slice:
		seq := ctx.refs.reserve()
		if err := w.inner.Read(ctx, r, target); err != nil {
			return err
		}
		ctx.refs.record(seq, target)
		return nil
	default:
		return w.inner.Read(ctx, r, target)
	}
}

// tryReadReferenceToken peeks the next token: if it is an
// ext{type=EXT_REFERENCE} token it is consumed and its sequence number
// returned; otherwise nothing is consumed.
func tryReadReferenceToken(r *Reader) (bool, int32, error) {
	buf := r.Buffer()
	if buf.Remaining() == 0 {
		return false, 0, nil
	}
	b := buf.PeekByte()
	if b != mpFixExt1 && b != mpFixExt2 && b != mpFixExt4 && b != mpExt8 && b != mpExt16 && b != mpExt32 {
		return false, 0, nil
	}
	mark := buf.ReaderIndex()
	typeCode, body, err := r.ReadExt()
	if err != nil {
		return false, 0, err
	}
	if typeCode != extReference {
		buf.SetReaderIndex(mark)
		return false, 0, nil
	}
	seq, _ := takeVarUint(body)
	return true, int32(seq), nil
}
