package msgpack

import "math"

// Writer is the MessagePack token-level encoder of spec.md §4.1: one
// method per wire token, shortest-width integer selection, and a flush
// hook. It owns a *Buffer as its backing store; converters must not
// assume any particular backing beyond this interface (spec.md §4.1).
type Writer struct {
	buf            *Buffer
	flushedUpTo    int
	flushThreshold int
	flushFn        func([]byte) error
}

// NewWriter builds a Writer over a fresh Buffer. Only the async path (see
// async.go) passes a flushFn; Marshal passes nil, which makes Flush a
// no-op. flushThreshold is stored but not read: IsTimeToFlush compares
// against the WriteContext's UnflushedBytesThreshold.
func NewWriter(flushThreshold int, flushFn func([]byte) error) *Writer {
	return &Writer{buf: NewBuffer(nil), flushThreshold: flushThreshold, flushFn: flushFn}
}

func (w *Writer) Buffer() *Buffer { return w.buf }

func (w *Writer) WriteNil() { w.buf.WriteByte_(mpNil) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte_(mpTrue)
	} else {
		w.buf.WriteByte_(mpFalse)
	}
}

// WriteInt writes the shortest MessagePack token that round-trips i,
// per spec.md §4.1 "Integer width selection is shortest that fits".
func (w *Writer) WriteInt(i int64) {
	switch {
	case i >= 0:
		w.WriteUint(uint64(i))
	case i < 0 && i >= fixIntNegativeMin:
		w.buf.WriteByte_(byte(i))
	case i >= math.MinInt8 && i <= math.MaxInt8:
		w.buf.WriteByte_(mpInt8)
		w.buf.WriteInt8(int8(i))
	case i >= math.MinInt16 && i <= math.MaxInt16:
		w.buf.WriteByte_(mpInt16)
		w.buf.WriteInt16(int16(i))
	case i >= math.MinInt32 && i <= math.MaxInt32:
		w.buf.WriteByte_(mpInt32)
		w.buf.WriteInt32(int32(i))
	default:
		w.buf.WriteByte_(mpInt64)
		w.buf.WriteInt64(i)
	}
}

// WriteUint writes the shortest unsigned token that round-trips u.
func (w *Writer) WriteUint(u uint64) {
	switch {
	case u <= fixIntPositiveMax:
		w.buf.WriteByte_(byte(u))
	case u <= math.MaxUint8:
		w.buf.WriteByte_(mpUint8)
		w.buf.WriteByte_(byte(u))
	case u <= math.MaxUint16:
		w.buf.WriteByte_(mpUint16)
		w.buf.WriteUint16(uint16(u))
	case u <= math.MaxUint32:
		w.buf.WriteByte_(mpUint32)
		w.buf.WriteUint32(uint32(u))
	default:
		w.buf.WriteByte_(mpUint64)
		w.buf.WriteUint64(u)
	}
}

func (w *Writer) WriteFloat32(f float32) {
	w.buf.WriteByte_(mpFloat32)
	w.buf.WriteFloat32(f)
}

func (w *Writer) WriteFloat64(f float64) {
	w.buf.WriteByte_(mpFloat64)
	w.buf.WriteFloat64(f)
}

// WriteStringHeader writes only the str header+length, per spec.md §4.1;
// callers append the UTF-8 bytes themselves via WriteRaw.
func (w *Writer) WriteStringHeader(n int) {
	switch {
	case n <= 31:
		w.buf.WriteByte_(byte(fixStrMask | n))
	case n <= math.MaxUint8:
		w.buf.WriteByte_(mpStr8)
		w.buf.WriteByte_(byte(n))
	case n <= math.MaxUint16:
		w.buf.WriteByte_(mpStr16)
		w.buf.WriteUint16(uint16(n))
	default:
		w.buf.WriteByte_(mpStr32)
		w.buf.WriteUint32(uint32(n))
	}
}

func (w *Writer) WriteString(s string) {
	w.WriteStringHeader(len(s))
	w.buf.WriteBinary([]byte(s))
}

func (w *Writer) WriteBinHeader(n int) {
	switch {
	case n <= math.MaxUint8:
		w.buf.WriteByte_(mpBin8)
		w.buf.WriteByte_(byte(n))
	case n <= math.MaxUint16:
		w.buf.WriteByte_(mpBin16)
		w.buf.WriteUint16(uint16(n))
	default:
		w.buf.WriteByte_(mpBin32)
		w.buf.WriteUint32(uint32(n))
	}
}

func (w *Writer) WriteBin(p []byte) {
	w.WriteBinHeader(len(p))
	w.buf.WriteBinary(p)
}

func (w *Writer) WriteExt(typeCode int8, body []byte) {
	n := len(body)
	switch n {
	case 1:
		w.buf.WriteByte_(mpFixExt1)
	case 2:
		w.buf.WriteByte_(mpFixExt2)
	case 4:
		w.buf.WriteByte_(mpFixExt4)
	case 8:
		w.buf.WriteByte_(mpFixExt8)
	case 16:
		w.buf.WriteByte_(mpFixExt16)
	default:
		switch {
		case n <= math.MaxUint8:
			w.buf.WriteByte_(mpExt8)
			w.buf.WriteByte_(byte(n))
		case n <= math.MaxUint16:
			w.buf.WriteByte_(mpExt16)
			w.buf.WriteUint16(uint16(n))
		default:
			w.buf.WriteByte_(mpExt32)
			w.buf.WriteUint32(uint32(n))
		}
	}
	w.buf.WriteByte_(byte(typeCode))
	w.buf.WriteBinary(body)
}

func (w *Writer) WriteArrayHeader(n int) {
	switch {
	case n <= 15:
		w.buf.WriteByte_(byte(fixArrMask | n))
	case n <= math.MaxUint16:
		w.buf.WriteByte_(mpArr16)
		w.buf.WriteUint16(uint16(n))
	default:
		w.buf.WriteByte_(mpArr32)
		w.buf.WriteUint32(uint32(n))
	}
}

func (w *Writer) WriteMapHeader(n int) {
	switch {
	case n <= 15:
		w.buf.WriteByte_(byte(fixMapMask | n))
	case n <= math.MaxUint16:
		w.buf.WriteByte_(mpMap16)
		w.buf.WriteUint16(uint16(n))
	default:
		w.buf.WriteByte_(mpMap32)
		w.buf.WriteUint32(uint32(n))
	}
}

// WriteRaw appends pre-encoded bytes directly. The object converters do
// not use it: objectMapConverter writes each property name with
// WriteString on every call, and no pre-encoded name bytes are cached.
func (w *Writer) WriteRaw(p []byte) { w.buf.WriteBinary(p) }

// Flush hands everything written since the last Flush to flushFn, if
// any, and advances the flushed cursor used by IsTimeToFlush. It is
// called by AsyncWriter (async.go) and, for a Writer with a flushFn, by
// sliceConverter.Write between elements. Tracking a
// cursor into buf rather than a running byte count means every Write*
// call automatically counts towards the next flush, with no separate
// bookkeeping call required at each call site.
func (w *Writer) Flush() error {
	if w.flushFn == nil {
		return nil
	}
	pending := w.buf.Bytes()[w.flushedUpTo:]
	if len(pending) == 0 {
		return nil
	}
	if err := w.flushFn(pending); err != nil {
		return err
	}
	w.flushedUpTo = w.buf.WriterIndex()
	return nil
}

func (w *Writer) unflushedBytes() int { return w.buf.WriterIndex() - w.flushedUpTo }

// IsTimeToFlush implements spec.md §4.7's flush-thresholding policy.
func (w *Writer) IsTimeToFlush(ctx *WriteContext) bool {
	return w.unflushedBytes() > ctx.UnflushedBytesThreshold
}
