package msgpack

// Reader is the MessagePack token-level decoder of spec.md §4.1. Every
// read_* call advances the cursor past exactly one token; malformed
// input fails with DecodeFormatError, buffer exhaustion with
// TruncatedInput (spec.md §4.1 contract).
type Reader struct {
	buf *Buffer
}

func NewReader(buf *Buffer) *Reader { return &Reader{buf: buf} }

func (r *Reader) Buffer() *Buffer { return r.buf }

func (r *Reader) formatErr(format string, args ...interface{}) error {
	return wrapErr(KindDecodeFormatError, nil, format, args...)
}

func (r *Reader) need(n int) error { return r.buf.checkRemaining(n) }

// TryReadNil returns true and consumes the token iff the next token is nil.
func (r *Reader) TryReadNil() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	if r.buf.PeekByte() == mpNil {
		r.buf.ReadByte_()
		return true, nil
	}
	return false, nil
}

func (r *Reader) ReadBool() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	switch b := r.buf.ReadByte_(); b {
	case mpTrue:
		return true, nil
	case mpFalse:
		return false, nil
	default:
		return false, r.formatErr("expected bool, got format code 0x%x", b)
	}
}

// ReadI64 reads any MessagePack integer token (fixint, intN, uintN up to
// what fits in int64) as a signed value.
func (r *Reader) ReadI64() (int64, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf.PeekByte()
	switch {
	case b <= fixIntPositiveMax:
		r.buf.ReadByte_()
		return int64(b), nil
	case b >= 0xe0:
		r.buf.ReadByte_()
		return int64(int8(b)), nil
	}
	r.buf.ReadByte_()
	switch b {
	case mpInt8:
		if err := r.need(1); err != nil {
			return 0, err
		}
		return int64(r.buf.ReadInt8()), nil
	case mpInt16:
		if err := r.need(2); err != nil {
			return 0, err
		}
		return int64(r.buf.ReadInt16()), nil
	case mpInt32:
		if err := r.need(4); err != nil {
			return 0, err
		}
		return int64(r.buf.ReadInt32()), nil
	case mpInt64:
		if err := r.need(8); err != nil {
			return 0, err
		}
		return r.buf.ReadInt64(), nil
	case mpUint8:
		if err := r.need(1); err != nil {
			return 0, err
		}
		return int64(r.buf.ReadByte_()), nil
	case mpUint16:
		if err := r.need(2); err != nil {
			return 0, err
		}
		return int64(r.buf.ReadUint16()), nil
	case mpUint32:
		if err := r.need(4); err != nil {
			return 0, err
		}
		return int64(r.buf.ReadUint32()), nil
	case mpUint64:
		if err := r.need(8); err != nil {
			return 0, err
		}
		u := r.buf.ReadUint64()
		if int64(u) < 0 {
			return 0, r.formatErr("uint64 value %d overflows int64", u)
		}
		return int64(u), nil
	default:
		return 0, r.formatErr("expected integer, got format code 0x%x", b)
	}
}

// ReadU64 reads any MessagePack integer token as an unsigned value.
func (r *Reader) ReadU64() (uint64, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	if r.buf.PeekByte() == mpUint64 {
		if err := r.need(9); err != nil {
			return 0, err
		}
		r.buf.ReadByte_()
		return r.buf.ReadUint64(), nil
	}
	i, err := r.ReadI64()
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, r.formatErr("expected non-negative integer, got %d", i)
	}
	return uint64(i), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	switch b := r.buf.ReadByte_(); b {
	case mpFloat32:
		if err := r.need(4); err != nil {
			return 0, err
		}
		return r.buf.ReadFloat32(), nil
	case mpFloat64:
		if err := r.need(8); err != nil {
			return 0, err
		}
		return float32(r.buf.ReadFloat64()), nil
	default:
		return 0, r.formatErr("expected float, got format code 0x%x", b)
	}
}

func (r *Reader) ReadFloat64() (float64, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	switch b := r.buf.ReadByte_(); b {
	case mpFloat64:
		if err := r.need(8); err != nil {
			return 0, err
		}
		return r.buf.ReadFloat64(), nil
	case mpFloat32:
		if err := r.need(4); err != nil {
			return 0, err
		}
		return float64(r.buf.ReadFloat32()), nil
	default:
		return 0, r.formatErr("expected float, got format code 0x%x", b)
	}
}

func (r *Reader) readLen(b byte, c8, c16, c32 byte) (int, error) {
	switch {
	case b == c8:
		if err := r.need(1); err != nil {
			return 0, err
		}
		return int(r.buf.ReadByte_()), nil
	case b == c16:
		if err := r.need(2); err != nil {
			return 0, err
		}
		return int(r.buf.ReadUint16()), nil
	case b == c32:
		if err := r.need(4); err != nil {
			return 0, err
		}
		return int(r.buf.ReadUint32()), nil
	}
	return 0, r.formatErr("unexpected format code 0x%x", b)
}

// ReadString reads a str token and returns its decoded contents.
func (r *Reader) ReadString() (string, error) {
	if err := r.need(1); err != nil {
		return "", err
	}
	b := r.buf.ReadByte_()
	var n int
	var err error
	switch {
	case isFixStr(b):
		n = int(b &^ fixStrMask)
	case b == mpStr8 || b == mpStr16 || b == mpStr32:
		n, err = r.readLen(b, mpStr8, mpStr16, mpStr32)
	default:
		return "", r.formatErr("expected str, got format code 0x%x", b)
	}
	if err != nil {
		return "", err
	}
	if err := r.need(n); err != nil {
		return "", err
	}
	return string(r.buf.ReadBinary(n)), nil
}

// ReadBin reads a bin token and returns its raw bytes.
func (r *Reader) ReadBin() ([]byte, error) {
	if err := r.need(1); err != nil {
		return nil, err
	}
	b := r.buf.ReadByte_()
	if b != mpBin8 && b != mpBin16 && b != mpBin32 {
		return nil, r.formatErr("expected bin, got format code 0x%x", b)
	}
	n, err := r.readLen(b, mpBin8, mpBin16, mpBin32)
	if err != nil {
		return nil, err
	}
	if err := r.need(n); err != nil {
		return nil, err
	}
	return r.buf.ReadBinary(n), nil
}

// ReadExt reads an ext token, returning its type code and body.
func (r *Reader) ReadExt() (int8, []byte, error) {
	if err := r.need(1); err != nil {
		return 0, nil, err
	}
	b := r.buf.ReadByte_()
	var n int
	switch b {
	case mpFixExt1:
		n = 1
	case mpFixExt2:
		n = 2
	case mpFixExt4:
		n = 4
	case mpFixExt8:
		n = 8
	case mpFixExt16:
		n = 16
	case mpExt8:
		if err := r.need(1); err != nil {
			return 0, nil, err
		}
		n = int(r.buf.ReadByte_())
	case mpExt16:
		if err := r.need(2); err != nil {
			return 0, nil, err
		}
		n = int(r.buf.ReadUint16())
	case mpExt32:
		if err := r.need(4); err != nil {
			return 0, nil, err
		}
		n = int(r.buf.ReadUint32())
	default:
		return 0, nil, r.formatErr("expected ext, got format code 0x%x", b)
	}
	if err := r.need(1 + n); err != nil {
		return 0, nil, err
	}
	typeCode := int8(r.buf.ReadByte_())
	return typeCode, r.buf.ReadBinary(n), nil
}

func (r *Reader) ReadArrayHeader() (uint32, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf.ReadByte_()
	if isFixArr(b) {
		return uint32(b &^ fixArrMask), nil
	}
	if b != mpArr16 && b != mpArr32 {
		return 0, r.formatErr("expected array, got format code 0x%x", b)
	}
	n, err := r.readLen(b, 0, mpArr16, mpArr32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func (r *Reader) ReadMapHeader() (uint32, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf.ReadByte_()
	if isFixMap(b) {
		return uint32(b &^ fixMapMask), nil
	}
	if b != mpMap16 && b != mpMap32 {
		return 0, r.formatErr("expected map, got format code 0x%x", b)
	}
	n, err := r.readLen(b, 0, mpMap16, mpMap32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// TryReadArrayHeader peeks: if the next token is an array, it is consumed
// and (n, true) is returned; otherwise nothing is consumed.
func (r *Reader) TryReadArrayHeader() (uint32, bool, error) {
	if err := r.need(1); err != nil {
		return 0, false, err
	}
	b := r.buf.PeekByte()
	if isFixArr(b) || b == mpArr16 || b == mpArr32 {
		n, err := r.ReadArrayHeader()
		return n, true, err
	}
	return 0, false, nil
}

func (r *Reader) TryReadMapHeader() (uint32, bool, error) {
	if err := r.need(1); err != nil {
		return 0, false, err
	}
	b := r.buf.PeekByte()
	if isFixMap(b) || b == mpMap16 || b == mpMap32 {
		n, err := r.ReadMapHeader()
		return n, true, err
	}
	return 0, false, nil
}

// ReadNextStructure scans one complete top-level structure without
// decoding it, returning the raw byte range. Used by async converters to
// isolate a structure into a contiguous buffer before decoding it
// synchronously (spec.md §4.1, §4.7).
func (r *Reader) ReadNextStructure() ([]byte, error) {
	start := r.buf.ReaderIndex()
	if err := r.skipOne(); err != nil {
		return nil, err
	}
	return r.buf.GetByteSlice(start, r.buf.ReaderIndex()), nil
}

func (r *Reader) skipOne() error {
	if err := r.need(1); err != nil {
		return err
	}
	b := r.buf.PeekByte()
	switch {
	case isFixInt(b):
		r.buf.ReadByte_()
		return nil
	case isFixMap(b):
		n := int(b &^ fixMapMask)
		r.buf.ReadByte_()
		return r.skipN(n * 2)
	case isFixArr(b):
		n := int(b &^ fixArrMask)
		r.buf.ReadByte_()
		return r.skipN(n)
	case isFixStr(b):
		_, err := r.ReadString()
		return err
	}
	switch b {
	case mpNil, mpFalse, mpTrue:
		r.buf.ReadByte_()
		return nil
	case mpBin8, mpBin16, mpBin32:
		_, err := r.ReadBin()
		return err
	case mpExt8, mpExt16, mpExt32, mpFixExt1, mpFixExt2, mpFixExt4, mpFixExt8, mpFixExt16:
		_, _, err := r.ReadExt()
		return err
	case mpFloat32:
		_, err := r.ReadFloat32()
		return err
	case mpFloat64:
		_, err := r.ReadFloat64()
		return err
	case mpUint8, mpUint16, mpUint32, mpUint64, mpInt8, mpInt16, mpInt32, mpInt64:
		_, err := r.ReadI64()
		return err
	case mpStr8, mpStr16, mpStr32:
		_, err := r.ReadString()
		return err
	case mpArr16, mpArr32:
		n, err := r.ReadArrayHeader()
		if err != nil {
			return err
		}
		return r.skipN(int(n))
	case mpMap16, mpMap32:
		n, err := r.ReadMapHeader()
		if err != nil {
			return err
		}
		return r.skipN(int(n) * 2)
	default:
		return r.formatErr("unknown format code 0x%x", b)
	}
}

func (r *Reader) skipN(n int) error {
	for i := 0; i < n; i++ {
		if err := r.skipOne(); err != nil {
			return err
		}
	}
	return nil
}

// SkipValue skips exactly one top-level structure; used when a map key
// doesn't match any known property (spec.md §4.5).
func (r *Reader) SkipValue() error { return r.skipOne() }
