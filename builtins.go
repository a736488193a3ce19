package msgpack

import (
	"math/big"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// builtinConverter adapts a pair of closures to the Converter interface,
// the way the teacher's type.go registers primitive codecs as small
// function values rather than one struct type per kind.
type builtinConverter struct {
	write func(w *Writer, v reflect.Value) error
	read  func(r *Reader, target reflect.Value) error
}

func (c *builtinConverter) Write(ctx *WriteContext, w *Writer, v reflect.Value) error {
	return c.write(w, v)
}

func (c *builtinConverter) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	if err := rejectNil(r, target.Type()); err != nil {
		return err
	}
	return c.read(r, target)
}

func (c *builtinConverter) PreferAsync() bool { return false }

// registerBuiltins preloads the Registry with a Ready converter for every
// primitive-by-identity type spec.md §6.2 calls out by name, grounded on
// the teacher's typeResolver registering one entry per Go kind in type.go.
//
// Each entry is wrapped through s.wrapForReferences exactly once, here at
// publish time, rather than at every converterFor call site: a
// delayedConverter and the Ready converter it eventually resolves to must
// never both be reference-wrapped, or the second wrapper would see the
// first occurrence's identity already tracked and mistakenly emit a
// self-referential token for it (see reference.go).
func registerBuiltins(s *Serializer) {
	r := s.registry
	r.Preload(reflect.TypeOf(bool(false)), s.wrapForReferences(boolConverter))

	r.Preload(reflect.TypeOf(int(0)), s.wrapForReferences(intConverter))
	r.Preload(reflect.TypeOf(int8(0)), s.wrapForReferences(int8Converter))
	r.Preload(reflect.TypeOf(int16(0)), s.wrapForReferences(int16Converter))
	r.Preload(reflect.TypeOf(int32(0)), s.wrapForReferences(int32Converter))
	r.Preload(reflect.TypeOf(int64(0)), s.wrapForReferences(int64Converter))

	r.Preload(reflect.TypeOf(uint(0)), s.wrapForReferences(uintConverter))
	r.Preload(reflect.TypeOf(uint8(0)), s.wrapForReferences(uint8Converter))
	r.Preload(reflect.TypeOf(uint16(0)), s.wrapForReferences(uint16Converter))
	r.Preload(reflect.TypeOf(uint32(0)), s.wrapForReferences(uint32Converter))
	r.Preload(reflect.TypeOf(uint64(0)), s.wrapForReferences(uint64Converter))

	r.Preload(reflect.TypeOf(float32(0)), s.wrapForReferences(float32Converter))
	r.Preload(reflect.TypeOf(float64(0)), s.wrapForReferences(float64Converter))

	r.Preload(reflect.TypeOf(""), s.wrapForReferences(stringConverter))
	r.Preload(reflect.TypeOf([]byte(nil)), s.wrapForReferences(byteSliceConverter))

	r.Preload(reflect.TypeOf(decimal.Decimal{}), s.wrapForReferences(decimalConverter))
	r.Preload(reflect.TypeOf(time.Time{}), s.wrapForReferences(timeConverter))
	r.Preload(reflect.TypeOf(time.Duration(0)), s.wrapForReferences(durationConverter))
	r.Preload(reflect.TypeOf(uuid.UUID{}), s.wrapForReferences(uuidConverter))
	r.Preload(reflect.TypeOf(big.Int{}), s.wrapForReferences(bigIntConverter))
}

var boolConverter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error { w.WriteBool(v.Bool()); return nil },
	read: func(r *Reader, target reflect.Value) error {
		b, err := r.ReadBool()
		if err != nil {
			return err
		}
		target.SetBool(b)
		return nil
	},
}

func signedIntConverter() *builtinConverter {
	return &builtinConverter{
		write: func(w *Writer, v reflect.Value) error { w.WriteInt(v.Int()); return nil },
		read: func(r *Reader, target reflect.Value) error {
			i, err := r.ReadI64()
			if err != nil {
				return err
			}
			if target.OverflowInt(i) {
				return newErr(KindDecodeFormatError, "%d overflows %s", i, target.Type())
			}
			target.SetInt(i)
			return nil
		},
	}
}

func unsignedIntConverter() *builtinConverter {
	return &builtinConverter{
		write: func(w *Writer, v reflect.Value) error { w.WriteUint(v.Uint()); return nil },
		read: func(r *Reader, target reflect.Value) error {
			u, err := r.ReadU64()
			if err != nil {
				return err
			}
			if target.OverflowUint(u) {
				return newErr(KindDecodeFormatError, "%d overflows %s", u, target.Type())
			}
			target.SetUint(u)
			return nil
		},
	}
}

var (
	intConverter    = signedIntConverter()
	int8Converter   = signedIntConverter()
	int16Converter  = signedIntConverter()
	int32Converter  = signedIntConverter()
	int64Converter  = signedIntConverter()
	uintConverter   = unsignedIntConverter()
	uint8Converter  = unsignedIntConverter()
	uint16Converter = unsignedIntConverter()
	uint32Converter = unsignedIntConverter()
	uint64Converter = unsignedIntConverter()
)

var float32Converter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error { w.WriteFloat32(float32(v.Float())); return nil },
	read: func(r *Reader, target reflect.Value) error {
		f, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		target.SetFloat(float64(f))
		return nil
	},
}

var float64Converter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error { w.WriteFloat64(v.Float()); return nil },
	read: func(r *Reader, target reflect.Value) error {
		f, err := r.ReadFloat64()
		if err != nil {
			return err
		}
		target.SetFloat(f)
		return nil
	},
}

var stringConverter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error { w.WriteString(v.String()); return nil },
	read: func(r *Reader, target reflect.Value) error {
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		target.SetString(s)
		return nil
	},
}

// byteSliceConverter encodes []byte as MessagePack bin, per spec.md §4.4's
// "a slice of byte is written as bin, not array, regardless of dispatch
// policy" carve-out.
var byteSliceConverter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error { w.WriteBin(v.Bytes()); return nil },
	read: func(r *Reader, target reflect.Value) error {
		b, err := r.ReadBin()
		if err != nil {
			return err
		}
		target.SetBytes(append([]byte(nil), b...))
		return nil
	},
}

// decimalConverter encodes decimal.Decimal as its canonical string form
// (spec.md §6.2 "arbitrary-precision decimal is written as str"), grounded
// on shopspring/decimal's own String()/NewFromString round-trip contract.
var decimalConverter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error {
		d := v.Interface().(decimal.Decimal)
		w.WriteString(d.String())
		return nil
	},
	read: func(r *Reader, target reflect.Value) error {
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return wrapErr(KindDecodeFormatError, err, "invalid decimal %q", s)
		}
		target.Set(reflect.ValueOf(d))
		return nil
	},
}

// timeConverter encodes time.Time as ext{type=extTime, body=append(seconds
// int64, nanos int32)}, matching spec.md §6.2's "date/time is extension-
// typed" built-in.
var timeConverter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error {
		t := v.Interface().(time.Time).UTC()
		body := make([]byte, 12)
		putInt64(body[0:8], t.Unix())
		putInt32(body[8:12], int32(t.Nanosecond()))
		w.WriteExt(extTime, body)
		return nil
	},
	read: func(r *Reader, target reflect.Value) error {
		code, body, err := r.ReadExt()
		if err != nil {
			return err
		}
		if code != extTime || len(body) != 12 {
			return newErr(KindDecodeFormatError, "malformed time extension")
		}
		sec := takeInt64(body[0:8])
		nsec := takeInt32(body[8:12])
		target.Set(reflect.ValueOf(time.Unix(sec, int64(nsec)).UTC()))
		return nil
	},
}

var durationConverter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error {
		w.WriteExt(extDuration, putVarUint(nil, uint64(v.Int())))
		return nil
	},
	read: func(r *Reader, target reflect.Value) error {
		code, body, err := r.ReadExt()
		if err != nil {
			return err
		}
		if code != extDuration {
			return newErr(KindDecodeFormatError, "malformed duration extension")
		}
		n, _ := takeVarUint(body)
		target.SetInt(int64(n))
		return nil
	},
}

// uuidConverter encodes uuid.UUID as ext{type=extUUID, body=16 raw bytes},
// per spec.md §6.2's "GUID is extension-typed, fixed 16-byte body".
var uuidConverter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error {
		id := v.Interface().(uuid.UUID)
		w.WriteExt(extUUID, id[:])
		return nil
	},
	read: func(r *Reader, target reflect.Value) error {
		code, body, err := r.ReadExt()
		if err != nil {
			return err
		}
		if code != extUUID || len(body) != 16 {
			return newErr(KindDecodeFormatError, "malformed uuid extension")
		}
		id, err := uuid.FromBytes(body)
		if err != nil {
			return wrapErr(KindDecodeFormatError, err, "malformed uuid extension")
		}
		target.Set(reflect.ValueOf(id))
		return nil
	},
}

// bigIntConverter encodes math/big.Int as ext{type=extBigInt, body=sign
// byte followed by big-endian magnitude bytes}, per spec.md §6.2's
// "arbitrary-precision integer is extension-typed, binary-encoded"
// built-in. big.Int.Bytes() returns only the unsigned magnitude, so the
// sign has to travel alongside it as an explicit byte rather than folded
// into the magnitude encoding.
var bigIntConverter = &builtinConverter{
	write: func(w *Writer, v reflect.Value) error {
		n := v.Interface().(big.Int)
		sign := byte(1)
		if n.Sign() < 0 {
			sign = 0
		}
		body := append([]byte{sign}, n.Bytes()...)
		w.WriteExt(extBigInt, body)
		return nil
	},
	read: func(r *Reader, target reflect.Value) error {
		code, body, err := r.ReadExt()
		if err != nil {
			return err
		}
		if code != extBigInt || len(body) == 0 {
			return newErr(KindDecodeFormatError, "malformed big.Int extension")
		}
		n := new(big.Int).SetBytes(body[1:])
		if body[0] == 0 {
			n.Neg(n)
		}
		target.Set(reflect.ValueOf(*n))
		return nil
	},
}

func putInt64(dst []byte, v int64) {
	u := uint64(v)
	for i := 7; i >= 0; i-- {
		dst[i] = byte(u)
		u >>= 8
	}
}

func takeInt64(src []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u = u<<8 | uint64(src[i])
	}
	return int64(u)
}

func putInt32(dst []byte, v int32) {
	u := uint32(v)
	for i := 3; i >= 0; i-- {
		dst[i] = byte(u)
		u >>= 8
	}
}

func takeInt32(src []byte) int32 {
	var u uint32
	for i := 0; i < 4; i++ {
		u = u<<8 | uint32(src[i])
	}
	return int32(u)
}
