package msgpack

import (
	"encoding/binary"
	"math"
)

// Buffer is a growable byte buffer with independent read and write
// cursors, modeled on the teacher's ByteBuffer (type.go / fory_xlang_test.go:
// NewByteBuffer, WriteBool/WriteInt32/..., ReadBool/ReadInt32/...,
// GetByteSlice, WriterIndex). Every write appends at writerIndex and
// advances it; every read consumes from readerIndex and advances it.
type Buffer struct {
	data        []byte
	readerIndex int
}

// NewBuffer wraps existing bytes for reading, or starts an empty buffer
// for writing when data is nil.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) WriterIndex() int { return len(b.data) }
func (b *Buffer) ReaderIndex() int { return b.readerIndex }
func (b *Buffer) SetReaderIndex(i int) { b.readerIndex = i }

// GetByteSlice returns the bytes in [start, end) without touching cursors.
func (b *Buffer) GetByteSlice(start, end int) []byte { return b.data[start:end] }

func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Remaining() int { return len(b.data) - b.readerIndex }

func (b *Buffer) grow(n int) []byte {
	start := len(b.data)
	b.data = append(b.data, make([]byte, n)...)
	return b.data[start : start+n]
}

func (b *Buffer) WriteByte_(v byte) { b.grow(1)[0] = v }

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteByte_(1)
	} else {
		b.WriteByte_(0)
	}
}

func (b *Buffer) WriteInt8(v int8) { b.WriteByte_(byte(v)) }

func (b *Buffer) WriteInt16(v int16) {
	binary.BigEndian.PutUint16(b.grow(2), uint16(v))
}

func (b *Buffer) WriteUint16(v uint16) {
	binary.BigEndian.PutUint16(b.grow(2), v)
}

func (b *Buffer) WriteInt32(v int32) {
	binary.BigEndian.PutUint32(b.grow(4), uint32(v))
}

func (b *Buffer) WriteUint32(v uint32) {
	binary.BigEndian.PutUint32(b.grow(4), v)
}

func (b *Buffer) WriteInt64(v int64) {
	binary.BigEndian.PutUint64(b.grow(8), uint64(v))
}

func (b *Buffer) WriteUint64(v uint64) {
	binary.BigEndian.PutUint64(b.grow(8), v)
}

func (b *Buffer) WriteFloat32(v float32) {
	binary.BigEndian.PutUint32(b.grow(4), math.Float32bits(v))
}

func (b *Buffer) WriteFloat64(v float64) {
	binary.BigEndian.PutUint64(b.grow(8), math.Float64bits(v))
}

func (b *Buffer) WriteBinary(p []byte) { copy(b.grow(len(p)), p) }

func (b *Buffer) checkRemaining(n int) error {
	if b.Remaining() < n {
		return wrapErr(KindTruncatedInput, nil, "need %d bytes, have %d", n, b.Remaining())
	}
	return nil
}

func (b *Buffer) ReadByte_() byte {
	v := b.data[b.readerIndex]
	b.readerIndex++
	return v
}

func (b *Buffer) PeekByte() byte { return b.data[b.readerIndex] }

func (b *Buffer) ReadBool() bool { return b.ReadByte_() != 0 }

func (b *Buffer) ReadInt8() int8 { return int8(b.ReadByte_()) }

func (b *Buffer) ReadInt16() int16 {
	v := int16(binary.BigEndian.Uint16(b.data[b.readerIndex:]))
	b.readerIndex += 2
	return v
}

func (b *Buffer) ReadUint16() uint16 {
	v := binary.BigEndian.Uint16(b.data[b.readerIndex:])
	b.readerIndex += 2
	return v
}

func (b *Buffer) ReadInt32() int32 {
	v := int32(binary.BigEndian.Uint32(b.data[b.readerIndex:]))
	b.readerIndex += 4
	return v
}

func (b *Buffer) ReadUint32() uint32 {
	v := binary.BigEndian.Uint32(b.data[b.readerIndex:])
	b.readerIndex += 4
	return v
}

func (b *Buffer) ReadInt64() int64 {
	v := int64(binary.BigEndian.Uint64(b.data[b.readerIndex:]))
	b.readerIndex += 8
	return v
}

func (b *Buffer) ReadUint64() uint64 {
	v := binary.BigEndian.Uint64(b.data[b.readerIndex:])
	b.readerIndex += 8
	return v
}

func (b *Buffer) ReadFloat32() float32 {
	return math.Float32frombits(b.ReadUint32())
}

func (b *Buffer) ReadFloat64() float64 {
	return math.Float64frombits(b.ReadUint64())
}

func (b *Buffer) ReadBinary(n int) []byte {
	v := b.data[b.readerIndex : b.readerIndex+n]
	b.readerIndex += n
	return v
}
