package msgpack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTripIntegers(t *testing.T) {
	cases := []int64{0, 1, -1, 127, -32, 128, -33, 255, -129, 65535, -32769,
		int64(1) << 40, -(int64(1) << 40)}
	for _, c := range cases {
		w := NewWriter(0, nil)
		w.WriteInt(c)
		r := NewReader(w.Buffer())
		got, err := r.ReadI64()
		require.NoError(t, err)
		require.Equal(t, c, got, "round-trip of %d", c)
	}
}

func TestWriterChoosesShortestIntWidth(t *testing.T) {
	w := NewWriter(0, nil)
	w.WriteInt(5)
	require.Equal(t, []byte{0x05}, w.Buffer().Bytes())

	w = NewWriter(0, nil)
	w.WriteInt(-1)
	require.Equal(t, []byte{0xff}, w.Buffer().Bytes())
}

func TestStringRoundTrip(t *testing.T) {
	w := NewWriter(0, nil)
	w.WriteString("hello, world")
	r := NewReader(w.Buffer())
	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello, world", s)
}

func TestBinRoundTrip(t *testing.T) {
	w := NewWriter(0, nil)
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	w.WriteBin(payload)
	r := NewReader(w.Buffer())
	got, err := r.ReadBin()
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestExtRoundTrip(t *testing.T) {
	w := NewWriter(0, nil)
	w.WriteExt(7, []byte{1, 2, 3, 4})
	r := NewReader(w.Buffer())
	code, body, err := r.ReadExt()
	require.NoError(t, err)
	require.EqualValues(t, 7, code)
	require.Equal(t, []byte{1, 2, 3, 4}, body)
}

func TestArrayAndMapHeaders(t *testing.T) {
	w := NewWriter(0, nil)
	w.WriteArrayHeader(3)
	w.WriteMapHeader(20)
	r := NewReader(w.Buffer())
	n, err := r.ReadArrayHeader()
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	m, err := r.ReadMapHeader()
	require.NoError(t, err)
	require.EqualValues(t, 20, m)
}

func TestTruncatedInputReportsTruncated(t *testing.T) {
	w := NewWriter(0, nil)
	w.WriteArrayHeader(1000)
	buf := NewBuffer(w.Buffer().Bytes()[:1])
	r := NewReader(buf)
	_, err := r.ReadArrayHeader()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTruncatedInput)
}

func TestReadNextStructureSkipsNested(t *testing.T) {
	w := NewWriter(0, nil)
	w.WriteMapHeader(2)
	w.WriteString("a")
	w.WriteInt(1)
	w.WriteString("b")
	w.WriteArrayHeader(2)
	w.WriteInt(2)
	w.WriteInt(3)
	w.WriteNil() // a second top-level value follows

	r := NewReader(w.Buffer())
	structure, err := r.ReadNextStructure()
	require.NoError(t, err)
	require.NotEmpty(t, structure)
	require.Less(t, r.buf.ReaderIndex(), w.Buffer().WriterIndex())

	isNil, err := r.TryReadNil()
	require.NoError(t, err)
	require.True(t, isNil)
}
