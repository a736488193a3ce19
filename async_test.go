package msgpack

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalAsyncRoundTrip(t *testing.T) {
	s := NewSerializer()
	var buf bytes.Buffer
	require.NoError(t, s.MarshalAsync(context.Background(), &buf, Person{Name: "Grace", Age: 85}))

	var out Person
	require.NoError(t, s.UnmarshalAsync(context.Background(), &buf, &out))
	require.Equal(t, Person{Name: "Grace", Age: 85}, out)
}

func TestMarshalAsyncRespectsCancelledContext(t *testing.T) {
	s := NewSerializer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := s.MarshalAsync(ctx, &buf, Person{Name: "x"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCancelled)
}

func TestUnmarshalAsyncRespectsCancelledContext(t *testing.T) {
	s := NewSerializer()
	var buf bytes.Buffer
	require.NoError(t, s.MarshalAsync(context.Background(), &buf, Person{Name: "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out Person
	err := s.UnmarshalAsync(ctx, &buf, &out)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCancelled)
}

// flushCountingWriter records how many times the underlying io.Writer was
// invoked, so a small UnflushedBytesThreshold can be observed triggering
// more frequent flushes than a large one.
type flushCountingWriter struct {
	buf    bytes.Buffer
	writes int
}

func (w *flushCountingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.buf.Write(p)
}

type bigPayload struct {
	Values []string
}

func TestSmallFlushThresholdFlushesMoreOften(t *testing.T) {
	values := make([]string, 200)
	for i := range values {
		values[i] = "a reasonably sized string value to pad out the payload"
	}
	payload := bigPayload{Values: values}

	small := &flushCountingWriter{}
	sSmall := NewSerializer(WithFlushThreshold(64))
	require.NoError(t, sSmall.MarshalAsync(context.Background(), small, payload))

	large := &flushCountingWriter{}
	sLarge := NewSerializer(WithFlushThreshold(1 << 20))
	require.NoError(t, sLarge.MarshalAsync(context.Background(), large, payload))

	require.Greater(t, small.writes, large.writes,
		"a small flush threshold should cause strictly more writes to the sink")
	require.Equal(t, small.buf.Bytes(), large.buf.Bytes(), "flush cadence must not change the encoded bytes")
}

func TestAsyncReaderSurvivesPartialReads(t *testing.T) {
	s := NewSerializer()
	var whole bytes.Buffer
	require.NoError(t, s.MarshalAsync(context.Background(), &whole, Person{Name: "Ada", Age: 36}))

	// a reader that trickles bytes one at a time, forcing AsyncReader.fill
	// to loop rather than getting everything in one Read call
	trickle := &driblet{data: whole.Bytes()}

	var out Person
	require.NoError(t, s.UnmarshalAsync(context.Background(), trickle, &out))
	require.Equal(t, Person{Name: "Ada", Age: 36}, out)
}

type driblet struct {
	data []byte
	pos  int
}

func (d *driblet) Read(p []byte) (int, error) {
	if d.pos >= len(d.data) {
		return 0, io.EOF
	}
	n := copy(p[:1], d.data[d.pos:])
	d.pos += n
	return n, nil
}
