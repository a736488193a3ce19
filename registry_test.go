package msgpack

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestGetOrAddResolvesStructuralCycle exercises spec.md's step 2: a type
// already UnderConstruction on the SAME call chain (the visiting set) must
// get back a delayedConverter rather than blocking on its own slot, which
// would deadlock.
func TestGetOrAddResolvesStructuralCycle(t *testing.T) {
	r := newRegistry()
	nodeType := reflect.TypeOf(Node{})
	visiting := make(visitSet)

	var synth func() (Converter, error)
	synth = func() (Converter, error) {
		// Re-enter for the same type on the same call chain, as the
		// visitor would while walking Node.Next *Node.
		inner, err := r.GetOrAdd(nodeType, visiting, synth)
		require.NoError(t, err)
		_, isDelayed := inner.(*delayedConverter)
		require.True(t, isDelayed, "re-entrant lookup on the same chain must not block on its own slot")
		return &nullableConverter{elem: inner}, nil
	}

	conv, err := r.GetOrAdd(nodeType, visiting, synth)
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Empty(t, visiting, "visiting set must be cleared once synthesis completes")

	ready, ok := r.Lookup(nodeType)
	require.True(t, ok)
	require.Same(t, conv, ready)
}

// TestGetOrAddConcurrentConstructionBlocksRatherThanRaces exercises spec.md
// §5: two goroutines racing to build the same type from two independent
// call chains (distinct visitSets, as two concurrent top-level Marshal
// calls would produce) must have the second block on the first's slot
// instead of either treating it as a structural cycle or synthesizing
// twice.
func TestGetOrAddConcurrentConstructionBlocksRatherThanRaces(t *testing.T) {
	r := newRegistry()
	typ := reflect.TypeOf(Person{})

	var synthCount int32
	started := make(chan struct{})
	release := make(chan struct{})
	synth := func() (Converter, error) {
		atomic.AddInt32(&synthCount, 1)
		close(started)
		<-release
		return &builtinConverter{
			write: func(w *Writer, v reflect.Value) error { return nil },
			read:  func(r *Reader, target reflect.Value) error { return nil },
		}, nil
	}

	var wg sync.WaitGroup
	results := make([]Converter, 2)
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = r.GetOrAdd(typ, make(visitSet), synth)
	}()
	go func() {
		defer wg.Done()
		<-started // ensure the first goroutine is already UnderConstruction
		results[1], errs[1] = r.GetOrAdd(typ, make(visitSet), synth)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first goroutine never entered synth")
	}
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Same(t, results[0], results[1], "both callers must observe the same published converter")
	require.EqualValues(t, 1, atomic.LoadInt32(&synthCount), "construction must happen exactly once")
}
