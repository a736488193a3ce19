package msgpack

import (
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// converterSlot is the mutable slot behind an UnderConstruction registry
// entry (spec.md §3 Registry: "{ Placeholder, UnderConstruction(box),
// Ready(converter) }"). A delayedConverter holds a reference to one of
// these and blocks on it only when actually invoked at the value level,
// never during shape traversal.
type converterSlot struct {
	mu        sync.Mutex
	cond      *sync.Cond
	converter Converter
	err       error
	done      bool
}

func newConverterSlot() *converterSlot {
	s := &converterSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *converterSlot) await() (Converter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.done {
		s.cond.Wait()
	}
	return s.converter, s.err
}

func (s *converterSlot) fulfill(c Converter, err error) {
	s.mu.Lock()
	s.converter, s.err, s.done = c, err, true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Registry memoizes one Ready converter per (serializer, type), per
// spec.md §3/§4.3. A single Registry belongs to exactly one Serializer
// instance (spec.md "Lifecycle: Converters ... stored for the lifetime
// of the serializer instance").
type Registry struct {
	mu         sync.Mutex
	ready      map[reflect.Type]Converter
	inProgress map[reflect.Type]*converterSlot
	sf         singleflight.Group
}

func newRegistry() *Registry {
	return &Registry{
		ready:      make(map[reflect.Type]Converter),
		inProgress: make(map[reflect.Type]*converterSlot),
	}
}

// visitSet tracks, for a single root-type resolution call chain, which
// types are currently being synthesized higher up the SAME call stack.
// It is local to one Visitor instance (one call to Registry.GetOrAdd
// from outside the visitor) and must never be shared across goroutines;
// that is what lets steps 2 and 3 below distinguish "this is a structural cycle
// in the type graph I'm walking" from "another goroutine is concurrently
// building the same type" (spec.md §5).
type visitSet map[reflect.Type]*converterSlot

// GetOrAdd implements the three-step dispatch of spec.md §4.3:
//  1. Ready -> return it.
//  2. UnderConstruction and reachable from the current call stack
//     (present in visiting) -> return a delayed converter, never blocking.
//  3. UnderConstruction from a different call stack, or absent -> block
//     on the existing slot, or create one, synthesize, publish, and wake
//     waiters.
func (r *Registry) GetOrAdd(t reflect.Type, visiting visitSet, synth func() (Converter, error)) (Converter, error) {
	if slot, ok := visiting[t]; ok {
		return &delayedConverter{slot: slot}, nil
	}

	r.mu.Lock()
	if c, ok := r.ready[t]; ok {
		r.mu.Unlock()
		return c, nil
	}
	if slot, ok := r.inProgress[t]; ok {
		r.mu.Unlock()
		return slot.await()
	}
	slot := newConverterSlot()
	r.inProgress[t] = slot
	r.mu.Unlock()

	visiting[t] = slot
	result, err, _ := r.sf.Do(typeKey(t), func() (interface{}, error) {
		return synth()
	})
	delete(visiting, t)

	var conv Converter
	if err == nil {
		conv, _ = result.(Converter)
	}

	r.mu.Lock()
	delete(r.inProgress, t)
	if err == nil {
		r.ready[t] = conv
	}
	r.mu.Unlock()

	slot.fulfill(conv, err)
	return conv, err
}

// Lookup returns the Ready converter for t, if any, without triggering
// construction. The visitor does not call it: user-registered and
// built-in converters are found by GetOrAdd's Ready check.
func (r *Registry) Lookup(t reflect.Type) (Converter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.ready[t]
	return c, ok
}

// Preload publishes a converter as already Ready, used for user-supplied
// converters (spec.md §4.2 step 1) and built-ins that never need lazy
// construction.
func (r *Registry) Preload(t reflect.Type, c Converter) {
	r.mu.Lock()
	r.ready[t] = c
	r.mu.Unlock()
}

func typeKey(t reflect.Type) string {
	if pkg := t.PkgPath(); pkg != "" {
		return pkg + "." + t.String()
	}
	return t.String()
}
