package msgpack

import (
	"reflect"
	"strings"

	"github.com/spaolacci/murmur3"
)

// objectMapConverter is the map-shaped object converter of spec.md §4.5:
// each property is written as a name/value pair, property order on the
// wire doesn't matter on decode, and unrecognized keys are skipped.
// Property lookup on decode is span-keyed: property names are hashed once
// at synthesis time with murmur3, and an incoming wire key is hashed and
// probed against that table before falling back to an exact string
// compare (hash collisions are real, if rare, and must not misroute a
// field).
type objectMapConverter struct {
	fields   []*objectField
	byHash   map[uint32][]*objectField
	ctor     *constructorPlan // nil for the default-constructor path
	ctorBuild func(state reflect.Value) (reflect.Value, error)
}

func newObjectMapConverter(fields []*objectField, ctor *constructorPlan, ctorBuild func(reflect.Value) (reflect.Value, error)) *objectMapConverter {
	byHash := make(map[uint32][]*objectField, len(fields))
	for _, f := range fields {
		f.nameHash = murmur3.Sum32([]byte(f.name))
		byHash[f.nameHash] = append(byHash[f.nameHash], f)
	}
	return &objectMapConverter{fields: fields, byHash: byHash, ctor: ctor, ctorBuild: ctorBuild}
}

func (c *objectMapConverter) PreferAsync() bool { return false }

func (c *objectMapConverter) Write(ctx *WriteContext, w *Writer, v reflect.Value) error {
	count := 0
	for _, f := range c.fields {
		if f.suppressZero && f.isZero(v) {
			continue
		}
		count++
	}
	w.WriteMapHeader(count)
	for _, f := range c.fields {
		fv := f.get(v)
		if f.suppressZero && fv.IsZero() {
			continue
		}
		w.WriteString(f.name)
		childCtx, err := ctx.child()
		if err != nil {
			return err
		}
		if err := f.converter.Write(childCtx, w, fv); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectMapConverter) lookup(name string) *objectField {
	for _, f := range c.byHash[murmur3.Sum32([]byte(name))] {
		if f.name == name {
			return f
		}
	}
	return nil
}

func (c *objectMapConverter) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	if err := rejectNil(r, target.Type()); err != nil {
		return err
	}
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}

	if c.ctor == nil {
		for i := 0; i < int(n); i++ {
			key, err := r.ReadString()
			if err != nil {
				return err
			}
			f := c.lookup(key)
			if f == nil {
				if err := r.SkipValue(); err != nil {
					return err
				}
				continue
			}
			childCtx, err := ctx.child()
			if err != nil {
				return err
			}
			if err := f.converter.Read(childCtx, r, f.get(target)); err != nil {
				return err
			}
		}
		return nil
	}

	state := reflect.New(c.ctor.stateType.Elem())
	stateElem := state.Elem()
	for i := 0; i < int(n); i++ {
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		idx, ok := c.ctor.stateFieldByLowerName[strings.ToLower(key)]
		f := c.lookup(key)
		if !ok || f == nil {
			if err := r.SkipValue(); err != nil {
				return err
			}
			continue
		}
		childCtx, err := ctx.child()
		if err != nil {
			return err
		}
		if err := f.converter.Read(childCtx, r, stateElem.FieldByIndex(idx)); err != nil {
			return err
		}
	}
	result, err := c.ctorBuild(state)
	if err != nil {
		return err
	}
	target.Set(result)
	return nil
}
