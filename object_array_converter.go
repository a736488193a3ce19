package msgpack

import "reflect"

// objectArrayConverter is the array-shaped object converter of spec.md
// §4.5: properties carry an explicit Key(index) attribute instead of a
// name, and the wire form is a plain array of length max_index+1 with
// unused indexes written as nil. DESIGN.md records the resolved Open
// Question: encode never truncates trailing nils — the wire array is
// always exactly max_index+1 long, regardless of how many trailing
// properties happen to hold zero values.
type objectArrayConverter struct {
	byIndex   []*objectField // index i holds the property with KeyIndex i, or nil
	maxIndex  int
	ctor      *constructorPlan
	ctorBuild func(state reflect.Value) (reflect.Value, error)
}

func newObjectArrayConverter(fields []*objectField, ctor *constructorPlan, ctorBuild func(reflect.Value) (reflect.Value, error)) *objectArrayConverter {
	maxIndex := -1
	for _, f := range fields {
		if f.keyIndex > maxIndex {
			maxIndex = f.keyIndex
		}
	}
	byIndex := make([]*objectField, maxIndex+1)
	for _, f := range fields {
		byIndex[f.keyIndex] = f
	}
	return &objectArrayConverter{byIndex: byIndex, maxIndex: maxIndex, ctor: ctor, ctorBuild: ctorBuild}
}

func (c *objectArrayConverter) PreferAsync() bool { return false }

func (c *objectArrayConverter) Write(ctx *WriteContext, w *Writer, v reflect.Value) error {
	w.WriteArrayHeader(len(c.byIndex))
	for _, f := range c.byIndex {
		if f == nil {
			w.WriteNil()
			continue
		}
		childCtx, err := ctx.child()
		if err != nil {
			return err
		}
		if err := f.converter.Write(childCtx, w, f.get(v)); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectArrayConverter) Read(ctx *ReadContext, r *Reader, target reflect.Value) error {
	if err := rejectNil(r, target.Type()); err != nil {
		return err
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}

	if c.ctor == nil {
		for i := 0; i < int(n); i++ {
			if i >= len(c.byIndex) || c.byIndex[i] == nil {
				if err := r.SkipValue(); err != nil {
					return err
				}
				continue
			}
			f := c.byIndex[i]
			isNil, err := r.TryReadNil()
			if err != nil {
				return err
			}
			if isNil {
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
		if i >= len(c.byIndex) || c.byIndex[i] == nil {
			if err := r.SkipValue(); err != nil {
				return err
			}
			continue
		}
		f := c.byIndex[i]
		isNil, err := r.TryReadNil()
		if err != nil {
			return err
		}
		if isNil {
			continue
		}
		idx, ok := c.ctor.stateFieldByLowerName[toLowerASCII(f.ctorParamName)]
		if !ok {
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

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
