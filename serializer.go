package msgpack

import (
	"context"
	"io"
	"reflect"
	"unicode"
)

// NamingPolicy controls how a Go struct field name is transformed into
// its serialized MessagePack map key (spec.md §6.4).
type NamingPolicy int

const (
	NamingIdentity NamingPolicy = iota
	NamingCamelCase
	NamingPascalCase
	NamingCustom
)

// MultiDimArrayFormat selects how multi-dimensional Go arrays are
// encoded (spec.md §6.3).
type MultiDimArrayFormat int

const (
	MultiDimNested MultiDimArrayFormat = iota
	MultiDimFlat
)

// ArgumentStateConstructor is the Go realization of spec.md §3's
// "constructor shape" for types that need non-default construction: a
// scratch argument-state value (one exported field per constructor
// parameter, matched by name during decode) materialized into the final
// value once all fields are populated. Implement on a pointer receiver
// of the target type.
type ArgumentStateConstructor interface {
	NewArgumentState() interface{}
	FromArgumentState(state interface{}) interface{}
}

// Config is spec.md §6.4's serializer configuration surface.
type Config struct {
	PreserveReferences          bool
	SerializeDefaultValues      bool
	MultiDimensionalArrayFormat MultiDimArrayFormat
	NamingPolicy                NamingPolicy
	CustomNaming                func(string) string
	MaxDepth                    int
	UnflushedBytesThreshold     int
}

func defaultConfig() Config {
	return Config{
		SerializeDefaultValues:      true,
		MultiDimensionalArrayFormat: MultiDimNested,
		NamingPolicy:                NamingIdentity,
		MaxDepth:                    64,
		UnflushedBytesThreshold:     65536,
	}
}

// Option configures a Serializer at construction time.
type Option func(*Config)

func WithPreserveReferences() Option   { return func(c *Config) { c.PreserveReferences = true } }
func WithoutDefaultValues() Option     { return func(c *Config) { c.SerializeDefaultValues = false } }
func WithMultiDimFlat() Option         { return func(c *Config) { c.MultiDimensionalArrayFormat = MultiDimFlat } }
func WithMaxDepth(d int) Option        { return func(c *Config) { c.MaxDepth = d } }
func WithFlushThreshold(n int) Option  { return func(c *Config) { c.UnflushedBytesThreshold = n } }
func WithNamingPolicy(p NamingPolicy) Option {
	return func(c *Config) { c.NamingPolicy = p }
}
func WithCustomNaming(f func(string) string) Option {
	return func(c *Config) { c.NamingPolicy = NamingCustom; c.CustomNaming = f }
}

// Serializer is the top-level façade described by spec.md §6.1/§6.4: it
// owns a Registry, a shape provider, the known-subtype table, and the
// optional reference-tracker pool. Grounded on the teacher's Fory struct
// (type.go / type_test.go: refResolver, referenceTracking, language,
// buffer fields on a long-lived instance).
type Serializer struct {
	config        Config
	registry      *Registry
	shapes        *shapeProvider
	refPool       *refTrackerPool
	knownSubTypes map[reflect.Type][]KnownSubType
}

// NewSerializer constructs a Serializer with the given options applied
// over spec.md §6.4's defaults.
func NewSerializer(opts ...Option) *Serializer {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	s := &Serializer{
		config:        cfg,
		registry:      newRegistry(),
		shapes:        newShapeProvider(),
		knownSubTypes: make(map[reflect.Type][]KnownSubType),
	}
	if cfg.PreserveReferences {
		s.refPool = newRefTrackerPool()
	}
	registerBuiltins(s)
	return s
}

// RegisterConverter installs a user-supplied converter for t, consulted
// by the visitor's dispatch-policy step 1 (spec.md §4.2) ahead of the
// built-in table and structural shape dispatch. Wrapped through
// wrapForReferences at registration, same as every built-in and
// synthesized converter (see registerBuiltins).
func (s *Serializer) RegisterConverter(t reflect.Type, c Converter) {
	s.registry.Preload(t, s.wrapForReferences(c))
}

// RegisterKnownSubType associates alias with subtype as a known subtype
// of base, per spec.md §4.2's KnownSubType attribute. subtype must be
// assignable to base (i.e. base is an interface subtype implements, or
// subtype embeds base) and alias/subtype must each be unique within
// base's registrations; a violation is returned by this call as a
// ShapeConstructionError and the registration is not recorded.
func (s *Serializer) RegisterKnownSubType(base reflect.Type, alias int32, subtype reflect.Type) error {
	if !subtype.AssignableTo(base) && !(base.Kind() == reflect.Struct && embeds(subtype, base)) {
		return newErr(KindShapeConstructionError, "%s is not a known subtype of %s", subtype, base)
	}
	for _, existing := range s.knownSubTypes[base] {
		if existing.Alias == alias {
			return newErr(KindShapeConstructionError, "duplicate known-subtype alias %d for %s", alias, base)
		}
		if existing.Type == subtype {
			return newErr(KindShapeConstructionError, "duplicate known subtype %s for %s", subtype, base)
		}
	}
	s.knownSubTypes[base] = append(s.knownSubTypes[base], KnownSubType{Alias: alias, Type: subtype})
	return nil
}

func embeds(derived, base reflect.Type) bool {
	for derived.Kind() == reflect.Ptr {
		derived = derived.Elem()
	}
	if derived.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < derived.NumField(); i++ {
		f := derived.Field(i)
		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if f.Anonymous && ft == base {
			return true
		}
	}
	return false
}

// getConverter is the single entry point through which every converter
// request — top-level or nested — flows, per spec.md §4.3.
func (s *Serializer) getConverter(t reflect.Type) (Converter, error) {
	v := &visitor{serializer: s, visiting: make(visitSet)}
	return v.converterFor(t)
}

// Marshal encodes v into a new MessagePack-encoded byte slice. v must
// not itself be a pointer to an interface (spec.md's tests exercise this
// restriction directly).
func (s *Serializer) Marshal(v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && rv.Elem().Kind() == reflect.Interface {
		return nil, newErr(KindNotSupported, "pointer to interface is not supported")
	}
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	conv, err := s.getConverter(rv.Type())
	if err != nil {
		return nil, err
	}
	w := NewWriter(0, nil)
	ctx := &WriteContext{MaxDepth: s.config.MaxDepth, UnflushedBytesThreshold: s.config.UnflushedBytesThreshold, owner: s}
	if s.refPool != nil {
		tracker := s.refPool.get()
		defer s.refPool.put(tracker)
		ctx.refs = tracker
	}
	if err := conv.Write(ctx, w, rv); err != nil {
		return nil, err
	}
	return w.Buffer().Bytes(), nil
}

// Unmarshal decodes MessagePack bytes into out, which must be a non-nil
// pointer.
func (s *Serializer) Unmarshal(data []byte, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return newErr(KindNotSupported, "Unmarshal target must be a non-nil pointer")
	}
	target := rv.Elem()
	conv, err := s.getConverter(target.Type())
	if err != nil {
		return err
	}
	r := NewReader(NewBuffer(data))
	ctx := &ReadContext{MaxDepth: s.config.MaxDepth, owner: s}
	if s.refPool != nil {
		tracker := s.refPool.get()
		defer s.refPool.put(tracker)
		ctx.refs = tracker
	}
	return conv.Read(ctx, r, target)
}

// MarshalAsync encodes v to dst using the async wire path of spec.md
// §4.7: a converter with a genuine AsyncConverter implementation is
// awaited directly, otherwise writeAsyncViaSync drives it synchronously
// between flush-policy checks.
func (s *Serializer) MarshalAsync(ctx context.Context, dst io.Writer, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && rv.Elem().Kind() == reflect.Interface {
		return newErr(KindNotSupported, "pointer to interface is not supported")
	}
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	conv, err := s.getConverter(rv.Type())
	if err != nil {
		return err
	}
	aw := NewAsyncWriter(dst, s.config.UnflushedBytesThreshold)
	wctx := &WriteContext{MaxDepth: s.config.MaxDepth, UnflushedBytesThreshold: s.config.UnflushedBytesThreshold, owner: s}
	if s.refPool != nil {
		tracker := s.refPool.get()
		defer s.refPool.put(tracker)
		wctx.refs = tracker
	}
	if ac, ok := conv.(AsyncConverter); ok {
		if err := ac.WriteAsync(ctx, wctx, aw, rv); err != nil {
			return err
		}
	} else if err := writeAsyncViaSync(ctx, wctx, aw, rv, conv); err != nil {
		return err
	}
	return aw.Finish()
}

// UnmarshalAsync decodes one MessagePack value streamed from src into
// out, per spec.md §4.7.
func (s *Serializer) UnmarshalAsync(ctx context.Context, src io.Reader, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return newErr(KindNotSupported, "UnmarshalAsync target must be a non-nil pointer")
	}
	target := rv.Elem()
	conv, err := s.getConverter(target.Type())
	if err != nil {
		return err
	}
	ar := NewAsyncReader(src)
	rctx := &ReadContext{MaxDepth: s.config.MaxDepth, owner: s}
	if s.refPool != nil {
		tracker := s.refPool.get()
		defer s.refPool.put(tracker)
		rctx.refs = tracker
	}
	if ac, ok := conv.(AsyncConverter); ok {
		return ac.ReadAsync(ctx, rctx, ar, target)
	}
	return readAsyncViaSync(ctx, rctx, ar, target, conv)
}

// serializedName applies the naming policy and any per-property override
// to a struct field's Go name, per spec.md §4.2's "Compute the serialized
// name" step.
func (s *Serializer) serializedName(ps PropertyShape) string {
	if ps.NameOverride != "" {
		return ps.NameOverride
	}
	switch s.config.NamingPolicy {
	case NamingCamelCase:
		return toCamelCase(ps.GoName)
	case NamingPascalCase:
		return ps.GoName
	case NamingCustom:
		if s.config.CustomNaming != nil {
			return s.config.CustomNaming(ps.GoName)
		}
		return ps.GoName
	default:
		return ps.GoName
	}
}

func toCamelCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
