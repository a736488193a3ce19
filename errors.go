package msgpack

import (
	"fmt"
	"reflect"
)

// Kind classifies a SerializationError the way the wire and visitor
// layers need to distinguish failures without stringly-typed checks.
type Kind int

const (
	// KindDecodeFormatError means the input bytes are not valid
	// MessagePack, or the format code disagrees with the target type.
	KindDecodeFormatError Kind = iota + 1
	// KindTruncatedInput means the reader ran out of buffer mid-token.
	// The async reader waits for more input instead, and returns this
	// only when its source fails or ends mid-structure.
	KindTruncatedInput
	// KindUnexpectedNil means a nil token was read where a non-optional
	// value of TypeName was required.
	KindUnexpectedNil
	// KindDepthExceeded means ctx.MaxDepth went negative in depthStep.
	KindDepthExceeded
	// KindShapeConstructionError means converter synthesis hit an
	// ill-formed shape (mixed key attributes, duplicate alias, missing
	// argument-state constructor, ...). Fatal: never produces a Ready
	// converter.
	KindShapeConstructionError
	// KindNotSupported means a read was attempted into a non-constructible
	// collection, or a reference pointed at an unknown sequence number.
	KindNotSupported
	// KindCancelled means an async operation's context was cancelled.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindDecodeFormatError:
		return "DecodeFormatError"
	case KindTruncatedInput:
		return "TruncatedInput"
	case KindUnexpectedNil:
		return "UnexpectedNil"
	case KindDepthExceeded:
		return "DepthExceeded"
	case KindShapeConstructionError:
		return "ShapeConstructionError"
	case KindNotSupported:
		return "NotSupported"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// SerializationError is the single error type surfaced by this package,
// tagged with a Kind so callers can branch with errors.Is/As instead of
// string matching.
type SerializationError struct {
	Kind    Kind
	Message string
	TypeName string
	cause   error
}

func (e *SerializationError) Error() string {
	if e.TypeName != "" {
		return fmt.Sprintf("msgpack: %s: %s (type %s)", e.Kind, e.Message, e.TypeName)
	}
	return fmt.Sprintf("msgpack: %s: %s", e.Kind, e.Message)
}

func (e *SerializationError) Unwrap() error { return e.cause }

// Is lets errors.Is(err, SomeKind) work against a bare Kind sentinel by
// comparing tags rather than identity.
func (e *SerializationError) Is(target error) bool {
	other, ok := target.(*SerializationError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newErr(kind Kind, format string, args ...interface{}) *SerializationError {
	return &SerializationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, cause error, format string, args ...interface{}) *SerializationError {
	return &SerializationError{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func unexpectedNilErr(typeName string) *SerializationError {
	return &SerializationError{Kind: KindUnexpectedNil, Message: "nil encountered for non-optional value", TypeName: typeName}
}

// rejectNil peeks the next token and fails with UnexpectedNil (spec.md
// §4.8) if it is nil; otherwise it returns with the reader position
// untouched, since TryReadNil only ever consumes a token that actually is
// nil. Every Read path whose target type cannot represent absence calls
// this before attempting its real decode; nullableConverter, the Ptr
// branch of referenceWrapper.Read, and unionConverter are the exceptions,
// since nil is a legitimate decoded value for all three.
func rejectNil(r *Reader, t reflect.Type) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		return unexpectedNilErr(t.String())
	}
	return nil
}

// Sentinel values usable with errors.Is(err, msgpack.ErrDepthExceeded) etc.
var (
	ErrDecodeFormatError     = &SerializationError{Kind: KindDecodeFormatError}
	ErrTruncatedInput        = &SerializationError{Kind: KindTruncatedInput}
	ErrDepthExceeded         = &SerializationError{Kind: KindDepthExceeded}
	ErrShapeConstructionErr  = &SerializationError{Kind: KindShapeConstructionError}
	ErrNotSupported          = &SerializationError{Kind: KindNotSupported}
	ErrCancelled             = &SerializationError{Kind: KindCancelled}
)
