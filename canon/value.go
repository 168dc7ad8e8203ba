package canon

import (
	"errors"
	"fmt"
)

// Value is the closed set of explicitly tagged canonical values. Plain Go
// values (maps, slices, structs, numbers) are accepted by Serialize as well;
// the tagged forms exist for callers that build documents dynamically and
// need to say "this is opaque" or "this is null" without relying on nil.
type Value interface {
	canonical()
}

// Null is the JSON null.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number is a JSON number.
type Number float64

// String is a JSON string.
type String string

// Seq is an ordered sequence.
type Seq []Value

// Map is a string-keyed mapping.
type Map map[string]Value

// Opaque marks a value with no canonical form (a handle, a callback). It
// renders as null inside sequences and at the top level, and its entry is
// dropped from mappings.
type Opaque struct{}

func (Null) canonical()   {}
func (Bool) canonical()   {}
func (Number) canonical() {}
func (String) canonical() {}
func (Seq) canonical()    {}
func (Map) canonical()    {}
func (Opaque) canonical() {}

// Canonicaler is implemented by types that want a custom canonical form.
// Serialize recurses into the returned value instead of the receiver.
type Canonicaler interface {
	Canonical() (any, error)
}

// ErrCircularReference matches every CircularReferenceError via errors.Is.
var ErrCircularReference = errors.New("canon: circular reference")

// CircularReferenceError reports a value that (transitively) contains
// itself. Path locates the revisited reference, e.g. "$.a.items[2]".
type CircularReferenceError struct {
	Path string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("canon: circular reference at %s", e.Path)
}

// Is makes errors.Is(err, ErrCircularReference) true.
func (e *CircularReferenceError) Is(target error) bool {
	return target == ErrCircularReference
}
