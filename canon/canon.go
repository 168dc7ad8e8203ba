// CLAUDE:SUMMARY Deterministic canonical JSON serializer: sorted keys, preserved sequence order, cycle rejection, custom canonical hook.
// CLAUDE:EXPORTS Serialize, Parse, Canonicaler, CircularReferenceError
// Package canon renders values as canonical JSON text: the same logical
// value always produces the same bytes, whatever the map iteration order or
// struct layout. The output feeds hash chains and deterministic file output.
//
// Rules:
//   - mapping keys are sorted by byte (code point) order; sequence order is kept
//   - integers beyond ±(2^53-1) are converted to the nearest float64 first
//   - NaN, ±Inf, funcs, channels, complex numbers and Opaque render as null;
//     inside mappings and structs their entries are dropped
//   - Canonicaler and json.Marshaler results replace the receiver
//   - a value that contains itself fails with *CircularReferenceError
package canon

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
	"unsafe"
)

const maxSafeInt = 1<<53 - 1

var (
	canonicalerType   = reflect.TypeFor[Canonicaler]()
	marshalerType     = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	bigIntType        = reflect.TypeFor[big.Int]()
	numberType        = reflect.TypeFor[json.Number]()
	nullType          = reflect.TypeFor[Null]()
	opaqueType        = reflect.TypeFor[Opaque]()
)

// Serialize returns the canonical JSON text of v.
func Serialize(v any) (string, error) {
	e := &encoder{visited: make(map[visitKey]struct{})}
	if err := e.encode(reflect.ValueOf(v), "$"); err != nil {
		return "", err
	}
	return string(e.buf), nil
}

// Parse decodes standard JSON text. Numbers are kept as json.Number so
// that re-serializing a parsed document is byte-stable.
func Parse(text string) (any, error) {
	return parseBytes([]byte(text))
}

func parseBytes(b []byte) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canon: parse: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("canon: parse: unexpected data after top-level value")
	}
	return v, nil
}

// visitKey identifies a reference for cycle detection. Slices include their
// length so that two distinct windows on one backing array are not confused.
type visitKey struct {
	ptr unsafe.Pointer
	typ reflect.Type
	n   int
}

// encoder holds the state of one Serialize call. The visited set only ever
// contains the references on the current recursion path.
type encoder struct {
	buf     []byte
	visited map[visitKey]struct{}
}

func (e *encoder) enter(k visitKey, path string) error {
	if _, seen := e.visited[k]; seen {
		return &CircularReferenceError{Path: path}
	}
	e.visited[k] = struct{}{}
	return nil
}

func (e *encoder) leave(k visitKey) {
	delete(e.visited, k)
}

func (e *encoder) null() {
	e.buf = append(e.buf, "null"...)
}

func (e *encoder) encode(v reflect.Value, path string) error {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			e.null()
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		e.null()
		return nil
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Map || v.Kind() == reflect.Slice) && v.IsNil() {
		e.null()
		return nil
	}

	switch v.Type() {
	case nullType, opaqueType:
		e.null()
		return nil
	case numberType:
		e.number(json.Number(v.String()))
		return nil
	case bigIntType:
		if v.CanAddr() {
			e.bigInt(v.Addr().Interface().(*big.Int))
		} else {
			b := v.Interface().(big.Int)
			e.bigInt(&b)
		}
		return nil
	}
	if v.Kind() == reflect.Pointer && v.Type().Elem() == bigIntType {
		e.bigInt(v.Interface().(*big.Int))
		return nil
	}

	if handled, err := e.hooks(v, path); handled || err != nil {
		return err
	}

	switch v.Kind() {
	case reflect.Bool:
		e.buf = strconv.AppendBool(e.buf, v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf = appendInt(e.buf, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf = appendUint(e.buf, v.Uint())
	case reflect.Float32:
		e.buf = appendFloat(e.buf, v.Float(), 32)
	case reflect.Float64:
		e.buf = appendFloat(e.buf, v.Float(), 64)
	case reflect.String:
		e.buf = appendQuoted(e.buf, v.String())
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 && !v.Type().Elem().Implements(canonicalerType) {
			e.buf = appendQuoted(e.buf, base64.StdEncoding.EncodeToString(v.Bytes()))
			return nil
		}
		k := visitKey{ptr: v.UnsafePointer(), typ: v.Type(), n: v.Len()}
		if err := e.enter(k, path); err != nil {
			return err
		}
		defer e.leave(k)
		return e.sequence(v, path)
	case reflect.Array:
		return e.sequence(v, path)
	case reflect.Map:
		k := visitKey{ptr: v.UnsafePointer(), typ: v.Type()}
		if err := e.enter(k, path); err != nil {
			return err
		}
		defer e.leave(k)
		return e.mapping(v, path)
	case reflect.Struct:
		return e.structure(v, path)
	case reflect.Pointer:
		k := visitKey{ptr: v.UnsafePointer(), typ: v.Type()}
		if err := e.enter(k, path); err != nil {
			return err
		}
		defer e.leave(k)
		return e.encode(v.Elem(), path)
	default:
		// func, chan, complex, unsafe.Pointer
		e.null()
	}
	return nil
}

// hooks applies Canonicaler, then json.Marshaler. A hook on a pointer
// receiver is tracked like any other reference so that a hook returning its
// own receiver is reported as a cycle rather than recursing forever.
func (e *encoder) hooks(v reflect.Value, path string) (bool, error) {
	target := v
	if !target.Type().Implements(canonicalerType) && !target.Type().Implements(marshalerType) {
		if !v.CanAddr() {
			return false, nil
		}
		target = v.Addr()
		if !target.Type().Implements(canonicalerType) && !target.Type().Implements(marshalerType) {
			return false, nil
		}
	}
	if !target.CanInterface() {
		return false, nil
	}

	if target.Kind() == reflect.Pointer {
		k := visitKey{ptr: target.UnsafePointer(), typ: target.Type(), n: -1}
		if err := e.enter(k, path); err != nil {
			return true, err
		}
		defer e.leave(k)
	}

	if c, ok := target.Interface().(Canonicaler); ok {
		out, err := c.Canonical()
		if err != nil {
			return true, fmt.Errorf("canon: %s: %w", path, err)
		}
		return true, e.encode(reflect.ValueOf(out), path)
	}

	m := target.Interface().(json.Marshaler)
	raw, err := m.MarshalJSON()
	if err != nil {
		return true, fmt.Errorf("canon: %s: marshal: %w", path, err)
	}
	parsed, err := parseBytes(raw)
	if err != nil {
		return true, fmt.Errorf("canon: %s: %w", path, err)
	}
	return true, e.encode(reflect.ValueOf(parsed), path)
}

func (e *encoder) sequence(v reflect.Value, path string) error {
	e.buf = append(e.buf, '[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.buf = append(e.buf, ',')
		}
		if err := e.encode(v.Index(i), path+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, ']')
	return nil
}

type entry struct {
	key string
	val reflect.Value
}

func (e *encoder) mapping(v reflect.Value, path string) error {
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, ok := mapKey(iter.Key())
		if !ok {
			e.null()
			return nil
		}
		if omitted(iter.Value()) {
			continue
		}
		entries = append(entries, entry{key: key, val: iter.Value()})
	}
	return e.object(entries, path)
}

func (e *encoder) structure(v reflect.Value, path string) error {
	fields := structFields(v.Type())
	entries := make([]entry, 0, len(fields))
	for _, f := range fields {
		fv, err := v.FieldByIndexErr(f.index)
		if err != nil {
			// nil embedded pointer
			continue
		}
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		if omitted(fv) {
			continue
		}
		entries = append(entries, entry{key: f.name, val: fv})
	}
	return e.object(entries, path)
}

func (e *encoder) object(entries []entry, path string) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	e.buf = append(e.buf, '{')
	for i, en := range entries {
		if i > 0 {
			e.buf = append(e.buf, ',')
		}
		e.buf = appendQuoted(e.buf, en.key)
		e.buf = append(e.buf, ':')
		if err := e.encode(en.val, path+"."+en.key); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, '}')
	return nil
}

func (e *encoder) number(n json.Number) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		e.null()
		return
	}
	e.buf = appendFloat(e.buf, f, 64)
}

func (e *encoder) bigInt(b *big.Int) {
	f, _ := new(big.Float).SetInt(b).Float64()
	e.buf = appendFloat(e.buf, f, 64)
}

func mapKey(k reflect.Value) (string, bool) {
	if k.Kind() == reflect.String {
		return k.String(), true
	}
	if k.Type().Implements(textMarshalerType) {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", true
		}
		b, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		return string(b), err == nil
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), true
	}
	return "", false
}

// omitted reports values whose mapping entry is dropped entirely.
func omitted(v reflect.Value) bool {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() {
		return false
	}
	if v.Type() == opaqueType {
		return true
	}
	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func appendInt(b []byte, i int64) []byte {
	if i > maxSafeInt || i < -maxSafeInt {
		return appendFloat(b, float64(i), 64)
	}
	return strconv.AppendInt(b, i, 10)
}

func appendUint(b []byte, u uint64) []byte {
	if u > maxSafeInt {
		return appendFloat(b, float64(u), 64)
	}
	return strconv.AppendUint(b, u, 10)
}

// appendFloat formats f the way JSON.stringify does: plain notation between
// 1e-6 and 1e21, shortest round-trip digits, exponent without leading zeros.
func appendFloat(b []byte, f float64, bits int) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(b, "null"...)
	}
	if f == 0 {
		return append(b, '0')
	}
	abs := math.Abs(f)
	format := byte('f')
	if bits == 64 && (abs < 1e-6 || abs >= 1e21) ||
		bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
		format = 'e'
	}
	b = strconv.AppendFloat(b, f, format, -1, bits)
	if format == 'e' {
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return b
}

const hexDigits = "0123456789abcdef"

// appendQuoted writes s as a JSON string. Only the characters JSON requires
// are escaped; invalid UTF-8 bytes become U+FFFD.
func appendQuoted(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"', '\\':
				b = append(b, '\\', c)
			case '\b':
				b = append(b, '\\', 'b')
			case '\f':
				b = append(b, '\\', 'f')
			case '\n':
				b = append(b, '\\', 'n')
			case '\r':
				b = append(b, '\\', 'r')
			case '\t':
				b = append(b, '\\', 't')
			default:
				if c < 0x20 {
					b = append(b, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
				} else {
					b = append(b, c)
				}
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b = append(b, "\ufffd"...)
			i++
			continue
		}
		b = append(b, s[i:i+size]...)
		i += size
	}
	return append(b, '"')
}
