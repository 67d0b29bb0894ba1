package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the concrete type stored in a Value.
//
// NOTE: Kind codes are persisted in partition files; keep them stable.
type Kind uint8

const (
	// KindNull represents the absence of a value.
	KindNull Kind = iota
	// KindBool represents a boolean value.
	KindBool
	// KindInt represents a signed 64-bit integer.
	KindInt
	// KindFloat represents a 64-bit float.
	KindFloat
	// KindString represents a UTF-8 string.
	KindString
	// KindTime represents an instant, stored as Unix nanoseconds in UTC.
	KindTime
	// KindUUID represents a 16-byte UUID.
	KindUUID
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindTime:   "time",
	KindUUID:   "uuid",
}

// Kinds lists every storable kind (everything except KindNull).
func Kinds() []Kind {
	return []Kind{KindBool, KindInt, KindFloat, KindString, KindTime, KindUUID}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind parses a kind name as produced by Kind.String.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(k), nil
		}
	}
	return KindNull, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Value is a small typed value. The zero Value is null.
//
// Values are immutable and cheap to copy; no reflection is involved when
// reading them back.
type Value struct {
	kind Kind
	i64  int64 // int, bool (0/1), time (unix nanos)
	f64  float64
	s    string
	u    uuid.UUID
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i64 = 1
	}
	return v
}

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i64: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f64: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Time returns a time value truncated to nanosecond precision in UTC.
func Time(t time.Time) Value { return Value{kind: KindTime, i64: t.UnixNano()} }

// UUID returns a uuid value.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// Zero returns the zero value of kind k.
func Zero(k Kind) Value {
	switch k {
	case KindBool:
		return Bool(false)
	case KindInt:
		return Int(0)
	case KindFloat:
		return Float(0)
	case KindString:
		return String("")
	case KindTime:
		return Value{kind: KindTime}
	case KindUUID:
		return UUID(uuid.Nil)
	default:
		return Null()
	}
}

// Of wraps a Go value. Supported inputs are nil, bool, all integer widths,
// float32/float64, string, []byte, time.Time, uuid.UUID and Value.
func Of(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return fromUint(t)
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []byte:
		return String(string(t)), nil
	case time.Time:
		return Time(t), nil
	case uuid.UUID:
		return UUID(t), nil
	default:
		return Null(), fmt.Errorf("%w: %T", ErrUnsupportedType, x)
	}
}

// MustOf is like Of but panics on unsupported input. Intended for tests and
// literals.
func MustOf(x any) Value {
	v, err := Of(x)
	if err != nil {
		panic(err)
	}
	return v
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Null(), &ConversionError{From: KindInt, To: KindInt, Text: strconv.FormatUint(u, 10), cause: ErrOutOfRange}
	}
	return Int(int64(u)), nil
}

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the bool value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.i64 != 0, true
}

// AsInt returns the int64 value if Kind is KindInt.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i64, true
}

// AsFloat returns the float64 value if Kind is KindFloat.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f64, true
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsTime returns the time value (UTC) if Kind is KindTime.
func (v Value) AsTime() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return time.Unix(0, v.i64).UTC(), true
}

// AsUUID returns the uuid value if Kind is KindUUID.
func (v Value) AsUUID() (uuid.UUID, bool) {
	if v.kind != KindUUID {
		return uuid.Nil, false
	}
	return v.u, true
}

// Numeric returns v as float64 for int, float, bool and time kinds.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInt, KindBool, KindTime:
		return float64(v.i64), true
	case KindFloat:
		return v.f64, true
	default:
		return 0, false
	}
}

// Text returns the canonical text form of v.
//
// Integral floats print without a fractional part so that Float(5) and
// Int(5) share the text "5". Times print as RFC 3339 with nanoseconds in UTC.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.i64 != 0)
	case KindInt:
		return strconv.FormatInt(v.i64, 10)
	case KindFloat:
		if i, ok := integral(v.f64); ok {
			return strconv.FormatInt(i, 10)
		}
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindString:
		return v.s
	case KindTime:
		return time.Unix(0, v.i64).UTC().Format(time.RFC3339Nano)
	case KindUUID:
		return v.u.String()
	default:
		return ""
	}
}

// String implements fmt.Stringer. Unlike Text it marks null explicitly.
func (v Value) String() string {
	if v.kind == KindNull {
		return "<null>"
	}
	return v.Text()
}

// Compare orders two values. Null sorts before everything else. Numeric
// kinds compare numerically with each other; other cross-kind pairs compare
// by canonical text.
func Compare(a, b Value) int {
	switch {
	case a.kind == KindNull && b.kind == KindNull:
		return 0
	case a.kind == KindNull:
		return -1
	case b.kind == KindNull:
		return 1
	}

	if a.kind == b.kind {
		switch a.kind {
		case KindBool, KindInt, KindTime:
			return cmpOrdered(a.i64, b.i64)
		case KindFloat:
			return cmpOrdered(a.f64, b.f64)
		case KindString:
			return strings.Compare(a.s, b.s)
		case KindUUID:
			return strings.Compare(string(a.u[:]), string(b.u[:]))
		}
	}

	if isNumber(a.kind) && isNumber(b.kind) {
		af, _ := a.Numeric()
		bf, _ := b.Numeric()
		return cmpOrdered(af, bf)
	}
	return strings.Compare(a.Text(), b.Text())
}

// Equal reports whether a and b hold the same logical value.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

func isNumber(k Kind) bool {
	return k == KindInt || k == KindFloat
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
