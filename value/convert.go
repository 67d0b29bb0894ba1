package value

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Convert converts v to kind to. Null converts to the zero value of any kind.
func Convert(v Value, to Kind) (Value, error) {
	if v.kind == to {
		return v, nil
	}
	if v.kind == KindNull {
		return Zero(to), nil
	}

	switch to {
	case KindNull:
		return Null(), nil
	case KindString:
		return String(v.Text()), nil
	case KindBool:
		return toBool(v)
	case KindInt:
		return toInt(v)
	case KindFloat:
		return toFloat(v)
	case KindTime:
		return toTime(v)
	case KindUUID:
		return toUUID(v)
	default:
		return Null(), convErr(v, to, ErrUnknownKind)
	}
}

// Parse converts canonical text back into a value of kind k.
func Parse(k Kind, text string) (Value, error) {
	return Convert(String(text), k)
}

func convErr(v Value, to Kind, cause error) error {
	return &ConversionError{From: v.kind, To: to, Text: v.Text(), cause: cause}
}

func toBool(v Value) (Value, error) {
	switch v.kind {
	case KindInt:
		return Bool(v.i64 != 0), nil
	case KindFloat:
		return Bool(v.f64 != 0), nil
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.s))
		if err != nil {
			return Null(), convErr(v, KindBool, err)
		}
		return Bool(b), nil
	default:
		return Null(), convErr(v, KindBool, nil)
	}
}

func toInt(v Value) (Value, error) {
	switch v.kind {
	case KindBool, KindTime:
		return Int(v.i64), nil
	case KindFloat:
		i, ok := integral(v.f64)
		if !ok {
			return Null(), convErr(v, KindInt, ErrOutOfRange)
		}
		return Int(i), nil
	case KindString:
		s := strings.TrimSpace(v.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Null(), convErr(v, KindInt, err)
		}
		i, ok := integral(f)
		if !ok {
			return Null(), convErr(v, KindInt, ErrOutOfRange)
		}
		return Int(i), nil
	default:
		return Null(), convErr(v, KindInt, nil)
	}
}

func toFloat(v Value) (Value, error) {
	switch v.kind {
	case KindBool, KindInt:
		return Float(float64(v.i64)), nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return Null(), convErr(v, KindFloat, err)
		}
		return Float(f), nil
	default:
		return Null(), convErr(v, KindFloat, nil)
	}
}

func toTime(v Value) (Value, error) {
	switch v.kind {
	case KindInt:
		return Value{kind: KindTime, i64: v.i64}, nil
	case KindFloat:
		if v.f64 > math.MaxInt64 || v.f64 < math.MinInt64 || math.IsNaN(v.f64) {
			return Null(), convErr(v, KindTime, ErrOutOfRange)
		}
		return Value{kind: KindTime, i64: int64(v.f64)}, nil
	case KindString:
		s := strings.TrimSpace(v.s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return Time(t), nil
			}
		}
		return Null(), convErr(v, KindTime, nil)
	default:
		return Null(), convErr(v, KindTime, nil)
	}
}

func toUUID(v Value) (Value, error) {
	if v.kind != KindString {
		return Null(), convErr(v, KindUUID, nil)
	}
	u, err := uuid.Parse(strings.TrimSpace(v.s))
	if err != nil {
		return Null(), convErr(v, KindUUID, err)
	}
	return UUID(u), nil
}
