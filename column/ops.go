package column

import (
	"bytes"
	"cmp"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/arriba/internal/binfmt"
	"github.com/hupe1980/arriba/value"
)

// ops is the per-kind dispatch table of a typed column. Every kind gets
// exactly one table, built at package init.
type ops[T comparable] struct {
	kind    value.Kind
	unwrap  func(value.Value) T // value already converted to kind
	wrap    func(T) value.Value
	compare func(a, b T) int
	write   func(*binfmt.Writer, T)
	read    func(*binfmt.Reader) T
}

var boolOps = &ops[bool]{
	kind:   value.KindBool,
	unwrap: func(v value.Value) bool { b, _ := v.AsBool(); return b },
	wrap:   value.Bool,
	compare: func(a, b bool) int {
		switch {
		case a == b:
			return 0
		case !a:
			return -1
		default:
			return 1
		}
	},
	write: (*binfmt.Writer).Bool,
	read:  (*binfmt.Reader).Bool,
}

var intOps = &ops[int64]{
	kind:    value.KindInt,
	unwrap:  func(v value.Value) int64 { i, _ := v.AsInt(); return i },
	wrap:    value.Int,
	compare: cmp.Compare[int64],
	write:   (*binfmt.Writer).I64,
	read:    (*binfmt.Reader).I64,
}

var floatOps = &ops[float64]{
	kind:    value.KindFloat,
	unwrap:  func(v value.Value) float64 { f, _ := v.AsFloat(); return f },
	wrap:    value.Float,
	compare: cmp.Compare[float64],
	write:   (*binfmt.Writer).F64,
	read:    (*binfmt.Reader).F64,
}

var stringOps = &ops[string]{
	kind:    value.KindString,
	unwrap:  func(v value.Value) string { s, _ := v.AsString(); return s },
	wrap:    value.String,
	compare: cmp.Compare[string],
	write:   (*binfmt.Writer).String,
	read:    (*binfmt.Reader).String,
}

// Times are held as Unix nanoseconds.
var timeOps = &ops[int64]{
	kind: value.KindTime,
	unwrap: func(v value.Value) int64 {
		t, _ := v.AsTime()
		return t.UnixNano()
	},
	wrap:    func(n int64) value.Value { return value.Time(time.Unix(0, n)) },
	compare: cmp.Compare[int64],
	write:   (*binfmt.Writer).I64,
	read:    (*binfmt.Reader).I64,
}

var uuidOps = &ops[uuid.UUID]{
	kind:    value.KindUUID,
	unwrap:  func(v value.Value) uuid.UUID { u, _ := v.AsUUID(); return u },
	wrap:    value.UUID,
	compare: func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) },
	write:   func(w *binfmt.Writer, u uuid.UUID) { w.Raw(u[:]) },
	read: func(r *binfmt.Reader) uuid.UUID {
		var u uuid.UUID
		copy(u[:], r.Raw(len(u)))
		return u
	},
}
