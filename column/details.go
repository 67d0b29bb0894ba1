package column

import (
	"strings"

	"github.com/tinylib/msgp/msgp"

	"github.com/hupe1980/arriba/value"
)

// Details describes a column. It is persisted in front of every column blob
// in a partition file.
type Details struct {
	Name         string      `json:"name"`
	Kind         value.Kind  `json:"kind"`
	IsPrimaryKey bool        `json:"isPrimaryKey,omitempty"`
	Indexed      bool        `json:"indexed,omitempty"`
	Alias        string      `json:"alias,omitempty"`
	Default      value.Value `json:"-"`
}

// Matches reports whether name refers to this column by name or alias.
func (d Details) Matches(name string) bool {
	return strings.EqualFold(d.Name, name) || (d.Alias != "" && strings.EqualFold(d.Alias, name))
}

// Validate checks the details for structural problems.
func (d Details) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if d.Kind == value.KindNull || !d.Kind.Valid() {
		return &KindError{Column: d.Name, Kind: d.Kind}
	}
	return nil
}

// DefaultValue returns Default converted to the column kind, or the kind's
// zero value when no usable default is set.
func (d Details) DefaultValue() value.Value {
	if d.Default.IsNull() {
		return value.Zero(d.Kind)
	}
	v, err := value.Convert(d.Default, d.Kind)
	if err != nil {
		return value.Zero(d.Kind)
	}
	return v
}

// MarshalMsg implements msgp.Marshaler
func (d Details) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, d.Msgsize())
	o = msgp.AppendMapHeader(o, 6)
	o = msgp.AppendString(o, "Name")
	o = msgp.AppendString(o, d.Name)
	o = msgp.AppendString(o, "Kind")
	o = msgp.AppendUint8(o, uint8(d.Kind))
	o = msgp.AppendString(o, "IsPrimaryKey")
	o = msgp.AppendBool(o, d.IsPrimaryKey)
	o = msgp.AppendString(o, "Indexed")
	o = msgp.AppendBool(o, d.Indexed)
	o = msgp.AppendString(o, "Alias")
	o = msgp.AppendString(o, d.Alias)
	o = msgp.AppendString(o, "Default")
	if d.Default.IsNull() {
		o = msgp.AppendNil(o)
	} else {
		o = msgp.AppendString(o, d.Default.Text())
	}
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (d *Details) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var n uint32
	var defaultText *string
	n, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return
	}
	for n > 0 {
		n--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "Name":
			d.Name, bts, err = msgp.ReadStringBytes(bts)
		case "Kind":
			var k uint8
			k, bts, err = msgp.ReadUint8Bytes(bts)
			d.Kind = value.Kind(k)
		case "IsPrimaryKey":
			d.IsPrimaryKey, bts, err = msgp.ReadBoolBytes(bts)
		case "Indexed":
			d.Indexed, bts, err = msgp.ReadBoolBytes(bts)
		case "Alias":
			d.Alias, bts, err = msgp.ReadStringBytes(bts)
		case "Default":
			if msgp.IsNil(bts) {
				bts, err = msgp.ReadNilBytes(bts)
			} else {
				var s string
				s, bts, err = msgp.ReadStringBytes(bts)
				defaultText = &s
			}
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return
		}
	}

	d.Default = value.Null()
	if defaultText != nil {
		v, convErr := value.Parse(d.Kind, *defaultText)
		if convErr != nil {
			return bts, convErr
		}
		d.Default = v
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (d Details) Msgsize() (s int) {
	s = 1 + 5 + msgp.StringPrefixSize + len(d.Name) +
		5 + msgp.Uint8Size +
		13 + msgp.BoolSize +
		8 + msgp.BoolSize +
		6 + msgp.StringPrefixSize + len(d.Alias) +
		8 + msgp.StringPrefixSize + len(d.Default.Text())
	return
}
