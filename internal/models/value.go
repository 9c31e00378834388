package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ValueKind discriminates the scalar held by a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueDate
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueDate:
		return "date"
	default:
		return "null"
	}
}

// Value is one cell of an imported spreadsheet row. Dates travel as
// {"$date": "<RFC3339>"} so they survive a JSON round trip.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	t    time.Time
}

const dateKey = "$date"

// NullValue returns an empty cell.
func NullValue() Value {
	return Value{}
}

// StringValue wraps a text cell.
func StringValue(s string) Value {
	return Value{kind: ValueString, str: s}
}

// NumberValue wraps a numeric cell.
func NumberValue(n float64) Value {
	return Value{kind: ValueNumber, num: n}
}

// BoolValue wraps a boolean cell.
func BoolValue(b bool) Value {
	return Value{kind: ValueBool, b: b}
}

// DateValue wraps a date cell, normalized to UTC.
func DateValue(t time.Time) Value {
	return Value{kind: ValueDate, t: t.UTC()}
}

// Kind reports which payload the value carries.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull reports an empty cell.
func (v Value) IsNull() bool {
	return v.kind == ValueNull
}

// Number returns the numeric payload, zero for other kinds.
func (v Value) Number() float64 {
	return v.num
}

// Bool returns the boolean payload, false for other kinds.
func (v Value) Bool() bool {
	return v.b
}

// Time returns the date payload, the zero time for other kinds.
func (v Value) Time() time.Time {
	return v.t
}

// String renders the value for reports and exports.
func (v Value) String() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueDate:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueString:
		return v.str == o.str
	case ValueNumber:
		return v.num == o.num
	case ValueBool:
		return v.b == o.b
	case ValueDate:
		return v.t.Equal(o.t)
	default:
		return true
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueBool:
		return json.Marshal(v.b)
	case ValueDate:
		return json.Marshal(map[string]string{dateKey: v.t.Format(time.RFC3339Nano)})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts scalars and the date object form only.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}
	switch data[0] {
	case 'n':
		if string(data) != "null" {
			return fmt.Errorf("invalid value %q", data)
		}
		*v = NullValue()
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case '{':
		var obj map[string]string
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("unsupported object value: %w", err)
		}
		raw, ok := obj[dateKey]
		if !ok || len(obj) != 1 {
			return fmt.Errorf("unsupported object value")
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("invalid date value: %w", err)
		}
		*v = DateValue(t)
	case '[':
		return fmt.Errorf("array values are not supported")
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid number value %q", data)
		}
		*v = NumberValue(n)
	}
	return nil
}

// RowData is a snapshot of a source spreadsheet row keyed by header.
type RowData map[string]Value

// Lookup finds the first header matching one of names, ignoring case and
// surrounding whitespace.
func (r RowData) Lookup(names ...string) (Value, bool) {
	if len(r) == 0 {
		return Value{}, false
	}
	for _, name := range names {
		if v, ok := r[name]; ok {
			return v, true
		}
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range names {
		want := strings.TrimSpace(name)
		for _, k := range keys {
			if strings.EqualFold(strings.TrimSpace(k), want) {
				return r[k], true
			}
		}
	}
	return Value{}, false
}

// Value marshals the row to JSON for JSONB columns.
func (r RowData) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(map[string]Value(r))
	if err != nil {
		return nil, fmt.Errorf("marshal row data: %w", err)
	}
	return data, nil
}

// Scan reads a JSONB column.
func (r *RowData) Scan(value interface{}) error {
	if value == nil {
		*r = RowData{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for RowData", value)
	}
	if len(data) == 0 {
		*r = RowData{}
		return nil
	}
	decoded := map[string]Value{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("unmarshal row data: %w", err)
	}
	*r = decoded
	return nil
}
