package metrics

import (
	"encoding/json"
	"strconv"
)

// Value is a metric that may not be computable yet.
type Value struct {
	v  float64
	ok bool
}

// Known returns a computed value.
func Known(v float64) Value { return Value{v: v, ok: true} }

// Unknown is the zero Value.
var Unknown = Value{}

// Get returns the value and whether it has been computed.
func (v Value) Get() (float64, bool) { return v.v, v.ok }

func (v Value) IsKnown() bool { return v.ok }

// Or returns the value, or def when unknown.
func (v Value) Or(def float64) float64 {
	if !v.ok {
		return def
	}
	return v.v
}

func (v Value) String() string {
	if !v.ok {
		return "—"
	}
	return strconv.FormatFloat(v.v, 'f', 2, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Unknown
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Known(f)
	return nil
}
