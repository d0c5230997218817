package model

import (
	"encoding/json"
	"strconv"
)

// ValueKind is the coerced type of a parameter value.
type ValueKind string

// Value kinds
const (
	KindBool   ValueKind = "boolean"
	KindNumber ValueKind = "number"
	KindString ValueKind = "string"
)

// Value is a typed parameter value: exactly one of Bool, Number or Str is
// meaningful, selected by Kind.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Str    string
}

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NumberValue returns a numeric Value.
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// Interface returns the value as a plain Go value (bool, float64 or string).
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	default:
		return v.Str
	}
}

// Python renders the value as a Python literal.
func (v Value) Python() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	default:
		return strconv.Quote(v.Str)
	}
}

// MarshalJSON encodes the value as its native JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a native JSON bool, number or string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case bool:
		*v = BoolValue(t)
	case float64:
		*v = NumberValue(t)
	case string:
		*v = StringValue(t)
	default:
		*v = StringValue(string(data))
	}
	return nil
}

// Parameter is one named strategy parameter found in a scanner.
type Parameter struct {
	Name  string    `json:"name"`
	Value Value     `json:"value"`
	Type  ValueKind `json:"type"`
	// Raw is the literal as written in the source, used when re-emitting it.
	Raw  string `json:"raw"`
	Line int    `json:"line"`
	// Source names the extraction strategy that produced the parameter.
	Source string `json:"source"`
}

// ParameterSet is an insertion-ordered set of parameters keyed by name.
// The first parameter added under a name wins; later duplicates are dropped.
type ParameterSet struct {
	items []Parameter
	index map[string]int
}

// NewParameterSet returns an empty set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{index: map[string]int{}}
}

// Add inserts p unless its name is already present. It reports whether p was kept.
func (s *ParameterSet) Add(p Parameter) bool {
	if s.index == nil {
		s.index = map[string]int{}
	}
	if p.Name == "" {
		return false
	}
	if _, ok := s.index[p.Name]; ok {
		return false
	}
	p.Type = p.Value.Kind
	s.index[p.Name] = len(s.items)
	s.items = append(s.items, p)
	return true
}

// Merge adds every parameter of other that is not already present and returns
// how many were kept.
func (s *ParameterSet) Merge(other *ParameterSet) int {
	if other == nil {
		return 0
	}
	n := 0
	for _, p := range other.items {
		if s.Add(p) {
			n++
		}
	}
	return n
}

// Get looks a parameter up by name.
func (s *ParameterSet) Get(name string) (Parameter, bool) {
	if s == nil {
		return Parameter{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Parameter{}, false
	}
	return s.items[i], true
}

// Len returns the number of parameters.
func (s *ParameterSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// All returns the parameters in insertion order.
func (s *ParameterSet) All() []Parameter {
	if s == nil {
		return nil
	}
	return append([]Parameter(nil), s.items...)
}

// Names returns parameter names in insertion order.
func (s *ParameterSet) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.items))
	for i, p := range s.items {
		names[i] = p.Name
	}
	return names
}

// Values returns a name to plain-value map, as sent to the model.
func (s *ParameterSet) Values() map[string]any {
	out := make(map[string]any, s.Len())
	if s == nil {
		return out
	}
	for _, p := range s.items {
		out[p.Name] = p.Value.Interface()
	}
	return out
}

// Clone returns an independent copy of the set.
func (s *ParameterSet) Clone() *ParameterSet {
	out := NewParameterSet()
	out.Merge(s)
	return out
}

// MarshalJSON encodes the set as an ordered list of parameters.
func (s *ParameterSet) MarshalJSON() ([]byte, error) {
	items := s.All()
	if items == nil {
		items = []Parameter{}
	}
	return json.Marshal(items)
}

// UnmarshalJSON decodes the list form produced by MarshalJSON.
func (s *ParameterSet) UnmarshalJSON(data []byte) error {
	var items []Parameter
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = ParameterSet{index: map[string]int{}}
	for _, p := range items {
		s.Add(p)
	}
	return nil
}
