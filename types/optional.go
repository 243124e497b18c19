package types

import "encoding/json"

// OptionalFloat is a float64 that is explicitly present or absent. The zero
// value is absent. Consumers decide the missing-data policy once, at this
// boundary, instead of re-checking column presence at every call site.
type OptionalFloat struct {
	value   float64
	present bool
}

// SomeFloat returns a present OptionalFloat.
func SomeFloat(v float64) OptionalFloat {
	return OptionalFloat{value: v, present: true}
}

// Present reports whether a value was recorded.
func (o OptionalFloat) Present() bool { return o.present }

// Value returns the recorded value and whether it was present.
func (o OptionalFloat) Value() (float64, bool) { return o.value, o.present }

// Or returns the recorded value, or def when absent.
func (o OptionalFloat) Or(def float64) float64 {
	if o.present {
		return o.value
	}
	return def
}

func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = SomeFloat(v)
	return nil
}

// OptionalInt is an int that is explicitly present or absent.
type OptionalInt struct {
	value   int
	present bool
}

// SomeInt returns a present OptionalInt.
func SomeInt(v int) OptionalInt {
	return OptionalInt{value: v, present: true}
}

func (o OptionalInt) Present() bool      { return o.present }
func (o OptionalInt) Value() (int, bool) { return o.value, o.present }

// Or returns the recorded value, or def when absent.
func (o OptionalInt) Or(def int) int {
	if o.present {
		return o.value
	}
	return def
}

func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalInt{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = SomeInt(v)
	return nil
}

// OptionalBool is a bool that is explicitly present or absent.
type OptionalBool struct {
	value   bool
	present bool
}

// SomeBool returns a present OptionalBool.
func SomeBool(v bool) OptionalBool {
	return OptionalBool{value: v, present: true}
}

func (o OptionalBool) Present() bool       { return o.present }
func (o OptionalBool) Value() (bool, bool) { return o.value, o.present }

// Or returns the recorded value, or def when absent.
func (o OptionalBool) Or(def bool) bool {
	if o.present {
		return o.value
	}
	return def
}

func (o OptionalBool) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *OptionalBool) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalBool{}
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = SomeBool(v)
	return nil
}
