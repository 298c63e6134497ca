// Package timejson adds JSON marshaling to time.Duration using its
// standard string form ("1h30m0s") instead of an opaque integer of
// nanoseconds.
package timejson

import (
	"encoding/json"
	"time"
)

// Duration is a time.Duration that marshals to/from its string form.
type Duration time.Duration

// MarshalJSON converts the duration to its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON parses a duration string, falling back to a bare
// integer of nanoseconds for compatibility with unlabeled values.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}
