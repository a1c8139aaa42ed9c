package memo

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrContextKey is returned for context arguments that cannot be serialized.
var ErrContextKey = fmt.Errorf("context arguments are not serializable")

// Key canonicalizes context arguments. Two argument lists map to the same
// cache instance iff their keys are equal.
//
// Values are compared structurally: map keys are sorted, and integers and
// integral floats are encoded by value, so int(2), int64(2) and 2.0 agree.
func Key(contextArgs ...any) (string, error) {
	if contextArgs == nil {
		contextArgs = []any{}
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	enc.UseCompactFloats(true)
	if err := enc.Encode(contextArgs); err != nil {
		return "", fmt.Errorf("%w: %v", ErrContextKey, err)
	}
	return buf.String(), nil
}
