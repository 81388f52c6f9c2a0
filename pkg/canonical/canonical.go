// Package canonical provides a deterministic string form of arbitrary
// decoded JSON values, used by pkg/retrycond to compare structured
// result fields regardless of the source object's key order.
package canonical

import "encoding/json"

// Stringify renders v as JSON with map keys in sorted order — which is
// encoding/json's default behavior for map[string]interface{} — so two
// structurally equal values always produce the same string.
func Stringify(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Equal reports whether a and b marshal to the same canonical string.
func Equal(a, b interface{}) bool {
	sa, errA := Stringify(a)
	sb, errB := Stringify(b)
	if errA != nil || errB != nil {
		return false
	}
	return sa == sb
}
