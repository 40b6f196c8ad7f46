// Package enums mirrors the Postgres enum types. Each type keeps its
// members in a slice so validation and parsing stay in one place.
package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](members []T, kind, raw string) (T, error) {
	if v := T(raw); slices.Contains(members, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
