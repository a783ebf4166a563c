// Package merge implements the recursive union used to combine partial
// indices from workers, successive runs, and the persistent store.
//
// The rules are the same at every level of nesting:
//   - both values are maps: recurse
//   - both values are []any: append every source element not already present
//   - anything else: the source value replaces the destination value
//
// No key is ever removed by a merge.
package merge

import (
	"fmt"
	"reflect"
)

// Target is a keyed destination that can be merged into.
// Values returned by Lookup may be mutated and written back with Put.
type Target interface {
	Lookup(key string) (any, bool, error)
	Put(key string, value any) error
}

// Map adapts an in-memory map to Target.
type Map map[string]any

// Lookup implements Target.
func (m Map) Lookup(key string) (any, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

// Put implements Target.
func (m Map) Put(key string, value any) error {
	m[key] = value
	return nil
}

// Merge merges src into dst in place.
func Merge(dst, src map[string]any) {
	for key, sv := range src {
		dv, ok := dst[key]
		if !ok {
			dst[key] = Clone(sv)
			continue
		}
		dst[key] = Value(dv, sv)
	}
}

// Into merges src into an arbitrary Target, one top-level key at a time.
func Into(dst Target, src map[string]any) error {
	for key, sv := range src {
		dv, ok, err := dst.Lookup(key)
		if err != nil {
			return fmt.Errorf("looking up %q: %w", key, err)
		}
		var merged any
		if ok {
			merged = Value(dv, sv)
		} else {
			merged = Clone(sv)
		}
		if err := dst.Put(key, merged); err != nil {
			return fmt.Errorf("writing %q: %w", key, err)
		}
	}
	return nil
}

// Value returns the union of dst and src. Maps and slices in dst are
// extended in place where possible; the result must be stored back because
// appending may reallocate.
func Value(dst, src any) any {
	switch d := dst.(type) {
	case map[string]any:
		if s, ok := src.(map[string]any); ok {
			Merge(d, s)
			return d
		}
	case []any:
		if s, ok := src.([]any); ok {
			return appendMissing(d, s)
		}
	}
	return Clone(src)
}

func appendMissing(dst, src []any) []any {
	for _, v := range src {
		if !contains(dst, v) {
			dst = append(dst, Clone(v))
		}
	}
	return dst
}

func contains(list []any, v any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

// Clone deep-copies maps and slices so merged trees never alias their source.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	default:
		return v
	}
}
