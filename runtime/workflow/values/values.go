// Package values defines the run context threaded through a workflow
// execution. The context is a JSON-value tree: every entry is a null, bool,
// number, string, list, or object, matching what survives a round trip
// through encoding/json. Executors receive a snapshot, never mutate it in
// place, and return a superset produced with Merge.
package values

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Object is the run context mapping from variable name to result value.
// Values must be JSON-representable; Normalize coerces arbitrary Go values
// into that shape.
type Object map[string]any

// New returns an empty context object.
func New() Object {
	return Object{}
}

// Clone returns a deep copy of the object. Executors clone before writing so
// the driver can hand the same snapshot to status subscribers without
// worrying about aliasing.
func (o Object) Clone() Object {
	if o == nil {
		return Object{}
	}
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = deepCopy(v)
	}
	return out
}

// Merge returns a new object containing every entry of o plus every entry of
// overlay. Overlay entries win on key collision. Neither input is mutated.
func (o Object) Merge(overlay Object) Object {
	out := o.Clone()
	for k, v := range overlay {
		out[k] = deepCopy(v)
	}
	return out
}

// Superset reports whether o contains every key present in base. The driver
// uses this to enforce the no-deletion contract on executor results; values
// may change, keys may not disappear.
func (o Object) Superset(base Object) bool {
	for k := range base {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// Resolve walks a dotted path ("order.items.0.sku") into the value tree.
// Objects are traversed by key, lists by decimal index. The second return is
// false when any segment is missing or the traversal hits a scalar early.
func (o Object) Resolve(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = map[string]any(o)
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case Object:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := parseIndex(seg, len(node))
			if err != nil {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Stringify renders a resolved value the way JSON renders scalars: strings
// are emitted verbatim (unquoted), numbers and booleans via their JSON form,
// nil as the empty string. Composite values fall back to compact JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

// PrettyJSON renders a resolved subtree as indented JSON for structured
// injection into prompts and request bodies.
func PrettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// Normalize coerces an arbitrary Go value into the JSON-value shape by
// marshalling and unmarshalling it. Structured executor results pass through
// here before entering the context so later dotted-path lookups behave the
// same regardless of the producing executor's types.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepCopy(e)
		}
		return out
	case Object:
		return map[string]any(val.Clone())
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return val
	}
}

func parseIndex(seg string, length int) (int, error) {
	idx := 0
	if seg == "" {
		return 0, fmt.Errorf("empty index")
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("index %q is not numeric", seg)
		}
		idx = idx*10 + int(r-'0')
	}
	if idx >= length {
		return 0, fmt.Errorf("index %d out of range", idx)
	}
	return idx, nil
}
