package params

import (
	"sort"

	"github.com/spf13/cast"
)

// Params is a merged configuration mapping used for template rendering and
// reconciliation decisions. Values come from YAML, so accessors convert
// tolerantly.
type Params map[string]any

// Has reports whether key is present with a non-nil value.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Truthy reports whether key holds a non-empty, non-zero value.
func (p Params) Truthy(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case bool:
		return t
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case Params:
		return len(t) > 0
	}
	f, err := cast.ToFloat64E(v)
	if err == nil {
		return f != 0
	}
	return true
}

func (p Params) String(key string) string {
	return cast.ToString(p[key])
}

func (p Params) Bool(key string) bool {
	return cast.ToBool(p[key])
}

func (p Params) Int(key string) int {
	return cast.ToInt(p[key])
}

func (p Params) Uint64(key string) uint64 {
	return cast.ToUint64(p[key])
}

func (p Params) Float64(key string) float64 {
	return cast.ToFloat64(p[key])
}

// Map returns the nested mapping stored under key, or nil.
func (p Params) Map(key string) Params {
	return asParams(p[key])
}

// StringMap returns the nested mapping under key with values stringified.
func (p Params) StringMap(key string) map[string]string {
	return cast.ToStringMapString(p[key])
}

// List returns the list of mappings stored under key. Non-mapping items are
// skipped.
func (p Params) List(key string) []Params {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil
	}
	var out []Params
	switch items := raw.(type) {
	case []Params:
		return items
	case []map[string]any:
		for _, item := range items {
			out = append(out, Params(item))
		}
	case []any:
		for _, item := range items {
			if m := asParams(item); m != nil {
				out = append(out, m)
			}
		}
	}
	return out
}

// SetList stores a list of mappings under key.
func (p Params) SetList(key string, items []Params) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any(item))
	}
	p[key] = out
}

// Keys returns the sorted keys.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of nested mappings and lists.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge layers mappings left to right; later layers win on top-level keys.
func Merge(layers ...Params) Params {
	out := Params{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = cloneValue(v)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Params:
		return t.Clone()
	case map[string]any:
		return map[string]any(Params(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func asParams(v any) Params {
	switch t := v.(type) {
	case Params:
		return t
	case map[string]any:
		return Params(t)
	case map[any]any:
		return Params(cast.ToStringMap(t))
	default:
		return nil
	}
}
