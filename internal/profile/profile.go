// Package profile holds the build profile mapping and the deep merge used to
// layer environment overlays over a base profile.
package profile

import (
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Well known profile keys.
const (
	KeyOutputPath               = "outputPath"
	KeyPublicPath               = "publicPath"
	KeySourceMap                = "sourceMap"
	KeyMinChunkSize             = "minChunkSize"
	KeyBundleAnalyzerReport     = "bundleAnalyzerReport"
	KeyIndexPath                = "indexPath"
	KeyAssetsSubDirectory       = "assetsSubDirectory"
	KeyEntry                    = "entry"
	KeyDefine                   = "define"
	KeyHTML                     = "html"
	KeyProductionGzip           = "productionGzip"
	KeyProductionGzipExtensions = "productionGzipExtensions"
)

// RequiredKeys must be present as non-empty strings in every base profile.
var RequiredKeys = []string{KeyOutputPath, KeyPublicPath}

// Profile maps configuration keys to values. Nested mappings are
// map[string]any, sequences are []any or []string, numbers are any Go
// integer or float type.
type Profile map[string]any

// Clone returns a deep copy of the profile. Nested mappings and sequences are
// copied so the result shares no mutable state with p.
func (p Profile) Clone() Profile {
	if p == nil {
		return Profile{}
	}
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

// Keys returns the top level keys in sorted order.
func (p Profile) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Lookup returns the value at a dotted key path such as "html.minify".
func (p Profile) Lookup(path string) (any, bool) {
	var cur any = map[string]any(p)
	for part := range strings.SplitSeq(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the string at key, or def when absent or not a string.
func (p Profile) String(key, def string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool at key, or def when absent or not a bool.
func (p Profile) Bool(key string, def bool) bool {
	if b, ok := p[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the number at key truncated to an int, or def when absent or
// not a number.
func (p Profile) Int(key string, def int) int {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return int(rv.Int())
	case rv.CanUint():
		return int(rv.Uint()) // #nosec G115 - profile sizes are small
	case rv.CanFloat():
		return int(rv.Float())
	}
	return def
}

// Map returns a copy of the nested mapping at key, or nil.
func (p Profile) Map(key string) map[string]any {
	m, ok := asMap(p[key])
	if !ok {
		return nil
	}
	return cloneMap(m)
}

// Strings returns the sequence at key as strings, or def when absent. Non
// string members are skipped.
func (p Profile) Strings(key string, def []string) []string {
	switch v := p[key].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return slices.Clone(def)
}

// Require checks that every key is present as a non-empty string.
func Require(p Profile, keys ...string) error {
	for _, key := range keys {
		s, ok := p[key].(string)
		if !ok || s == "" {
			return &ConfigError{Kind: MissingKey, Key: key}
		}
	}
	return nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Profile:
		return m, true
	}

	// typed mappings such as map[string]string decoded from other sources
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Profile:
		return Profile(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.IsNil() {
		return v
	}
	out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out.SetMapIndex(iter.Key(), iter.Value())
	}
	return out.Interface()
}
