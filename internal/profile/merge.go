package profile

import (
	"reflect"
)

type valueKind int

const (
	kindNil valueKind = iota
	kindString
	kindBool
	kindNumber
	kindMapping
	kindSequence
	kindOther
)

func (k valueKind) String() string {
	switch k {
	case kindNil:
		return "null"
	case kindString:
		return "string"
	case kindBool:
		return "bool"
	case kindNumber:
		return "number"
	case kindMapping:
		return "mapping"
	case kindSequence:
		return "sequence"
	default:
		return "value"
	}
}

func kindOf(v any) valueKind {
	switch v.(type) {
	case nil:
		return kindNil
	case string:
		return kindString
	case bool:
		return kindBool
	case map[string]any, Profile:
		return kindMapping
	case []any, []string:
		return kindSequence
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return kindNumber
	case reflect.String:
		return kindString
	case reflect.Bool:
		return kindBool
	case reflect.Map:
		if reflect.TypeOf(v).Key().Kind() == reflect.String {
			return kindMapping
		}
	case reflect.Slice, reflect.Array:
		return kindSequence
	}
	return kindOther
}

// Merge returns a new profile holding base with overlay applied on top.
//
// For each overlay key the overlay value wins, except that nested mappings
// are merged recursively and a nil overlay value leaves the base value in
// place. Sequences and scalars replace the base value. Every base key
// survives. Neither input is modified.
//
// An overlay value whose kind differs from the base value for the same key
// fails with a ConfigError of kind InvalidOverlayType.
func Merge(base, overlay Profile) (Profile, error) {
	out, err := mergeMaps("", base, overlay)
	if err != nil {
		return nil, err
	}
	return Profile(out), nil
}

func mergeMaps(prefix string, base, overlay map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = cloneValue(v)
	}

	for k, ov := range overlay {
		path := joinPath(prefix, k)
		ovKind := kindOf(ov)
		if ovKind == kindNil {
			continue
		}

		bv, exists := base[k]
		bvKind := kindOf(bv)
		if !exists || bvKind == kindNil {
			out[k] = cloneValue(ov)
			continue
		}

		if bvKind != ovKind {
			return nil, &ConfigError{Kind: InvalidOverlayType, Key: path, Base: bvKind.String(), Got: ovKind.String()}
		}

		if ovKind == kindMapping {
			bm, _ := asMap(bv)
			om, _ := asMap(ov)
			merged, err := mergeMaps(path, bm, om)
			if err != nil {
				return nil, err
			}
			if _, ok := bv.(Profile); ok {
				out[k] = Profile(merged)
			} else {
				out[k] = merged
			}
			continue
		}

		out[k] = cloneValue(ov)
	}

	return out, nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
