package profile

import (
	"errors"
	"maps"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		base     Profile
		overlay  Profile
		expected Profile
	}{
		{
			name:     "empty overlay keeps base",
			base:     Profile{"outputPath": "/dist", "sourceMap": false},
			overlay:  Profile{},
			expected: Profile{"outputPath": "/dist", "sourceMap": false},
		},
		{
			name:     "overlay scalar wins",
			base:     Profile{"outputPath": "/dist", "sourceMap": false},
			overlay:  Profile{"sourceMap": true},
			expected: Profile{"outputPath": "/dist", "sourceMap": true},
		},
		{
			name:     "overlay adds new key",
			base:     Profile{"outputPath": "/dist"},
			overlay:  Profile{"publicPath": "/static/"},
			expected: Profile{"outputPath": "/dist", "publicPath": "/static/"},
		},
		{
			name: "nested mappings merge recursively",
			base: Profile{"html": map[string]any{
				"inject": true,
				"minify": map[string]any{"removeComments": true, "collapseWhitespace": true},
			}},
			overlay: Profile{"html": map[string]any{
				"minify": map[string]any{"collapseWhitespace": false},
			}},
			expected: Profile{"html": map[string]any{
				"inject": true,
				"minify": map[string]any{"removeComments": true, "collapseWhitespace": false},
			}},
		},
		{
			name:     "nil overlay value keeps base",
			base:     Profile{"outputPath": "/dist"},
			overlay:  Profile{"outputPath": nil},
			expected: Profile{"outputPath": "/dist"},
		},
		{
			name:     "nil base value takes overlay",
			base:     Profile{"indexPath": nil},
			overlay:  Profile{"indexPath": "public/index.html"},
			expected: Profile{"indexPath": "public/index.html"},
		},
		{
			name:     "sequences replace",
			base:     Profile{"productionGzipExtensions": []any{"js", "css"}},
			overlay:  Profile{"productionGzipExtensions": []any{"html"}},
			expected: Profile{"productionGzipExtensions": []any{"html"}},
		},
		{
			name:     "int and float are both numbers",
			base:     Profile{"minChunkSize": 30000},
			overlay:  Profile{"minChunkSize": 1024.0},
			expected: Profile{"minChunkSize": 1024.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := Merge(tt.base, tt.overlay)
			require.NoError(t, err)
			require.Equal(t, tt.expected, merged)
		})
	}
}

func TestMerge_InvalidOverlayType(t *testing.T) {
	tests := []struct {
		name    string
		base    Profile
		overlay Profile
		key     string
	}{
		{
			name:    "string replaced by bool",
			base:    Profile{"outputPath": "/dist"},
			overlay: Profile{"outputPath": true},
			key:     "outputPath",
		},
		{
			name:    "mapping replaced by scalar",
			base:    Profile{"html": map[string]any{"inject": true}},
			overlay: Profile{"html": "index.html"},
			key:     "html",
		},
		{
			name:    "nested conflict reports dotted path",
			base:    Profile{"html": map[string]any{"minify": map[string]any{"removeComments": true}}},
			overlay: Profile{"html": map[string]any{"minify": map[string]any{"removeComments": "yes"}}},
			key:     "html.minify.removeComments",
		},
		{
			name:    "number replaced by string",
			base:    Profile{"minChunkSize": 30000},
			overlay: Profile{"minChunkSize": "30kb"},
			key:     "minChunkSize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(tt.base, tt.overlay)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalidOverlayType)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			require.Equal(t, InvalidOverlayType, cfgErr.Kind)
			require.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	base := Profile{"html": map[string]any{"minify": map[string]any{"removeComments": true}}}
	overlay := Profile{"html": map[string]any{"minify": map[string]any{"removeComments": false}}}

	merged, err := Merge(base, overlay)
	require.NoError(t, err)

	merged["html"].(map[string]any)["minify"].(map[string]any)["removeComments"] = "changed"

	v, ok := base.Lookup("html.minify.removeComments")
	require.True(t, ok)
	require.Equal(t, true, v)

	v, ok = overlay.Lookup("html.minify.removeComments")
	require.True(t, ok)
	require.Equal(t, false, v)
}

func genScalar() *rapid.Generator[any] {
	return rapid.OneOf(
		rapid.Map(rapid.String(), func(s string) any { return s }),
		rapid.Map(rapid.Bool(), func(b bool) any { return b }),
		rapid.Map(rapid.IntRange(0, 1<<20), func(i int) any { return i }),
	)
}

func genProfile(keys *rapid.Generator[string]) *rapid.Generator[Profile] {
	return rapid.Custom(func(t *rapid.T) Profile {
		p := Profile{}
		for k, v := range rapid.MapOf(keys, genScalar()).Draw(t, "entries") {
			p[k] = v
		}
		switch rapid.IntRange(0, 2).Draw(t, "nested") {
		case 1:
			p["x_nested"] = map[string]any(rapid.MapOf(keys, genScalar()).Draw(t, "nestedEntries"))
		case 2:
			p["x_nested"] = rapid.MapOf(keys, rapid.String()).Draw(t, "typedEntries")
		}
		return p
	})
}

func TestMerge_IdentityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := genProfile(rapid.StringMatching(`[a-z]{1,6}`)).Draw(t, "base")

		merged, err := Merge(base, Profile{})
		require.NoError(t, err)
		require.Equal(t, base, merged)
	})
}

func TestMerge_DisjointOverlaysCommute(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := genProfile(rapid.StringMatching(`[a-z]{1,6}`)).Draw(t, "base")
		a := genProfile(rapid.StringMatching(`a_[a-z]{1,4}`)).Draw(t, "a")
		b := rapid.MapOf(rapid.StringMatching(`b_[a-z]{1,4}`), genScalar()).Draw(t, "b")

		union := Profile{}
		maps.Copy(union, a)
		maps.Copy(union, b)

		ab, err := Merge(base, a)
		require.NoError(t, err)
		ab, err = Merge(ab, Profile(b))
		require.NoError(t, err)

		ba, err := Merge(base, Profile(b))
		require.NoError(t, err)
		ba, err = Merge(ba, a)
		require.NoError(t, err)

		all, err := Merge(base, union)
		require.NoError(t, err)

		require.Equal(t, ab, ba)
		require.Equal(t, all, ab)
	})
}

func TestMerge_NeverDropsBaseKeys(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.StringMatching(`[a-z]{1,3}`)
		base := genProfile(keys).Draw(t, "base")
		overlay := genProfile(keys).Draw(t, "overlay")

		merged, err := Merge(base, overlay)
		if err != nil {
			require.ErrorIs(t, err, ErrInvalidOverlayType)
			return
		}
		requireKeysKept(t, "", base, merged)
	})
}

func requireKeysKept(t require.TestingT, prefix string, base, merged map[string]any) {
	for k, bv := range base {
		mv, ok := merged[k]
		require.True(t, ok, "base key %q dropped", joinPath(prefix, k))

		bm, bIsMap := asMap(bv)
		mm, mIsMap := asMap(mv)
		if bIsMap && mIsMap {
			requireKeysKept(t, joinPath(prefix, k), bm, mm)
		}
	}
}

func TestMerge_TypedNestedMapping(t *testing.T) {
	tests := []struct {
		name    string
		base    Profile
		overlay Profile
		want    Profile
		is      error
	}{
		{
			name:    "typed overlay merges into base mapping",
			base:    Profile{"define": map[string]any{"A": "1", "B": "2"}},
			overlay: Profile{"define": map[string]string{"B": "3"}},
			want:    Profile{"define": map[string]any{"A": "1", "B": "3"}},
		},
		{
			name:    "typed base takes untyped overlay",
			base:    Profile{"define": map[string]string{"A": "1"}},
			overlay: Profile{"define": map[string]any{"B": "2"}},
			want:    Profile{"define": map[string]any{"A": "1", "B": "2"}},
		},
		{
			name:    "typed overlay value conflicts",
			base:    Profile{"define": map[string]any{"A": true}},
			overlay: Profile{"define": map[string]string{"A": "yes"}},
			is:      ErrInvalidOverlayType,
		},
		{
			name:    "non string keys are not a mapping",
			base:    Profile{"define": map[string]any{"A": "1"}},
			overlay: Profile{"define": map[int]string{1: "x"}},
			is:      ErrInvalidOverlayType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := Merge(tt.base, tt.overlay)
			if tt.is != nil {
				require.ErrorIs(t, err, tt.is)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, merged)
		})
	}
}

func TestMerge_PreservesNestedTypes(t *testing.T) {
	base := Profile{
		"html":   Profile{"inject": true},
		"define": map[string]string{"A": "1"},
	}

	merged, err := Merge(base, Profile{})
	require.NoError(t, err)
	require.Equal(t, base, merged)

	merged["define"].(map[string]string)["A"] = "changed"
	require.Equal(t, "1", base["define"].(map[string]string)["A"])

	merged, err = Merge(base, Profile{"html": Profile{"inject": false}})
	require.NoError(t, err)
	require.Equal(t, Profile{"inject": false}, merged["html"])
}
