package texture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenType(t *testing.T) {
	cases := map[string]string{
		"/r/render.<f>.exr":    "<f>",
		"/r/tex.<UDIM>.exr":    "<UDIM>",
		"/r/plate.####.dpx":    "####",
		"/r/plate.???.dpx":     "???",
		"/r/plain.exr":         "",
		"/r/<f>/plain.1001.ex": "",
	}
	for path, want := range cases {
		assert.Equal(t, want, TokenType(path), path)
	}
}

func TestTokenPattern(t *testing.T) {
	p, err := TokenPattern("<f>")
	require.NoError(t, err)
	assert.Equal(t, `(\d+)`, p)

	p, err = TokenPattern("<udim>")
	require.NoError(t, err)
	assert.Equal(t, `(\d{4})`, p)

	p, err = TokenPattern("???")
	require.NoError(t, err)
	assert.Equal(t, `(\d{3})`, p)

	p, err = TokenPattern("##")
	require.NoError(t, err)
	assert.Equal(t, `(\d{2})`, p)

	p, err = TokenPattern("")
	require.NoError(t, err)
	assert.Empty(t, p)

	_, err = TokenPattern("frame")
	assert.Error(t, err)
}

func TestPathTokenMap_TokenPropagation(t *testing.T) {
	m := NewPathTokenMap(map[string]string{
		"render.<f>.exr": "/out/render.<f>.exr",
	})

	got, err := m.Get("render.1001.exr")
	require.NoError(t, err)
	assert.Equal(t, "/out/render.1001.exr", got)
	assert.True(t, m.Contains("render.7.exr"))
	assert.False(t, m.Contains("render.exr"))
}

func TestPathTokenMap_TemplatedQuery(t *testing.T) {
	m := NewPathTokenMap(map[string]string{
		"/src/shot.0001.exr": "/dst/shot.0001.exr",
	})

	got, err := m.Get("/src/shot.####.exr")
	require.NoError(t, err)
	assert.Equal(t, "/dst/shot.####.exr", got)

	got, err = m.Get("/src/shot.????.exr")
	require.NoError(t, err)
	assert.Equal(t, "/dst/shot.????.exr", got)

	// Wrong digit count and wrong directory do not match.
	_, err = m.Get("/src/shot.###.exr")
	assert.ErrorIs(t, err, ErrNoMapping)
	_, err = m.Get("/other/shot.####.exr")
	assert.ErrorIs(t, err, ErrNoMapping)
}

func TestPathTokenMap_ExactWins(t *testing.T) {
	m := NewPathTokenMap(map[string]string{
		"/src/a.<f>.exr":  "/tpl/a.<f>.exr",
		"/src/a.0005.exr": "/exact/a.0005.exr",
	})
	got, err := m.Get("/src//a.0005.exr")
	require.NoError(t, err)
	assert.Equal(t, "/exact/a.0005.exr", got)

	got, err = m.Get("/src/a.0006.exr")
	require.NoError(t, err)
	assert.Equal(t, "/tpl/a.0006.exr", got)
}

func TestPathTokenMap_Miss(t *testing.T) {
	m := NewPathTokenMap(nil)
	m.Set("/src/a.png", "/dst/a.png")

	_, err := m.Get("/src/b.png")
	assert.ErrorIs(t, err, ErrNoMapping)
	_, ok := m.Lookup("/src/b.png")
	assert.False(t, ok)

	v, ok := m.Lookup("/src/a.png")
	assert.True(t, ok)
	assert.Equal(t, "/dst/a.png", v)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, Mapping{"/src/a.png": "/dst/a.png"}, m.Mapping())
}

func TestPathTokenMap_DeterministicTieBreak(t *testing.T) {
	m := NewPathTokenMap(map[string]string{
		"/a/x.<f>.exr": "/d2/x.<f>.exr",
		"/a/x.<F>.exr": "/d1/x.<F>.exr",
	})
	for i := 0; i < 20; i++ {
		got, err := m.Get("/a/x.12.exr")
		require.NoError(t, err)
		assert.Equal(t, "/d1/x.12.exr", got)
	}

	matches := m.KeyMatches("/a/x.12.exr")
	require.Len(t, matches, 2)
	assert.Equal(t, "/a/x.<F>.exr", matches[0].Key)
	assert.Equal(t, "12", matches[0].Digits)
	assert.True(t, matches[0].Templated)
}

func TestTemplatize(t *testing.T) {
	tpl, digits := Templatize("/p/shot_v2.0012.exr")
	assert.Equal(t, "/p/shot_v2.????.exr", tpl)
	assert.Equal(t, "0012", digits)

	tpl, digits = Templatize("/p2/plain.exr")
	assert.Equal(t, "/p2/plain.exr", tpl)
	assert.Empty(t, digits)

	m := NewPathTokenMap(map[string]string{"/p/a.1001.exr": "/d/a.1001.exr"})
	tpl, _ = Templatize("/p/a.1002.exr")
	got, err := m.Get(tpl)
	require.NoError(t, err)
	assert.Equal(t, "/d/a.????.exr", got)
}

func TestCollapseSequences(t *testing.T) {
	m := CollapseSequences(Mapping{
		"/p/shot.0001.exr":  "/d/shot_1.0001.exr",
		"/p/a.1001.exr":     "/d/a.1001.exr",
		"/p/a.1002.exr":     "/d/a.1002.exr",
		"/p/v2/wood.png":    "/d/wood.png",
		"/p/take3.png":      "/d/take3_1.png",
		"/p/seq.<f>.exr":    "/d/seq.<f>.exr",
		"/p/plate.0100.dpx": "/d/plate.????.dpx",
	})

	// Exact entries are kept and win.
	got, err := m.Get("/p/a.1002.exr")
	require.NoError(t, err)
	assert.Equal(t, "/d/a.1002.exr", got)

	// Siblings of a collapsed entry follow it.
	got, err = m.Get("/p/shot.0002.exr")
	require.NoError(t, err)
	assert.Equal(t, "/d/shot_1.0002.exr", got)
	got, err = m.Get("/p/a.1011.exr")
	require.NoError(t, err)
	assert.Equal(t, "/d/a.1011.exr", got)

	// Entries whose digits change, carry no digits or carry tokens are
	// not collapsed.
	assert.False(t, m.Contains("/p/take4.png"))
	assert.False(t, m.Contains("/p/plate.0101.dpx"))
	assert.Equal(t, 9, m.Len())
}

func TestMapping_LookupAndReverse(t *testing.T) {
	m := Mapping{"/a/x.png": "/d/x.png", "/b/y.png": "/d/y.png"}

	v, ok := m.Lookup("/a//x.png")
	assert.True(t, ok)
	assert.Equal(t, "/d/x.png", v)

	assert.Equal(t, Mapping{"/d/x.png": "/a/x.png", "/d/y.png": "/b/y.png"}, m.Reverse())
	assert.Equal(t, []string{"/a/x.png", "/b/y.png"}, m.Keys())
	assert.True(t, m.Values().Has("/d/y.png"))

	m.Update(Mapping{"/c/z.png": "/d/z.png"})
	assert.Len(t, m, 3)
}
