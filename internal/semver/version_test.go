package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThreeField(t *testing.T) {
	v, err := Parse("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3}, v)
}

func TestParseFourField(t *testing.T) {
	v, err := Parse("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3, Build: 4}, v)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"1.2", "1.2.3.4.5", "a.b.c", "1.2.-3", ""} {
		_, err := Parse(s)
		assert.Errorf(t, err, "expected error for %q", s)
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	cases := []string{"0.0.0", "1.2.3", "1.2.3.4", "10.20.30.40"}
	for _, s := range cases {
		v, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, v.String())
	}
}

func TestStringOmitsZeroBuild(t *testing.T) {
	v := Version{Major: 1, Minor: 0, Patch: 0}
	assert.Equal(t, "1.0.0", v.String())
}

func TestCompareLexicographic(t *testing.T) {
	assert.Equal(t, -1, Compare(Version{1, 0, 0, 0}, Version{2, 0, 0, 0}))
	assert.Equal(t, 1, Compare(Version{1, 1, 0, 0}, Version{1, 0, 9, 9}))
	assert.Equal(t, 0, Compare(Version{1, 2, 3, 4}, Version{1, 2, 3, 4}))
	assert.Equal(t, -1, Compare(Version{1, 2, 3, 0}, Version{1, 2, 3, 1}))
}

func TestCompareAntisymmetric(t *testing.T) {
	a := Version{1, 2, 3, 0}
	b := Version{1, 2, 4, 0}
	assert.Equal(t, -Compare(a, b), Compare(b, a))
}

func TestRangeSatisfiesBounded(t *testing.T) {
	r := Range{Min: Version{1, 0, 0, 0}, Max: Version{2, 0, 0, 0}, HasMax: true}
	assert.True(t, r.Satisfies(Version{1, 5, 0, 0}))
	assert.True(t, r.Satisfies(Version{1, 0, 0, 0}))
	assert.True(t, r.Satisfies(Version{2, 0, 0, 0}))
	assert.False(t, r.Satisfies(Version{0, 9, 0, 0}))
	assert.False(t, r.Satisfies(Version{2, 0, 0, 1}))
}

func TestRangeSatisfiesUnbounded(t *testing.T) {
	r := Range{Min: Version{1, 0, 0, 0}}
	assert.True(t, r.Satisfies(Version{99, 0, 0, 0}))
	assert.False(t, r.Satisfies(Version{0, 9, 9, 9}))
}

func TestIsPrerelease(t *testing.T) {
	assert.False(t, Version{1, 0, 0, 0}.IsPrerelease())
	assert.True(t, Version{1, 0, 0, 1}.IsPrerelease())
}
