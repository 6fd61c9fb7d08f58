package semver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input      string
		major      int
		minor      int
		patch      int
		prerelease []string
	}{
		{"1.2.3", 1, 2, 3, nil},
		{"v1.2.3", 1, 2, 3, nil},
		{"0.0.0", 0, 0, 0, nil},
		{"1.0.0-alpha", 1, 0, 0, []string{"alpha"}},
		{"1.0.0-alpha.1", 1, 0, 0, []string{"alpha", "1"}},
		{"2.0.0-rc.1+build.456", 2, 0, 0, []string{"rc", "1"}},
		{"1.5.0+20240101.abc123", 1, 5, 0, nil},
		{" 1.2.3 ", 1, 2, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := Parse(tt.input)
			require.NotNil(t, v)
			require.Equal(t, tt.major, v.Major)
			require.Equal(t, tt.minor, v.Minor)
			require.Equal(t, tt.patch, v.Patch)
			require.Equal(t, tt.prerelease, v.Prerelease)
			require.Equal(t, tt.input, v.Original)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"1.2",
		"1",
		"not-a-version",
		"1.2.3.4",
		"01.2.3",  // leading zero
		"1.02.3",  // leading zero
		"1.2.3-",  // empty prerelease
		"1.2.3-a..b",
		"1.2.3-01", // numeric prerelease identifier with leading zero
		"latest",
		"quarantine-1.2.3",
	}

	for _, s := range invalid {
		require.Nil(t, Parse(s), "expected %q to be rejected", s)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.1", -1},
		{"1.0.0", "2.0.0", -1},
		{"2.1.0", "2.0.9", 1},
		{"1.0.0", "1.0.0", 0},
		{"1.0.0-alpha", "1.0.0", -1}, // prerelease < release
		{"1.0.0", "1.0.0-alpha", 1},
		{"1.0.0-alpha", "1.0.0-alpha.1", -1}, // fewer identifiers is lesser
		{"1.0.0-alpha.1", "1.0.0-alpha.beta", -1}, // numeric < alphanumeric
		{"1.0.0-alpha.beta", "1.0.0-beta", -1},
		{"1.0.0-beta.2", "1.0.0-beta.11", -1}, // numeric compared numerically
		{"1.0.0-rc.1", "1.0.0-rc.1", 0},
	}

	for _, tt := range tests {
		a, b := Parse(tt.a), Parse(tt.b)
		require.NotNil(t, a)
		require.NotNil(t, b)
		require.Equal(t, tt.want, Compare(a, b), "Compare(%s, %s)", tt.a, tt.b)
		require.Equal(t, -tt.want, Compare(b, a), "Compare(%s, %s)", tt.b, tt.a)
	}
}

func TestSortDesc(t *testing.T) {
	versions := []string{"1.0.0", "2.1.0", "1.5.3", "2.0.0", "1.10.0"}
	got := SortDesc(versions)
	require.Equal(t, []string{"2.1.0", "2.0.0", "1.10.0", "1.5.3", "1.0.0"}, got)
}

func TestSortDesc_DropsInvalid(t *testing.T) {
	versions := []string{"1.0.0", "2.0.0-alpha", "2.0.0", "1.2.3", "invalid"}
	got := SortDesc(versions)
	require.Equal(t, []string{"2.0.0", "2.0.0-alpha", "1.2.3", "1.0.0"}, got)
}

func TestSortDesc_Empty(t *testing.T) {
	require.Empty(t, SortDesc(nil))
	require.Empty(t, SortDesc([]string{"nope", "also-nope"}))
}

func TestMax(t *testing.T) {
	v, ok := Max([]string{"1.2.3", "1.3.0", "1.2.10"})
	require.True(t, ok)
	require.Equal(t, "1.3.0", v)

	_, ok = Max([]string{"invalid", "bad"})
	require.False(t, ok)
}

func TestBumpPatch(t *testing.T) {
	v, err := BumpPatch("1.2.3")
	require.NoError(t, err)
	require.Equal(t, "1.2.4", v)

	v, err = BumpPatch("v2.0.0")
	require.NoError(t, err)
	require.Equal(t, "2.0.1", v)

	_, err = BumpPatch("invalid")
	require.Error(t, err)
}

// genVersion draws a valid semantic version string.
func genVersion(t *rapid.T) string {
	core := rapid.StringMatching(`(0|[1-9][0-9]{0,2})\.(0|[1-9][0-9]{0,2})\.(0|[1-9][0-9]{0,2})`).Draw(t, "core")
	if rapid.Bool().Draw(t, "hasPre") {
		n := rapid.IntRange(1, 3).Draw(t, "preLen")
		pre := ""
		for i := 0; i < n; i++ {
			if i > 0 {
				pre += "."
			}
			pre += rapid.StringMatching(`(0|[1-9][0-9]{0,2}|[a-z][a-z0-9]{0,3})`).Draw(t, "preID")
		}
		return core + "-" + pre
	}
	return core
}

func TestCompare_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := Parse(genVersion(t))
		b := Parse(genVersion(t))
		c := Parse(genVersion(t))
		if a == nil || b == nil || c == nil {
			t.Fatalf("generator produced unparseable version")
		}

		// Reflexivity and antisymmetry.
		if Compare(a, a) != 0 {
			t.Fatalf("Compare(a, a) != 0 for %s", a.Original)
		}
		if Compare(a, b) != -Compare(b, a) {
			t.Fatalf("antisymmetry violated for %s vs %s", a.Original, b.Original)
		}

		// Transitivity.
		if Compare(a, b) <= 0 && Compare(b, c) <= 0 && Compare(a, c) > 0 {
			t.Fatalf("transitivity violated for %s, %s, %s", a.Original, b.Original, c.Original)
		}
	})
}

func TestSortDesc_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		versions := make([]string, n)
		for i := range versions {
			versions[i] = genVersion(t)
		}

		got := SortDesc(versions)
		if len(got) != len(versions) {
			t.Fatalf("valid versions dropped: %d in, %d out", len(versions), len(got))
		}

		for i := 1; i < len(got); i++ {
			prev, cur := Parse(got[i-1]), Parse(got[i])
			if Compare(prev, cur) < 0 {
				t.Fatalf("not descending at %d: %s < %s", i, got[i-1], got[i])
			}
		}
	})
}
