package semver

import (
	"fmt"
	"testing"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected Version
		wantErr  bool
	}{
		{name: "plain", input: "1.2.3", expected: Version{Major: 1, Minor: 2, Patch: 3}},
		{name: "zeros", input: "0.0.0", expected: Version{}},
		{
			name:     "prerelease",
			input:    "2.0.1-beta.1",
			expected: Version{Major: 2, Patch: 1, Prerelease: "beta.1"},
		},
		{name: "two parts", input: "1.2", wantErr: true},
		{name: "four parts", input: "1.2.3.4", wantErr: true},
		{name: "letters", input: "1.x.3", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-1.2.3", wantErr: true},
		{name: "plus sign", input: "+1.2.3", wantErr: true},
		{name: "empty prerelease", input: "1.2.3-", wantErr: true},
		{name: "overflow", input: "1.2.99999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errorcodes.ErrParse)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for major := uint32(0); major < 4; major++ {
		for minor := uint32(0); minor < 12; minor += 3 {
			for patch := uint32(0); patch < 25; patch += 7 {
				s := fmt.Sprintf("%d.%d.%d", major, minor, patch)
				v, err := Parse(s)
				require.NoError(t, err)
				assert.Equal(t, s, v.String())
			}
		}
	}

	v := MustParse("3.1.4-rc.2")
	assert.Equal(t, "3.1.4-rc.2", v.String())
}

func TestCompatibility(t *testing.T) {
	t.Parallel()

	versions := []string{"0.1.0", "0.9.9", "1.0.0", "1.4.2", "1.4.2-alpha", "2.0.0", "10.3.1"}
	for _, a := range versions {
		for _, b := range versions {
			va, vb := MustParse(a), MustParse(b)
			assert.Equal(t, va.Major == vb.Major, va.IsCompatibleWith(vb), "%s vs %s", a, b)
		}
	}
}

func TestIsAtLeast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v, target string
		expected  bool
	}{
		{"1.0.0", "1.0.0", true},
		{"1.2.0", "1.1.9", true},
		{"1.1.9", "1.2.0", false},
		{"2.0.0", "1.9.9", true},
		{"1.0.1", "1.0.2", false},
		{"1.0.0-beta", "1.0.0", true},
		{"1.0.0", "1.0.0-rc.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.v+">="+tt.target, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, MustParse(tt.v).IsAtLeast(MustParse(tt.target)))
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustParse("nope") })
}
