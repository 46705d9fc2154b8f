package auditor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare domain gets https", "Example.com", "https://example.com"},
		{"host is lower-cased", "https://EXAMPLE.com/Path", "https://example.com/Path"},
		{"trailing slash trimmed", "https://example.com/page/", "https://example.com/page"},
		{"fragment dropped", "https://example.com/page#section", "https://example.com/page"},
		{"query survives", "https://example.com/page?v=2", "https://example.com/page?v=2"},
		{"surrounding space trimmed", "  https://example.com  ", "https://example.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalizeRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "   ", "https://"} {
		_, err := Canonicalize(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("https://example.com")
	b := Fingerprint("https://example.com")
	c := Fingerprint("https://example.org")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}

func TestEquivalentSpellingsShareFingerprint(t *testing.T) {
	variants := []string{
		"https://Example.com/page/",
		"https://example.com/page#top",
		"https://example.com/page",
	}

	var keys []string
	for _, v := range variants {
		canonical, err := Canonicalize(v)
		require.NoError(t, err)
		keys = append(keys, Fingerprint(canonical))
	}

	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[1], keys[2])
}
