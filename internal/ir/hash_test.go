package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	doc := IRObject{
		"functions": Strings([]string{"math.add", "io.read"}),
		"version":   IRString(IRVersion),
	}

	a, err := Fingerprint(doc)
	require.NoError(t, err)
	b, err := Fingerprint(IRObject{
		"version":   IRString(IRVersion),
		"functions": Strings([]string{"math.add", "io.read"}),
	})
	require.NoError(t, err)

	assert.Equal(t, a, b, "key order must not affect the fingerprint")
	assert.Len(t, a, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a, err := Fingerprint(IRObject{"f": IRString("math.add")})
	require.NoError(t, err)
	b, err := Fingerprint(IRObject{"f": IRString("math.sub")})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain("x/v1", data), hashWithDomain("y/v1", data))
}
