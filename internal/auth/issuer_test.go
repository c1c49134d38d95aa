package auth

import (
	"encoding/base64"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hs256Token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestIssuerFromHeader(t *testing.T) {
	token := hs256Token(t, jwt.MapClaims{"iss": "did:plc:viewer", "aud": "did:web:feed.example.com"})

	iss, err := IssuerFromHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "did:plc:viewer", iss)
}

func TestIssuerFromHeader_SchemeIsCaseInsensitive(t *testing.T) {
	token := hs256Token(t, jwt.MapClaims{"iss": "did:plc:viewer"})

	for _, scheme := range []string{"bearer ", "BEARER ", "BeArEr "} {
		iss, err := IssuerFromHeader(scheme + token)
		require.NoError(t, err, scheme)
		assert.Equal(t, "did:plc:viewer", iss, scheme)
	}
}

func TestIssuerFromHeader_ES256K(t *testing.T) {
	enc := base64.RawURLEncoding
	token := enc.EncodeToString([]byte(`{"alg":"ES256K","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(`{"iss":"did:plc:k256viewer","aud":"did:web:feed.example.com","exp":9999999999}`)) + "." +
		enc.EncodeToString([]byte("not-a-real-signature"))

	iss, err := IssuerFromHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "did:plc:k256viewer", iss)
}

func TestIssuerFromHeader_Anonymous(t *testing.T) {
	iss, err := IssuerFromHeader("")
	require.NoError(t, err)
	assert.Empty(t, iss)
}

func TestIssuerFromHeader_Malformed(t *testing.T) {
	tests := map[string]string{
		"basic auth":    "Basic dXNlcjpwYXNz",
		"garbage token": "Bearer not.a.jwt",
		"empty token":   "Bearer ",
		"short header":  "Bear",
		"no issuer":     "Bearer " + hs256Token(t, jwt.MapClaims{"sub": "x"}),
		"non-did iss":   "Bearer " + hs256Token(t, jwt.MapClaims{"iss": "alice"}),
	}

	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := IssuerFromHeader(header)
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}
