package auth

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenDecoder_Decode(t *testing.T) {
	exp := testNow.Add(time.Hour)
	raw := tokenFor(t, "Admin", exp)

	claims, err := NewTokenDecoder().Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.SubjectID)
	assert.Equal(t, "ops@example.org", claims.Email)
	assert.Equal(t, "Ops", claims.DisplayName)
	assert.Equal(t, "Admin", claims.Role)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.ExpiresAt.Equal(exp.Truncate(time.Second)))
	require.NotNil(t, claims.IssuedAt)
}

func TestTokenDecoder_IgnoresSignature(t *testing.T) {
	raw := tokenFor(t, "admin", testNow.Add(time.Hour))
	tampered := raw[:len(raw)-4] + "AAAA"

	claims, err := NewTokenDecoder().Decode(tampered)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.SubjectID)
}

func TestTokenDecoder_AcceptsBearerPrefixAndAliases(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{"userId": "abc", "displayName": "Dana", "role": "donor"})

	claims, err := NewTokenDecoder().Decode("Bearer " + raw)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.SubjectID)
	assert.Equal(t, "Dana", claims.DisplayName)
	assert.Nil(t, claims.ExpiresAt)
}

func TestTokenDecoder_Malformed(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	header := enc([]byte(`{"alg":"HS256","typ":"JWT"}`))

	cases := map[string]string{
		"empty":            "",
		"two segments":     "abc.def",
		"four segments":    "a.b.c.d",
		"payload not b64":  header + ".!!!.sig",
		"payload not json": header + "." + enc([]byte("not json")) + ".sig",
		"payload array":    header + "." + enc([]byte(`[1,2]`)) + ".sig",
		"exp wrong type":   header + "." + enc([]byte(`{"exp":"tomorrow"}`)) + ".sig",
		"header not json":  enc([]byte("nope")) + "." + enc([]byte(`{}`)) + ".sig",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTokenDecoder().Decode(raw)
			require.Error(t, err)
			assert.True(t, IsDecodeError(err))
		})
	}
}

func TestTokenDecoder_UnknownAlgorithmStillDecodes(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	raw := enc([]byte(`{"alg":"XYZ512"}`)) + "." + enc([]byte(`{"sub":"u9","role":"admin"}`)) + ".c2ln"

	claims, err := NewTokenDecoder().Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.SubjectID)
}

func TestTokenDecoder_AcceptsPaddedSegments(t *testing.T) {
	payload := fmt.Sprintf(`{"sub":"user-9","role":"donor","exp":%d}`, testNow.Add(time.Hour).Unix())
	for len(payload)%3 == 0 {
		payload += " "
	}
	header := base64.URLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.URLEncoding.EncodeToString([]byte(payload))
	require.Contains(t, body, "=")

	claims, err := NewTokenDecoder().Decode(header + "." + body + ".c2ln")
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.SubjectID)
	assert.Equal(t, "donor", claims.Role)
}
