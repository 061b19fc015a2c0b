package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func serve(auth *Authenticator, token string) (*httptest.ResponseRecorder, common.Address) {
	var seen common.Address
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/staking/mint", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res, seen
}

func TestAuthenticatorResolvesCaller(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "stakingd", Audience: "treasury"}, nil)
	auth.SetNowFunc(func() time.Time { return now })
	caller := common.HexToAddress("0xe2")

	res, seen := serve(auth, sign(t, testSecret, jwt.MapClaims{
		"sub": caller.Hex(),
		"iss": "stakingd",
		"aud": []interface{}{"treasury"},
		"exp": now.Add(time.Minute).Unix(),
	}))
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, caller, seen)
}

func TestAuthenticatorRejects(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "stakingd"}, nil)
	auth.SetNowFunc(func() time.Time { return now })
	caller := common.HexToAddress("0xe2").Hex()

	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong secret", sign(t, "other", jwt.MapClaims{"sub": caller, "iss": "stakingd"})},
		{"wrong issuer", sign(t, testSecret, jwt.MapClaims{"sub": caller, "iss": "elsewhere"})},
		{"expired", sign(t, testSecret, jwt.MapClaims{"sub": caller, "iss": "stakingd", "exp": now.Add(-time.Hour).Unix()})},
		{"non-address subject", sign(t, testSecret, jwt.MapClaims{"sub": "alice", "iss": "stakingd"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, _ := serve(auth, tc.token)
			require.Equal(t, http.StatusUnauthorized, res.Code)
		})
	}
}
