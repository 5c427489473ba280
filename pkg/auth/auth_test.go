package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_StaticKinds(t *testing.T) {
	tests := []struct {
		name       string
		cred       Credential
		wantHeader map[string]string
		wantQuery  map[string]string
	}{
		{
			name: "none",
			cred: Credential{Kind: KindNone},
		},
		{
			name:       "basic",
			cred:       Credential{Kind: KindBasic, Basic: &Basic{Username: "ann", Password: "s3cret"}},
			wantHeader: map[string]string{"Authorization": "Basic YW5uOnMzY3JldA=="},
		},
		{
			name:       "opaque bearer",
			cred:       Credential{Kind: KindBearer, Bearer: &Bearer{Token: "abc123"}},
			wantHeader: map[string]string{"Authorization": "Bearer abc123"},
		},
		{
			name:       "api key header",
			cred:       Credential{Kind: KindAPIKey, APIKey: &APIKey{Name: "X-API-Key", Value: "k1"}},
			wantHeader: map[string]string{"X-API-Key": "k1"},
		},
		{
			name:      "api key query",
			cred:      Credential{Kind: KindAPIKey, APIKey: &APIKey{Name: "key", Value: "k1", In: "query"}},
			wantQuery: map[string]string{"key": "k1"},
		},
	}

	a := NewAcquirer(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := a.Acquire(context.Background(), tt.cred)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeader, m.Headers)
			assert.Equal(t, tt.wantQuery, m.Query)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cred Credential
	}{
		{"basic without variant", Credential{Kind: KindBasic}},
		{"bearer without token", Credential{Kind: KindBearer, Bearer: &Bearer{}}},
		{"api key bad location", Credential{Kind: KindAPIKey, APIKey: &APIKey{Name: "k", In: "cookie"}}},
		{"oauth without url", Credential{Kind: KindOAuth2, OAuth2: &OAuth2{Grant: GrantClientCredentials}}},
		{"oauth bad grant", Credential{Kind: KindOAuth2, OAuth2: &OAuth2{Grant: "implicit", TokenURL: "http://x"}}},
		{"oauth password without user", Credential{Kind: KindOAuth2, OAuth2: &OAuth2{Grant: GrantPassword, TokenURL: "http://x"}}},
		{"unknown kind", Credential{Kind: "digest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cred.Validate(), ErrInvalidCredential)
		})
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ann", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestAcquire_BearerJWTExpiry(t *testing.T) {
	a := NewAcquirer(nil, nil)

	valid := signedToken(t, time.Now().Add(time.Hour))
	m, err := a.Acquire(context.Background(), Credential{Kind: KindBearer, Bearer: &Bearer{Token: valid}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+valid, m.Headers["Authorization"])

	expired := signedToken(t, time.Now().Add(-time.Minute))
	_, err = a.Acquire(context.Background(), Credential{Kind: KindBearer, Bearer: &Bearer{Token: expired}})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func tokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		var token string
		switch r.PostForm.Get("grant_type") {
		case "client_credentials":
			if r.PostForm.Get("client_secret") != "shh" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
				return
			}
			token = "cc-" + r.PostForm.Get("scope")
		case "password":
			token = "pw-" + r.PostForm.Get("username")
		case "refresh_token":
			token = "rt-" + r.PostForm.Get("refresh_token")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAcquire_OAuth2Grants(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)

	tests := []struct {
		name string
		o    OAuth2
		want string
	}{
		{
			name: "client credentials",
			o:    OAuth2{Grant: GrantClientCredentials, TokenURL: srv.URL, ClientID: "app", ClientSecret: "shh", Scopes: []string{"read", "write"}},
			want: "Bearer cc-read write",
		},
		{
			name: "password",
			o:    OAuth2{Grant: GrantPassword, TokenURL: srv.URL, ClientID: "app", Username: "ann", Password: "pw"},
			want: "Bearer pw-ann",
		},
		{
			name: "refresh token",
			o:    OAuth2{Grant: GrantRefreshToken, TokenURL: srv.URL, RefreshToken: "r1"},
			want: "Bearer rt-r1",
		},
	}

	a := NewAcquirer(srv.Client(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.o
			m, err := a.Acquire(context.Background(), Credential{Kind: KindOAuth2, OAuth2: &o})
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Headers["Authorization"])
		})
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestAcquire_OAuth2Caching(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)

	now := time.Now()
	a := NewAcquirer(srv.Client(), nil)
	a.now = func() time.Time { return now }

	cred := Credential{Kind: KindOAuth2, OAuth2: &OAuth2{Grant: GrantPassword, TokenURL: srv.URL, Username: "ann"}}
	source := a.Source(cred)

	for range 3 {
		_, err := source(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())

	// past expires_in minus the refresh buffer
	now = now.Add(time.Hour)
	_, err := source(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAcquire_OAuth2Failure(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)

	a := NewAcquirer(srv.Client(), nil)
	_, err := a.Acquire(context.Background(), Credential{Kind: KindOAuth2, OAuth2: &OAuth2{
		Grant: GrantClientCredentials, TokenURL: srv.URL, ClientID: "app", ClientSecret: "wrong",
	}})
	require.ErrorIs(t, err, ErrTokenRequest)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestCredential_Resolve(t *testing.T) {
	cred := Credential{Kind: KindOAuth2, OAuth2: &OAuth2{
		Grant:        GrantClientCredentials,
		TokenURL:     "{{authBase}}/token",
		ClientID:     "app",
		ClientSecret: "{{secret}}",
	}}
	vars := map[string]string{"{{authBase}}": "https://auth.test", "{{secret}}": "shh"}

	resolved, err := cred.Resolve(func(s string) (string, error) {
		for k, v := range vars {
			s = strings.ReplaceAll(s, k, v)
		}
		return s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "https://auth.test/token", resolved.OAuth2.TokenURL)
	assert.Equal(t, "shh", resolved.OAuth2.ClientSecret)
	assert.Equal(t, "{{secret}}", cred.OAuth2.ClientSecret)
}

func TestAcquire_BearerPrefix(t *testing.T) {
	m, err := NewAcquirer(nil, nil).Acquire(context.Background(), Credential{
		Kind:   KindBearer,
		Bearer: &Bearer{Token: "t", Prefix: "Token"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Token t", m.Headers["Authorization"])
}
