package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/getmockd/reqchain/pkg/logging"
)

// tokenRefreshBuffer is how long before expiry a cached token is replaced.
const tokenRefreshBuffer = 30 * time.Second

// Material is what a credential contributes to each request.
type Material struct {
	Headers map[string]string
	Query   map[string]string
}

// IsZero reports whether the material adds nothing.
func (m Material) IsZero() bool {
	return len(m.Headers) == 0 && len(m.Query) == 0
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Acquirer resolves credentials and caches OAuth tokens. It is safe for
// concurrent use.
type Acquirer struct {
	client Doer
	log    *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	tokens map[string]cachedToken
}

type cachedToken struct {
	header  string
	expires time.Time
}

// NewAcquirer creates an acquirer that calls token endpoints with client.
// A nil client uses http.DefaultClient.
func NewAcquirer(client Doer, log *slog.Logger) *Acquirer {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Acquirer{
		client: client,
		log:    log,
		now:    time.Now,
		tokens: make(map[string]cachedToken),
	}
}

// Acquire returns the request material for cred.
func (a *Acquirer) Acquire(ctx context.Context, cred Credential) (Material, error) {
	if err := cred.Validate(); err != nil {
		return Material{}, err
	}

	switch cred.Kind {
	case KindBasic:
		raw := cred.Basic.Username + ":" + cred.Basic.Password
		return headerMaterial("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(raw))), nil
	case KindBearer:
		if exp, ok := jwtExpiry(cred.Bearer.Token); ok && !exp.After(a.now()) {
			return Material{}, fmt.Errorf("%w: bearer token expired at %s", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
		}
		prefix := cred.Bearer.Prefix
		if prefix == "" {
			prefix = "Bearer"
		}
		return headerMaterial("Authorization", prefix+" "+cred.Bearer.Token), nil
	case KindAPIKey:
		if strings.EqualFold(cred.APIKey.In, "query") {
			return Material{Query: map[string]string{cred.APIKey.Name: cred.APIKey.Value}}, nil
		}
		return headerMaterial(cred.APIKey.Name, cred.APIKey.Value), nil
	case KindOAuth2:
		header, err := a.oauthToken(ctx, cred.OAuth2)
		if err != nil {
			return Material{}, err
		}
		return headerMaterial("Authorization", header), nil
	default:
		return Material{}, nil
	}
}

// Source returns a function that acquires cred on every call. Cached OAuth
// tokens make repeated calls cheap.
func (a *Acquirer) Source(cred Credential) func(context.Context) (Material, error) {
	return func(ctx context.Context) (Material, error) {
		return a.Acquire(ctx, cred)
	}
}

func headerMaterial(name, value string) Material {
	return Material{Headers: map[string]string{name: value}}
}

// jwtExpiry returns the exp claim of a JWT. Opaque tokens and tokens
// without exp report false. The signature is never verified.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Acquirer) oauthToken(ctx context.Context, o *OAuth2) (string, error) {
	key := strings.Join([]string{string(o.Grant), o.TokenURL, o.ClientID, o.Username, strings.Join(o.Scopes, " ")}, "\x00")

	a.mu.Lock()
	if tok, ok := a.tokens[key]; ok && a.now().Before(tok.expires) {
		a.mu.Unlock()
		return tok.header, nil
	}
	a.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", string(o.Grant))
	if o.ClientID != "" {
		form.Set("client_id", o.ClientID)
	}
	if o.ClientSecret != "" {
		form.Set("client_secret", o.ClientSecret)
	}
	if len(o.Scopes) > 0 {
		form.Set("scope", strings.Join(o.Scopes, " "))
	}
	switch o.Grant {
	case GrantPassword:
		form.Set("username", o.Username)
		form.Set("password", o.Password)
	case GrantRefreshToken:
		form.Set("refresh_token", o.RefreshToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenRequest, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", ErrTokenRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s returned %d: %s", ErrTokenRequest, o.TokenURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrTokenRequest, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: response has no access_token", ErrTokenRequest)
	}

	tokenType := tr.TokenType
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	header := tokenType + " " + tr.AccessToken

	expires := a.now().Add(time.Hour)
	if tr.ExpiresIn > 0 {
		expires = a.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenRefreshBuffer)
	} else if exp, ok := jwtExpiry(tr.AccessToken); ok {
		expires = exp.Add(-tokenRefreshBuffer)
	}

	a.mu.Lock()
	a.tokens[key] = cachedToken{header: header, expires: expires}
	a.mu.Unlock()

	a.log.Debug("acquired oauth2 token", "grant", o.Grant, "token_url", o.TokenURL, "expires_in", tr.ExpiresIn)
	return header, nil
}
