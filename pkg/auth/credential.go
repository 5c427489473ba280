package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects the credential variant.
type Kind string

// Credential kinds.
const (
	KindNone   Kind = "none"
	KindBasic  Kind = "basic"
	KindBearer Kind = "bearer"
	KindAPIKey Kind = "apiKey"
	KindOAuth2 Kind = "oauth2"
)

// Grant is an OAuth 2.0 grant type.
type Grant string

// Supported grants.
const (
	GrantClientCredentials Grant = "client_credentials"
	GrantPassword          Grant = "password"
	GrantRefreshToken      Grant = "refresh_token"
)

// Errors returned by Validate and Acquire.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenRequest      = errors.New("token request failed")
)

// Credential describes how requests authenticate. Exactly the field that
// matches Kind is used.
type Credential struct {
	Kind   Kind    `json:"type" yaml:"type"`
	Basic  *Basic  `json:"basic,omitempty" yaml:"basic,omitempty"`
	Bearer *Bearer `json:"bearer,omitempty" yaml:"bearer,omitempty"`
	APIKey *APIKey `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	OAuth2 *OAuth2 `json:"oauth2,omitempty" yaml:"oauth2,omitempty"`
}

// Basic is HTTP basic authentication.
type Basic struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Bearer sends a fixed token.
type Bearer struct {
	Token string `json:"token" yaml:"token"`
	// Prefix defaults to "Bearer".
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// APIKey sends a key in a header or query parameter.
type APIKey struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	// In is "header" (default) or "query".
	In string `json:"in,omitempty" yaml:"in,omitempty"`
}

// OAuth2 fetches an access token from TokenURL.
type OAuth2 struct {
	Grant        Grant    `json:"grantType" yaml:"grantType"`
	TokenURL     string   `json:"tokenUrl" yaml:"tokenUrl"`
	ClientID     string   `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	ClientSecret string   `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Username     string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password     string   `json:"password,omitempty" yaml:"password,omitempty"`
	RefreshToken string   `json:"refreshToken,omitempty" yaml:"refreshToken,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// IsZero reports whether no authentication is configured.
func (c Credential) IsZero() bool {
	return c.Kind == "" || c.Kind == KindNone
}

// Validate checks that the variant for Kind is present and complete.
func (c Credential) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidCredential, fmt.Sprintf(format, args...))
	}
	switch c.Kind {
	case "", KindNone:
		return nil
	case KindBasic:
		if c.Basic == nil || c.Basic.Username == "" {
			return invalid("basic: username is required")
		}
	case KindBearer:
		if c.Bearer == nil || c.Bearer.Token == "" {
			return invalid("bearer: token is required")
		}
	case KindAPIKey:
		if c.APIKey == nil || c.APIKey.Name == "" {
			return invalid("apiKey: name is required")
		}
		switch strings.ToLower(c.APIKey.In) {
		case "", "header", "query":
		default:
			return invalid("apiKey: in must be header or query, got %q", c.APIKey.In)
		}
	case KindOAuth2:
		o := c.OAuth2
		if o == nil || o.TokenURL == "" {
			return invalid("oauth2: tokenUrl is required")
		}
		switch o.Grant {
		case GrantClientCredentials:
			if o.ClientID == "" {
				return invalid("oauth2: clientId is required for client_credentials")
			}
		case GrantPassword:
			if o.Username == "" {
				return invalid("oauth2: username is required for password grant")
			}
		case GrantRefreshToken:
			if o.RefreshToken == "" {
				return invalid("oauth2: refreshToken is required for refresh_token grant")
			}
		default:
			return invalid("oauth2: unsupported grant %q", o.Grant)
		}
	default:
		return invalid("unknown type %q", c.Kind)
	}
	return nil
}

// Resolve returns a copy with every string field passed through fn, which
// is how {{placeholders}} in credentials are filled from variables.
func (c Credential) Resolve(fn func(string) (string, error)) (Credential, error) {
	var firstErr error
	r := func(s string) string {
		if firstErr != nil || s == "" {
			return s
		}
		out, err := fn(s)
		if err != nil {
			firstErr = err
			return s
		}
		return out
	}

	out := Credential{Kind: c.Kind}
	if c.Basic != nil {
		out.Basic = &Basic{Username: r(c.Basic.Username), Password: r(c.Basic.Password)}
	}
	if c.Bearer != nil {
		out.Bearer = &Bearer{Token: r(c.Bearer.Token), Prefix: c.Bearer.Prefix}
	}
	if c.APIKey != nil {
		out.APIKey = &APIKey{Name: r(c.APIKey.Name), Value: r(c.APIKey.Value), In: c.APIKey.In}
	}
	if c.OAuth2 != nil {
		o := *c.OAuth2
		o.TokenURL = r(o.TokenURL)
		o.ClientID = r(o.ClientID)
		o.ClientSecret = r(o.ClientSecret)
		o.Username = r(o.Username)
		o.Password = r(o.Password)
		o.RefreshToken = r(o.RefreshToken)
		o.Scopes = append([]string(nil), o.Scopes...)
		out.OAuth2 = &o
	}
	return out, firstErr
}
