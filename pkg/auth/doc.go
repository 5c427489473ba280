// Package auth turns a credential description into request material.
//
// A Credential is a tagged union over the supported schemes (basic,
// bearer, API key and the OAuth 2.0 client_credentials, password and
// refresh_token grants). Acquirer.Acquire resolves a credential into the
// headers and query parameters to attach to every request of a run;
// OAuth tokens are fetched from the token endpoint and cached until shortly
// before they expire.
package auth
