package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/httpclient"
)

// DefaultTokenInfoURL is Google's ID token introspection endpoint.
const DefaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleIdentity is the verified subject of a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier checks Google sign-in credentials.
type GoogleVerifier struct {
	client       httpclient.Doer
	clientID     string
	tokenInfoURL string
}

// NewGoogleVerifier creates a verifier that accepts tokens issued for clientID.
func NewGoogleVerifier(client httpclient.Doer, clientID, tokenInfoURL string) *GoogleVerifier {
	if tokenInfoURL == "" {
		tokenInfoURL = DefaultTokenInfoURL
	}
	return &GoogleVerifier{client: client, clientID: clientID, tokenInfoURL: tokenInfoURL}
}

type tokenInfo struct {
	Aud           string `json:"aud"`
	Iss           string `json:"iss"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
}

// ErrInvalidGoogleToken is returned for tokens Google rejects or that were
// issued for another client.
var ErrInvalidGoogleToken = errors.New("invalid google credential")

// Verify asks Google to validate the ID token and checks audience, issuer and
// email verification.
func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (*GoogleIdentity, error) {
	if v.clientID == "" {
		return nil, fmt.Errorf("google sign-in is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		v.tokenInfoURL+"?id_token="+url.QueryEscape(credential), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build tokeninfo request: %w", err)
	}

	resp, err := v.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("google tokeninfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		perr := httpclient.ParseResponseError(resp, "google")
		if httpclient.IsClientError(resp.StatusCode) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidGoogleToken, perr)
		}
		return nil, perr
	}
	defer func() { _ = resp.Body.Close() }()

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode tokeninfo: %w", err)
	}

	switch {
	case info.Aud != v.clientID:
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidGoogleToken)
	case info.Iss != "accounts.google.com" && info.Iss != "https://accounts.google.com":
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidGoogleToken, info.Iss)
	case info.EmailVerified != "true" || info.Email == "":
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidGoogleToken)
	case info.Sub == "":
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidGoogleToken)
	}

	return &GoogleIdentity{Subject: info.Sub, Email: info.Email, Name: info.Name}, nil
}
