package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quantum-inspire/qi-go/credentials"
	"golang.org/x/oauth2"
)

const (
	codeVerifierLength  = 32
	wellKnownPathSuffix = "/.well-known/openid-configuration"
)

// authConfig is the service's advertised authentication configuration.
type authConfig struct {
	ClientID          string `json:"client_id"`
	Audience          string `json:"audience"`
	WellKnownEndpoint string `json:"well_known_endpoint"`
}

// Login runs the interactive authorization flow: it discovers the
// OAuth endpoints from the host's auth configuration, starts a
// localhost callback listener on an ephemeral port, opens the user's
// browser to the authorization page, waits for the callback, exchanges
// the authorization code, and persists the credential.
func (s *Session) Login(ctx context.Context) error {
	cfg, err := s.fetchAuthConfig(ctx)
	if err != nil {
		return err
	}

	endpoint, err := s.discoverEndpoints(ctx, cfg.WellKnownEndpoint)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return errors.Wrap(err, "[Login] failed to start callback listener")
	}
	defer listener.Close()

	verifier := generateRandomString(codeVerifierLength)
	state := uuid.NewString()

	oauthCfg := &oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    endpoint,
		RedirectURL: fmt.Sprintf("http://%s/callback", listener.Addr()),
		Scopes:      strings.Fields(defaultScope),
	}

	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("audience", cfg.Audience),
	)

	results := make(chan callbackResult, 1)
	srv := newCallbackServer(state, results)
	go srv.Serve(listener)
	defer srv.Close()

	s.notifyURL(authURL)
	if err := s.openBrowser(authURL); err != nil {
		// Not fatal: the notify hook has surfaced the URL already.
		s.logger.Debug().Err(err).Msg("could not open browser")
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-time.After(s.loginTimeout):
		return ErrAuthTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	if res.err != nil {
		return res.err
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := oauthCfg.Exchange(exchangeCtx, res.code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		return &ProtocolError{Reason: "code exchange failed: " + err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = credentials.Credential{
		ClientID: cfg.ClientID,
		TokenURL: endpoint.TokenURL,
	}
	return s.storeTokenLocked(tok)
}

// fetchAuthConfig asks the host which OAuth client and issuer to use,
// mirroring the service's /auth_config endpoint.
func (s *Session) fetchAuthConfig(ctx context.Context) (authConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.host+"/auth_config", nil)
	if err != nil {
		return authConfig{}, errors.Wrap(err, "[Login] failed to build auth config request")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return authConfig{}, errors.Wrap(err, "[Login] failed to fetch auth config")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return authConfig{}, &ProtocolError{
			Reason: fmt.Sprintf("auth config request returned status %d", resp.StatusCode),
		}
	}

	var cfg authConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return authConfig{}, &ProtocolError{Reason: "invalid auth config payload: " + err.Error()}
	}
	if cfg.ClientID == "" || cfg.WellKnownEndpoint == "" {
		return authConfig{}, &ProtocolError{Reason: "auth config is missing client_id or well_known_endpoint"}
	}
	return cfg, nil
}

// discoverEndpoints resolves the authorization and token endpoints
// from the issuer's OIDC discovery document.
func (s *Session) discoverEndpoints(ctx context.Context, wellKnown string) (oauth2.Endpoint, error) {
	issuer := strings.TrimSuffix(wellKnown, wellKnownPathSuffix)
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, s.httpClient), issuer)
	if err != nil {
		return oauth2.Endpoint{}, &ProtocolError{Reason: "endpoint discovery failed: " + err.Error()}
	}
	endpoint := provider.Endpoint()
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		return oauth2.Endpoint{}, &ProtocolError{Reason: "discovery document is missing authorization or token endpoint"}
	}
	return endpoint, nil
}

// generateRandomString creates a random base64url string.
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// generateCodeChallenge creates a PKCE code challenge from a verifier.
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
