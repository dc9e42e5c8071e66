// Package auth owns the credential lifecycle for one API host:
// interactive browser login, transparent refresh, and thread-safe
// access to a currently-valid token.
package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/quantum-inspire/qi-go/credentials"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// expiryMargin is how long before the recorded expiry a token is
	// already treated as stale, so a request never races the deadline.
	expiryMargin = 5 * time.Second

	defaultLoginTimeout = 10 * time.Minute
	defaultScope        = "openid profile email offline_access"
)

// Session binds a credential to a target host. One Session per process
// invocation; it is safe for concurrent use, and at most one refresh
// or login sequence runs at a time.
type Session struct {
	host         string
	store        *credentials.Store
	staticToken  string
	httpClient   *http.Client
	logger       zerolog.Logger
	margin       time.Duration
	loginTimeout time.Duration
	openBrowser  func(url string) error
	notifyURL    func(url string)
	nowTime      func() time.Time

	mu      sync.Mutex
	cred    credentials.Credential
	loaded  bool
	expired bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStaticToken bypasses login and refresh entirely, using the given
// access token for every request.
func WithStaticToken(token string) SessionOption {
	return func(s *Session) { s.staticToken = token }
}

// WithHTTPClient overrides the HTTP client used for auth traffic.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) { s.httpClient = c }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithLoginTimeout bounds how long Login waits for the browser
// callback.
func WithLoginTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.loginTimeout = d }
}

// WithBrowserOpener overrides how the authorization URL is opened
// (primarily for testing).
func WithBrowserOpener(open func(url string) error) SessionOption {
	return func(s *Session) { s.openBrowser = open }
}

// WithAuthURLNotify registers a hook invoked with the authorization
// URL once the login flow has started, letting a CLI show it to users
// whose browser did not open.
func WithAuthURLNotify(notify func(url string)) SessionOption {
	return func(s *Session) { s.notifyURL = notify }
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) SessionOption {
	return func(s *Session) { s.nowTime = nowFunc }
}

// WithExpiryMargin overrides the stale-token safety margin.
func WithExpiryMargin(d time.Duration) SessionOption {
	return func(s *Session) { s.margin = d }
}

// NewSession creates a session for host backed by store.
func NewSession(host string, store *credentials.Store, options ...SessionOption) *Session {
	s := &Session{
		host:         host,
		store:        store,
		httpClient:   http.DefaultClient,
		logger:       zerolog.Nop(),
		margin:       expiryMargin,
		loginTimeout: defaultLoginTimeout,
		openBrowser:  openBrowser,
		notifyURL:    func(string) {},
		nowTime:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Host returns the API host this session is bound to.
func (s *Session) Host() string { return s.host }

// Token returns a currently-valid access token, refreshing first when
// the stored one is within the safety margin of its expiry. Concurrent
// callers serialize on one refresh rather than racing.
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.staticToken != "" {
		return s.staticToken, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return "", err
	}
	if s.cred.AccessToken == "" {
		return "", ErrLoginRequired
	}
	if !s.expired && s.nowTime().Add(s.margin).Before(s.cred.ExpiresAt) {
		return s.cred.AccessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.cred.AccessToken, nil
}

// Invalidate marks the in-memory token stale so the next Token call
// refreshes regardless of the recorded expiry. Used when the service
// rejects a token the client still believed valid.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = true
}

// LoginRequired reports whether a full interactive login is needed:
// no credential is stored, or its refresh token no longer works.
func (s *Session) LoginRequired(ctx context.Context) bool {
	if s.staticToken != "" {
		return false
	}
	_, err := s.Token(ctx)
	return errors.Is(err, ErrLoginRequired)
}

// Logout removes the credential from memory and from the store.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = credentials.Credential{}
	s.loaded = true
	s.expired = false
	return s.store.Clear(s.host)
}

func (s *Session) loadLocked() error {
	if s.loaded {
		return nil
	}
	cred, err := s.store.Load(s.host)
	if err != nil && !errors.Is(err, credentials.ErrNotFound) {
		return err
	}
	if err == nil {
		s.cred = cred
	}
	s.loaded = true
	return nil
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.cred.RefreshToken == "" || s.cred.TokenURL == "" {
		s.cred = credentials.Credential{}
		return errors.Wrap(ErrLoginRequired, "stored credential cannot be refreshed")
	}

	cfg := &oauth2.Config{
		ClientID: s.cred.ClientID,
		Endpoint: oauth2.Endpoint{TokenURL: s.cred.TokenURL},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: s.cred.RefreshToken}).Token()
	if err != nil {
		s.logger.Debug().Err(err).Str("host", s.host).Msg("token refresh rejected")
		s.cred = credentials.Credential{}
		if clearErr := s.store.Clear(s.host); clearErr != nil {
			s.logger.Debug().Err(clearErr).Msg("failed to clear stored credential")
		}
		return errors.Wrapf(ErrLoginRequired, "token refresh failed: %v", err)
	}

	return s.storeTokenLocked(tok)
}

// storeTokenLocked records a fresh token pair in memory and on disk.
// The refresh token is only replaced when the service rotated it.
func (s *Session) storeTokenLocked(tok *oauth2.Token) error {
	expiry := tok.Expiry
	if expiry.IsZero() {
		jwtExp, err := accessTokenExpiry(tok.AccessToken)
		if err != nil {
			return &ProtocolError{Reason: "token response carries no expiry: " + err.Error()}
		}
		expiry = jwtExp
	}

	s.cred.AccessToken = tok.AccessToken
	s.cred.ExpiresAt = expiry
	if tok.RefreshToken != "" {
		s.cred.RefreshToken = tok.RefreshToken
	}
	s.expired = false
	s.loaded = true
	return s.store.Save(s.host, s.cred)
}

// accessTokenExpiry extracts the exp claim from a JWT access token
// without verifying the signature; expiry bookkeeping is a local
// concern, validation is the service's.
func accessTokenExpiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("no exp claim")
	}
	return exp.Time, nil
}
