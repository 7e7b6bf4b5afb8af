package magstand

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryMillisThreshold separates second- from millisecond-precision expiry
// values: anything below it is assumed to be seconds and scaled up.
const expiryMillisThreshold = 2_000_000_000

// Session is the canonical login + subscription snapshot consulted by access
// gating. Expiry is always Unix milliseconds after normalization; 0 means no
// expiry is known.
type Session struct {
	LoggedIn bool   `json:"loggedIn"`
	Level    int    `json:"membership_level"`
	Name     string `json:"membership_name,omitempty"`
	Expiry   int64  `json:"membership_expiry,omitempty"`
}

// Entitlements resolves the current session. Implementations must be safe for
// concurrent use; gating treats a resolver error as "deny".
type Entitlements interface {
	Current(ctx context.Context) (Session, error)
}

// normalizeExpiry converts an expiry that may arrive in seconds or
// milliseconds to milliseconds.
func normalizeExpiry(v int64) int64 {
	if v > 0 && v < expiryMillisThreshold {
		return v * 1000
	}
	return v
}

// AccessGate decides whether the current session may read a post's full
// content. Public posts are always readable; login-tier posts need a
// logged-in session; premium posts additionally need an unexpired premium
// subscription.
type AccessGate struct {
	store        *Store
	entitlements Entitlements

	// now is injectable for expiry tests.
	now func() time.Time
}

// NewAccessGate builds a gate over the given store and resolver.
func NewAccessGate(store *Store, entitlements Entitlements) *AccessGate {
	return &AccessGate{store: store, entitlements: entitlements, now: time.Now}
}

// CanAccessPost reports whether the full content of the post may be shown.
// Unknown posts and resolver failures both deny; the error carries the cause
// for callers that want it.
func (g *AccessGate) CanAccessPost(ctx context.Context, id int64) (bool, error) {
	post, err := g.store.ByID(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return g.canAccess(ctx, post)
}

func (g *AccessGate) canAccess(ctx context.Context, post Post) (bool, error) {
	switch post.MembershipLevel {
	case TierPublic:
		return true, nil
	case TierLogin, TierPremium:
	default:
		return false, nil
	}

	session, err := g.entitlements.Current(ctx)
	if err != nil {
		// Most restrictive outcome when session state cannot be read.
		return false, err
	}
	if !session.LoggedIn {
		return false, nil
	}
	if post.MembershipLevel == TierLogin {
		return true, nil
	}
	if session.Level < TierPremium {
		return false, nil
	}
	expiry := normalizeExpiry(session.Expiry)
	if expiry == 0 {
		return false, nil
	}
	return expiry > g.now().UnixMilli(), nil
}

// flexInt decodes a JSON value that may be a number, a numeric string, or
// absent. The membership endpoint has emitted all three over time.
type flexInt struct {
	value int64
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		f.value = n
		return nil
	}
	var fl float64
	if err := json.Unmarshal(data, &fl); err == nil {
		f.value = int64(fl)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err == nil {
			f.value = parsed
		}
		return nil
	}
	return nil
}

// membershipPayload covers both wire shapes the membership endpoint has used:
// flat fields (membership_level / membership_expiry) and the legacy nested
// object with level_id / enddate. Normalization picks whichever is present.
type membershipPayload struct {
	MembershipLevel  flexInt `json:"membership_level"`
	LevelID          flexInt `json:"level_id"`
	MembershipName   string  `json:"membership_name"`
	LevelName        string  `json:"level_name"`
	MembershipExpiry flexInt `json:"membership_expiry"`
	EndDate          flexInt `json:"enddate"`
	Membership       *struct {
		LevelID flexInt `json:"level_id"`
		EndDate flexInt `json:"enddate"`
	} `json:"membership"`
}

func (p membershipPayload) toSession() Session {
	level := p.MembershipLevel.value
	if level == 0 {
		level = p.LevelID.value
	}
	expiry := p.MembershipExpiry.value
	if expiry == 0 {
		expiry = p.EndDate.value
	}
	if p.Membership != nil {
		if level == 0 {
			level = p.Membership.LevelID.value
		}
		if expiry == 0 {
			expiry = p.Membership.EndDate.value
		}
	}
	name := p.MembershipName
	if name == "" {
		name = p.LevelName
	}
	if name == "" {
		name = "Free"
	}
	return Session{
		LoggedIn: true,
		Level:    int(level),
		Name:     name,
		Expiry:   normalizeExpiry(expiry),
	}
}

// WordPressAuth talks to the WordPress auth and membership routes.
type WordPressAuth struct {
	SiteURL    string // site root, e.g. https://magazine.example.com
	HTTPClient *http.Client
}

// NewWordPressAuth creates an auth client for the given site root.
func NewWordPressAuth(siteURL string) *WordPressAuth {
	return &WordPressAuth{
		SiteURL:    strings.TrimSuffix(siteURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Login exchanges credentials for a JWT at the jwt-auth token route.
func (a *WordPressAuth) Login(ctx context.Context, username, password string) (string, error) {
	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.SiteURL+"/wp-json/jwt-auth/v1/token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: status %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("login: decode: %w", err)
	}
	if body.Token == "" {
		return "", errors.New("login: empty token in response")
	}
	return body.Token, nil
}

// FetchMembership reads the caller's membership from the custom membership
// route and normalizes it to the canonical Session shape.
func (a *WordPressAuth) FetchMembership(ctx context.Context, token string) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.SiteURL+"/wp-json/mag/v1/membership", nil)
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("fetch membership: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("fetch membership: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, fmt.Errorf("fetch membership: %w", err)
	}
	var payload membershipPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Session{}, fmt.Errorf("fetch membership: decode: %w", err)
	}
	return payload.toSession(), nil
}

// tokenExpiry reads the exp claim from a JWT without verifying the signature.
// The signing key lives on the WordPress side; the claim is only used to know
// when the token stops working.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// SessionManager holds the current session snapshot and keeps it in step with
// the remote auth and membership routes. It is the production Entitlements
// implementation.
type SessionManager struct {
	mu       sync.RWMutex
	auth     *WordPressAuth
	session  Session
	token    string
	tokenExp time.Time

	now func() time.Time
}

var _ Entitlements = (*SessionManager)(nil)

// NewSessionManager creates a manager starting from a logged-out session.
func NewSessionManager(auth *WordPressAuth) *SessionManager {
	return &SessionManager{auth: auth, now: time.Now}
}

// Login authenticates against the remote site, fetches the membership for
// the new token, and installs the resulting session.
func (m *SessionManager) Login(ctx context.Context, username, password string) (Session, error) {
	token, err := m.auth.Login(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	session, err := m.auth.FetchMembership(ctx, token)
	if err != nil {
		// Logged in but membership unreadable: keep the login with the
		// free tier rather than throwing the token away.
		session = Session{LoggedIn: true, Level: TierPublic, Name: "Free"}
	}
	m.mu.Lock()
	m.session = session
	m.token = token
	m.tokenExp = tokenExpiry(token)
	m.mu.Unlock()
	return session, nil
}

// Logout drops the session and token.
func (m *SessionManager) Logout() {
	m.mu.Lock()
	m.session = Session{}
	m.token = ""
	m.tokenExp = time.Time{}
	m.mu.Unlock()
}

// Refresh re-reads the membership for the current token, if any.
func (m *SessionManager) Refresh(ctx context.Context) (Session, error) {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	if token == "" {
		return Session{}, nil
	}
	session, err := m.auth.FetchMembership(ctx, token)
	if err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()
	return session, nil
}

// Current returns the session snapshot. A token past its exp claim counts as
// logged out.
func (m *SessionManager) Current(ctx context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return Session{}, nil
	}
	if !m.tokenExp.IsZero() && m.now().After(m.tokenExp) {
		return Session{}, nil
	}
	return m.session, nil
}

// Token returns the current bearer token, empty when logged out. The remote
// source uses it for protected content routes.
func (m *SessionManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// StaticEntitlements is a fixed-session resolver, handy for tests and for
// running the engine without a remote auth backend.
type StaticEntitlements struct {
	Session Session
}

func (s StaticEntitlements) Current(ctx context.Context) (Session, error) {
	return s.Session, nil
}
