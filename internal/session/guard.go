// Package session owns the process-wide credential and decides whether an
// outgoing request may carry it.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/nhle/teamboard/internal/credential"
)

// ErrReauthenticate signals that the credential is missing, undecodable or
// expired. The request was not dispatched and the user must log in again.
var ErrReauthenticate = errors.New("session expired: log in again")

// Claims is the decoded credential payload.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Username returns the subject claim.
func (c *Claims) Username() string { return c.Subject }

// Guard validates the stored credential before every request.
type Guard struct {
	store credential.Store
	log   *logrus.Logger

	// Now is the clock used for expiry checks.
	Now func() time.Time

	mu       sync.Mutex
	tripped  bool
	onReauth []func()
}

// NewGuard returns a guard over store.
func NewGuard(store credential.Store, log *logrus.Logger) *Guard {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Guard{
		store: store,
		log:   log,
		Now:   time.Now,
	}
}

// OnReauthenticate registers fn to run when the guard first discovers an
// invalid credential. Handlers run once per session, on the goroutine that
// made the failing check.
func (g *Guard) OnReauthenticate(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onReauth = append(g.onReauth, fn)
}

// Authorize adds the bearer credential and content negotiation headers to
// req. It performs no network I/O. When the credential is unusable it
// returns ErrReauthenticate and req must not be sent.
func (g *Guard) Authorize(req *http.Request) error {
	token, err := g.check()
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if req.Body != nil && req.Body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}
	return nil
}

// Claims decodes the current credential without validating it against the
// clock. It returns ErrReauthenticate when no credential is stored.
func (g *Guard) Claims() (*Claims, error) {
	token, err := g.store.Get()
	if err != nil || strings.TrimSpace(token) == "" {
		return nil, ErrReauthenticate
	}
	claims, err := decode(token)
	if err != nil {
		return nil, ErrReauthenticate
	}
	return claims, nil
}

// Valid reports whether a request issued now would be authorized. It has
// the same side effects as Authorize.
func (g *Guard) Valid() bool {
	_, err := g.check()
	return err == nil
}

// Login stores a freshly issued credential and re-arms the reauthenticate
// handlers. The token must decode and must not already be expired.
func (g *Guard) Login(token string) error {
	token = strings.TrimSpace(token)
	claims, err := decode(token)
	if err != nil {
		return fmt.Errorf("decoding credential: %w", err)
	}
	if expired(claims, g.Now()) {
		return fmt.Errorf("credential already expired")
	}
	if err := g.store.Set(token); err != nil {
		return err
	}

	g.mu.Lock()
	g.tripped = false
	g.mu.Unlock()

	g.log.WithFields(logrus.Fields{
		"user": claims.Subject,
		"role": claims.Role,
	}).Info("session started")
	return nil
}

// Logout removes the credential. It does not run reauthenticate handlers;
// the caller already knows the session ended.
func (g *Guard) Logout() error {
	g.mu.Lock()
	g.tripped = true
	g.mu.Unlock()

	if err := g.store.Clear(); err != nil {
		return err
	}
	g.log.Info("session ended")
	return nil
}

// Tripped reports whether the session has been invalidated since the
// last Login.
func (g *Guard) Tripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tripped
}

func (g *Guard) check() (string, error) {
	token, err := g.store.Get()
	if err != nil || strings.TrimSpace(token) == "" {
		g.trip("missing", false)
		return "", ErrReauthenticate
	}

	claims, err := decode(token)
	if err != nil {
		g.log.WithError(err).Warn("credential could not be decoded")
		g.trip("invalid", true)
		return "", ErrReauthenticate
	}
	if expired(claims, g.Now()) {
		g.trip("expired", true)
		return "", ErrReauthenticate
	}
	return token, nil
}

// trip clears the credential and runs the reauthenticate handlers, unless
// the session is already tripped.
func (g *Guard) trip(reason string, clear bool) {
	g.mu.Lock()
	if g.tripped {
		g.mu.Unlock()
		return
	}
	g.tripped = true
	handlers := append([]func(){}, g.onReauth...)
	g.mu.Unlock()

	if clear {
		if err := g.store.Clear(); err != nil {
			g.log.WithError(err).Error("clearing credential")
		}
	}
	g.log.WithField("reason", reason).Warn("credential rejected, reauthentication required")

	for _, fn := range handlers {
		fn()
	}
}

// decode parses the token payload without verifying its signature; the
// remote service is the authority on signatures.
func decode(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, errors.New("token has no exp claim")
	}
	return claims, nil
}

func expired(c *Claims, now time.Time) bool {
	return !c.ExpiresAt.Time.After(now)
}
