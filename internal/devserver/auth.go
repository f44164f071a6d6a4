package devserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type userKey struct{}

func withUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// currentUser returns the authenticated caller. Only valid behind
// authenticate.
func currentUser(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey{}).(*model.User)
	return u
}

func isAdmin(u *model.User) bool { return u != nil && u.Role == model.RoleAdmin }

// IssueToken signs a bearer token for u carrying its username as subject
// and its global role.
func (s *Server) IssueToken(u model.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: u.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(raw string) (*tokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	claims := &tokenClaims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// authenticate resolves the bearer token to a stored user. Unusable tokens
// are answered with 401; the client never sees them once its own expiry
// check has run.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := s.parseToken(raw)
		if err != nil {
			s.log.WithError(err).Debug("rejected bearer token")
			s.writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		rec, err := s.store.GetUserByUsername(r.Context(), claims.Subject)
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		u := rec.User
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), &u)))
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)) != nil {
		s.writeError(w, http.StatusUnauthorized, "wrong password")
		return
	}

	token, err := s.IssueToken(rec.User)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.log.WithField("username", rec.Username).Info("user logged in")
	s.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// HashPassword hashes a password with the server's bcrypt cost.
func (s *Server) HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// projectRole returns the caller's role in a project, or "" when the caller
// is not a member. Global admins act as managers everywhere.
func (s *Server) projectRole(ctx context.Context, projectID int, u *model.User) (string, error) {
	if isAdmin(u) {
		return model.ProjectRoleManager, nil
	}
	role, err := s.store.MemberRole(ctx, projectID, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return role, err
}
