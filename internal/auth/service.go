package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"stressguard/internal/models"
	"stressguard/internal/redis"
)

const redisTokenPrefix = "stressguard:token:"

var (
	ErrTokenRequired = errors.New("token required")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
)

// Session is the authenticated identity behind a bearer token. It is created
// at login and destroyed at logout or expiry.
type Session struct {
	Token     string      `json:"-"`
	UserID    int64       `json:"user_id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// HasRole reports whether the session holds one of roles.
func (s *Session) HasRole(roles ...models.Role) bool {
	if s == nil {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// Service issues, validates, and revokes user authentication tokens.
// Tokens live in SQL; the redis cache is optional.
type Service struct {
	db             *sql.DB
	cache          *redis.Client
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

// NewService constructs an auth service with the supplied token lifetime.
func NewService(db *sql.DB, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		db:             db,
		cache:          cache,
		tokenTTL:       ttl,
		cookieName:     "auth_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// CreateSession issues a token for user and returns the live session.
func (s *Service) CreateSession(ctx context.Context, user *models.User) (*Session, error) {
	if user == nil {
		return nil, errors.New("user required")
	}
	token, expiresAt, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, UserID: user.ID, Username: user.Username, Role: user.Role, ExpiresAt: expiresAt}, nil
}

// IssueToken mints a new random token for the user and persists it.
func (s *Service) IssueToken(ctx context.Context, userID int64) (string, error) {
	token, _, err := s.issue(ctx, userID)
	return token, err
}

func (s *Service) issue(ctx context.Context, userID int64) (string, time.Time, error) {
	if userID <= 0 {
		return "", time.Time{}, errors.New("invalid user id")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return "", time.Time{}, err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO user_tokens (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
			token, userID, now, expiresAt,
		)
		if err == nil {
			s.cacheToken(ctx, token, userID, s.tokenTTL)
			return token, expiresAt, nil
		}
	}
	return "", time.Time{}, errors.New("could not issue token")
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

// ValidateToken verifies the token exists and has not expired, returning the user id.
func (s *Service) ValidateToken(ctx context.Context, authToken string) (int64, error) {
	userID, _, err := s.lookup(ctx, authToken)
	return userID, err
}

// Session resolves a token into a session, reloading the user's current role.
func (s *Service) Session(ctx context.Context, authToken string) (*Session, error) {
	userID, expiresAt, err := s.lookup(ctx, authToken)
	if err != nil {
		return nil, err
	}
	sess := &Session{Token: authToken, UserID: userID, ExpiresAt: expiresAt}
	var role string
	err = s.db.QueryRowContext(ctx, `SELECT username, role FROM users WHERE id = ?`, userID).
		Scan(&sess.Username, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = s.RevokeToken(ctx, authToken)
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup session user: %w", err)
	}
	sess.Role = models.Role(role)
	return sess, nil
}

func (s *Service) lookup(ctx context.Context, authToken string) (int64, time.Time, error) {
	if authToken == "" {
		return 0, time.Time{}, ErrTokenRequired
	}
	if userID, ttl, ok := s.cachedToken(ctx, authToken); ok {
		return userID, time.Now().UTC().Add(ttl), nil
	}

	var userID int64
	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM user_tokens WHERE token = ?`, authToken,
	).Scan(&userID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, ErrInvalidToken
		}
		return 0, time.Time{}, fmt.Errorf("lookup token: %w", err)
	}
	now := time.Now().UTC()
	if now.After(expires) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE token = ?`, authToken)
		return 0, time.Time{}, ErrTokenExpired
	}
	s.cacheToken(ctx, authToken, userID, expires.Sub(now))
	return userID, expires, nil
}

// DestroySession ends the session behind authToken.
func (s *Service) DestroySession(ctx context.Context, authToken string) error {
	return s.RevokeToken(ctx, authToken)
}

// RevokeToken deletes a single token.
func (s *Service) RevokeToken(ctx context.Context, authToken string) error {
	if authToken == "" {
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, redisTokenPrefix+authToken); err != nil {
			slog.Warn("token cache delete failed", "err", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE token = ?`, authToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeUserTokens removes all tokens belonging to the user.
func (s *Service) RevokeUserTokens(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return nil
	}
	if s.cache != nil {
		rows, err := s.db.QueryContext(ctx, `SELECT token FROM user_tokens WHERE user_id = ?`, userID)
		if err == nil {
			var keys []string
			for rows.Next() {
				var tok string
				if rows.Scan(&tok) == nil {
					keys = append(keys, redisTokenPrefix+tok)
				}
			}
			rows.Close()
			if err := s.cache.Del(ctx, keys...); err != nil {
				slog.Warn("token cache delete failed", "user_id", userID, "err", err)
			}
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func (s *Service) cacheToken(ctx context.Context, token string, userID int64, ttl time.Duration) {
	if s.cache == nil || ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, redisTokenPrefix+token, strconv.FormatInt(userID, 10), ttl); err != nil {
		slog.Warn("token cache write failed", "err", err)
	}
}

func (s *Service) cachedToken(ctx context.Context, token string) (int64, time.Duration, bool) {
	if s.cache == nil {
		return 0, 0, false
	}
	key := redisTokenPrefix + token
	val, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			slog.Warn("token cache read failed", "err", err)
		}
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, false
	}
	ttl, err := s.cache.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return 0, 0, false
	}
	return userID, ttl, true
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie name storing auth tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
