package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"stressguard/internal/models"
	"stressguard/internal/storage"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid registration")
)

const (
	saltBytes        = 16
	digestBytes      = 32
	digestIterations = 60000
)

// Service handles user registration, login and the audit trail.
type Service struct {
	db *sql.DB
}

// NewService builds a new account service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Register creates a user with a fresh per-user salt. The role is validated
// here, once, so stored roles are always one of the fixed values.
func (s *Service) Register(ctx context.Context, username, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}
	hash := hashPassword(password, salt)
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, salt, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		username, hash, salt, string(r), models.FormatTimestamp(now),
	)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	s.LogAction(ctx, username, "User Registered")
	return &models.User{ID: id, Username: username, PasswordHash: hash, Salt: salt, Role: r, CreatedAt: now.Truncate(time.Second)}, nil
}

// Login validates credentials and returns the user profile. Unknown users and
// wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, salt, role, created_at FROM users WHERE username = ?`, username,
	))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	want := []byte(user.PasswordHash)
	got := []byte(hashPassword(password, user.Salt))
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return nil, ErrInvalidCredentials
	}
	s.LogAction(ctx, username, "User Logged In")
	return user, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, ErrUserNotFound
	}
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, salt, role, created_at FROM users WHERE id = ?`, id,
	))
}

// ListByRole returns users holding role ordered by username.
func (s *Service) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, role, created_at FROM users WHERE role = ? ORDER BY username ASC`, string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var (
			u       models.User
			created string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u.CreatedAt, err = models.ParseTimestamp(created); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Service) scanUser(row *sql.Row) (*models.User, error) {
	var (
		u       models.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Salt, &u.Role, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	t, err := models.ParseTimestamp(created)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = t
	return &u, nil
}

// LogAction appends an audit entry. Failures are logged, never returned:
// the audit trail must not block the action it records.
func (s *Service) LogAction(ctx context.Context, username, action string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (username, action, created_at) VALUES (?, ?, ?)`,
		username, action, models.FormatTimestamp(time.Now()),
	)
	if err != nil {
		slog.Warn("audit log write failed", "username", username, "action", action, "err", err)
	}
}

// AuditTrail returns the most recent audit entries, newest first.
func (s *Service) AuditTrail(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, action, created_at FROM audit_logs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e       models.AuditEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &created); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if e.CreatedAt, err = models.ParseTimestamp(created); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func generateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), digestIterations, digestBytes, sha256.New)
	return hex.EncodeToString(key)
}
