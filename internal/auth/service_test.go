package auth

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"stressguard/internal/config"
	"stressguard/internal/models"
	"stressguard/internal/redis"
	"stressguard/internal/storage"
)

func TestAuthIssueValidateRevoke(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, 1)

	svc := NewService(db, nil, time.Hour)
	token, err := svc.IssueToken(context.Background(), 1)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	userID, err := svc.ValidateToken(context.Background(), token)
	if err != nil || userID != 1 {
		t.Fatalf("ValidateToken failed: id=%d err=%v", userID, err)
	}
	if err := svc.RevokeToken(context.Background(), token); err != nil {
		t.Fatalf("RevokeToken error: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Fatalf("expected error after revoke")
	}

	token2, err := svc.IssueToken(context.Background(), 1)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if err := svc.RevokeUserTokens(context.Background(), 1); err != nil {
		t.Fatalf("RevokeUserTokens error: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token2); err == nil {
		t.Fatalf("expected error after revoke all")
	}
}

func TestAuthValidateExpiredToken(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, 2)

	svc := NewService(db, nil, 10*time.Millisecond)
	token, err := svc.IssueToken(context.Background(), 2)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expiration error, got %v", err)
	}
	// ensure token removed
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_tokens WHERE token = ?`, token).Scan(&count); err != nil {
		t.Fatalf("query tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired token not purged")
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {
				DSN: ":memory:",
			},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func insertUser(t *testing.T, db *sql.DB, id int64) {
	t.Helper()
	insertUserWithRole(t, db, id, models.RoleEmployee)
}

func insertUserWithRole(t *testing.T, db *sql.DB, id int64, role models.Role) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, username, password_hash, salt, role, created_at) VALUES (?, ?, '', '', ?, ?)`,
		id, "user_"+strconv.FormatInt(id, 10), string(role), models.FormatTimestamp(time.Now()))
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

func TestAuthTokenCacheUsesRedis(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, 10)

	cacheClient, cleanup := newRedisCacheClient(t)
	defer cleanup()

	svc := NewService(db, cacheClient, time.Hour)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, 10)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	raw := cacheClient.Raw()
	if raw == nil {
		t.Fatalf("redis raw client nil")
	}
	key := redisTokenPrefix + token
	got, err := raw.Get(ctx, key).Result()
	if err != nil {
		t.Fatalf("get redis token: %v", err)
	}
	if got != "10" {
		t.Fatalf("expected user 10 in rdb, got %s", got)
	}

	_, _ = db.Exec(`DELETE FROM user_tokens WHERE token = ?`, token)
	userID, err := svc.ValidateToken(ctx, token)
	if err != nil || userID != 10 {
		t.Fatalf("ValidateToken via rdb failed: id=%d err=%v", userID, err)
	}

	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := raw.Get(ctx, key).Result(); err == nil {
		t.Fatalf("expected redis key deleted")
	}
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("expected error after revoke and rdb delete")
	}
}

func newRedisCacheClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed auth tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host: host,
			Port: port,
			DB:   db,
		},
	}
	client, err := redis.NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if raw := client.Raw(); raw != nil {
		if err := raw.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush db: %v", err)
		}
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUserWithRole(t, db, 3, models.RoleManager)

	svc := NewService(db, nil, time.Hour)
	ctx := context.Background()
	user := &models.User{ID: 3, Username: "user_3", Role: models.RoleManager}

	sess, err := svc.CreateSession(ctx, user)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Token == "" || sess.Role != models.RoleManager || time.Until(sess.ExpiresAt) <= 0 {
		t.Fatalf("unexpected session %+v", sess)
	}
	loaded, err := svc.Session(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if loaded.UserID != 3 || loaded.Username != "user_3" || loaded.Role != models.RoleManager {
		t.Fatalf("unexpected loaded session %+v", loaded)
	}
	if err := svc.DestroySession(ctx, sess.Token); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	if _, err := svc.Session(ctx, sess.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after destroy, got %v", err)
	}
	if _, err := svc.Session(ctx, ""); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
}

func TestMiddlewareAndRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	defer db.Close()
	insertUserWithRole(t, db, 1, models.RoleEmployee)
	insertUserWithRole(t, db, 2, models.RoleAdmin)

	svc := NewService(db, nil, time.Hour)
	router := gin.New()
	router.GET("/admin", svc.Middleware(), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		sess, _ := SessionFromContext(c)
		c.String(http.StatusOK, sess.Username)
	})

	empToken, err := svc.IssueToken(context.Background(), 1)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	adminToken, err := svc.IssueToken(context.Background(), 2)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"wrong role", "Bearer " + empToken, "", http.StatusForbidden},
		{"admin bearer", "Bearer " + adminToken, "", http.StatusOK},
		{"admin cookie", "", adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: svc.AuthCookieName(), Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("want %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCSRFMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(nil, nil, time.Hour)
	router := gin.New()
	router.Use(svc.CSRFMiddleware())
	router.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(mutate func(*http.Request)) int {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		mutate(req)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := do(func(*http.Request) {}); code != http.StatusForbidden {
		t.Fatalf("cookie request without csrf token should be rejected, got %d", code)
	}
	if code := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }); code != http.StatusNoContent {
		t.Fatalf("bearer request should skip csrf, got %d", code)
	}
	if code := do(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "t1"})
		r.Header.Set(svc.CSRFHeaderName(), "t1")
	}); code != http.StatusNoContent {
		t.Fatalf("matching double submit should pass, got %d", code)
	}
}
