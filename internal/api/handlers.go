package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"stressguard/internal/auth"
	"stressguard/internal/models"
	"stressguard/internal/service/account"
	"stressguard/internal/service/assistant"
	"stressguard/internal/service/team"
	"stressguard/internal/service/wellness"
)

// Handler wires HTTP routes to the account, wellness, team and assistant services.
type Handler struct {
	accounts  *account.Service
	auth      *auth.Service
	wellness  *wellness.Service
	teams     *team.Service
	assistant *assistant.Service
}

// NewHandler constructs a Handler instance.
func NewHandler(accounts *account.Service, authService *auth.Service, wellnessService *wellness.Service, teamService *team.Service, assistantService *assistant.Service) *Handler {
	return &Handler{
		accounts:  accounts,
		auth:      authService,
		wellness:  wellnessService,
		teams:     teamService,
		assistant: assistantService,
	}
}

// CORS allows the dashboard frontend to call the API. With no origins
// configured every origin is allowed, without credentials.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-CSRF-Token"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/healthz", h.healthz)
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)

	authed := api.Group("")
	authed.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	authed.POST("/logout", h.logoutUser)
	authed.GET("/me", h.me)
	authed.POST("/chat", h.chat)
	authed.GET("/chat/history", h.chatHistory)

	employee := authed.Group("", auth.RequireRole(models.RoleEmployee))
	employee.POST("/reflections", h.submitReflection)
	employee.GET("/reflections", h.listReflections)
	employee.GET("/dashboard/me", h.employeeDashboard)

	manager := authed.Group("", auth.RequireRole(models.RoleManager))
	manager.GET("/team", h.teamMembers)
	manager.GET("/team/available", h.availableEmployees)
	manager.POST("/team/assign", h.assignEmployee)
	manager.GET("/dashboard/team", h.teamDashboard)

	authed.GET("/employees/unassigned", auth.RequireRole(models.RoleManager, models.RoleAdmin), h.unassignedEmployees)

	admin := authed.Group("", auth.RequireRole(models.RoleAdmin))
	admin.GET("/dashboard/org", h.orgDashboard)
	admin.GET("/alerts", h.listAlerts)
	admin.POST("/alerts/:id/resolve", h.resolveAlert)
	admin.GET("/audit", h.auditTrail)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		case errors.Is(err, account.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.internalError(c, "register user", err)
		}
		return
	}
	c.JSON(http.StatusCreated, user)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.internalError(c, "login", err)
		return
	}
	sess, err := h.auth.CreateSession(c.Request.Context(), user)
	if err != nil {
		h.internalError(c, "issue token", err)
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		h.internalError(c, "issue csrf token", err)
		return
	}
	h.setAuthCookies(c, sess.Token, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"auth_token": sess.Token,
		"expires_at": sess.ExpiresAt,
		"user":       user,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.auth.DestroySession(c.Request.Context(), sess.Token); err != nil {
		slog.Warn("destroy session failed", "user_id", sess.UserID, "err", err)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) auditTrail(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	entries, err := h.accounts.AuditTrail(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "audit trail", err)
		return
	}
	if entries == nil {
		entries = make([]models.AuditEntry, 0)
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) session(c *gin.Context) (*auth.Session, bool) {
	sess, ok := auth.SessionFromContext(c)
	if !ok || sess.UserID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return nil, false
	}
	return sess, true
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	slog.Error("request failed", "op", op, "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
