package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"stressguard/internal/models"
	"stressguard/internal/service/team"
	"stressguard/internal/service/wellness"
)

type reflectionRequest struct {
	Text string `json:"text"`
}

func (h *Handler) submitReflection(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req reflectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := c.Request.Context()
	sub, err := h.wellness.SubmitReflection(ctx, sess.UserID, sess.Username, req.Text)
	if err != nil {
		if errors.Is(err, wellness.ErrEmptyReflection) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "submit reflection", err)
		return
	}
	reply := h.assistant.Respond(ctx, sess.UserID, req.Text, sub.Log.Score)
	c.JSON(http.StatusCreated, gin.H{
		"log":            sub.Log,
		"classification": sub.Classification,
		"alert":          sub.Alert,
		"reply":          reply,
	})
}

func (h *Handler) listReflections(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	logs, err := h.wellness.UserLogs(c.Request.Context(), sess.UserID)
	if err != nil {
		h.internalError(c, "list reflections", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) employeeDashboard(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	dash, err := h.wellness.EmployeeDashboard(c.Request.Context(), sess.UserID)
	if err != nil {
		h.internalError(c, "employee dashboard", err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

type chatRequest struct {
	Message string `json:"message"`
}

// chat answers in the tone of the user's latest reflection score; users who
// never submitted one get the calm band.
func (h *Handler) chat(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	ctx := c.Request.Context()
	score, _, err := h.wellness.LatestScore(ctx, sess.UserID)
	if err != nil {
		h.internalError(c, "latest score", err)
		return
	}
	c.JSON(http.StatusOK, h.assistant.Respond(ctx, sess.UserID, req.Message, score))
}

func (h *Handler) chatHistory(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	turns, err := h.assistant.Transcript(c.Request.Context(), sess.UserID)
	if err != nil {
		h.internalError(c, "chat history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": turns})
}

func (h *Handler) teamMembers(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	members, err := h.teams.TeamOf(c.Request.Context(), sess.UserID)
	if err != nil {
		h.internalError(c, "team members", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *Handler) availableEmployees(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	employees, err := h.teams.AvailableFor(c.Request.Context(), sess.UserID)
	if err != nil {
		h.internalError(c, "available employees", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": employees, "mode": h.teams.Mode()})
}

func (h *Handler) unassignedEmployees(c *gin.Context) {
	employees, err := h.teams.UnassignedEmployees(c.Request.Context())
	if err != nil {
		h.internalError(c, "unassigned employees", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": employees})
}

type assignRequest struct {
	EmployeeID int64 `json:"employee_id"`
}

func (h *Handler) assignEmployee(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EmployeeID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "employee_id is required"})
		return
	}
	assignment, err := h.teams.Assign(c.Request.Context(), sess.UserID, req.EmployeeID)
	if err != nil {
		switch {
		case errors.Is(err, team.ErrAlreadyAssigned), errors.Is(err, team.ErrClaimedByOtherManager):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, team.ErrRoleMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, team.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			h.internalError(c, "assign employee", err)
		}
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

func (h *Handler) teamDashboard(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	dash, err := h.wellness.TeamDashboard(c.Request.Context(), sess.UserID)
	if err != nil {
		h.internalError(c, "team dashboard", err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *Handler) orgDashboard(c *gin.Context) {
	dash, err := h.wellness.OrgDashboard(c.Request.Context())
	if err != nil {
		h.internalError(c, "org dashboard", err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *Handler) listAlerts(c *gin.Context) {
	all := c.Query("all") == "true"
	alerts, err := h.wellness.ListAlerts(c.Request.Context(), !all)
	if err != nil {
		h.internalError(c, "list alerts", err)
		return
	}
	if alerts == nil {
		alerts = make([]models.Alert, 0)
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *Handler) resolveAlert(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	alertID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || alertID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}
	if err := h.wellness.ResolveAlert(c.Request.Context(), alertID, sess.Username); err != nil {
		if errors.Is(err, wellness.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "resolve alert", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
