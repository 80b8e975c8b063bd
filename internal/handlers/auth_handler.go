package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/services/auth"
	service "receivables-conciliation-backend/internal/services/reconciliation"
)

type AuthHandler struct {
	auth      *auth.AuthService
	workflows *service.ReconciliationService
}

func NewAuthHandler(a *auth.AuthService, workflows *service.ReconciliationService) *AuthHandler {
	return &AuthHandler{auth: a, workflows: workflows}
}

// Register creates the account. When workflow_id is given, the records
// uploaded in that workflow are linked to the new organization.
func (h *AuthHandler) Register(c *gin.Context) {
	var payload struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		WorkflowID string `json:"workflow_id"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	var sessionToken string
	if payload.WorkflowID != "" {
		id, err := uuid.Parse(payload.WorkflowID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow ID"})
			return
		}
		if sessionToken, err = h.workflows.SessionToken(id); err != nil {
			writeError(c, err, "")
			return
		}
	}

	res, err := h.auth.Register(c.Request.Context(), payload.Name, payload.Email, payload.Password, sessionToken)
	if err != nil {
		authError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var payload conciliation.Credentials
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	res, err := h.auth.Login(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		authError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), bearerToken(c))
	if err != nil {
		authError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(bearerToken(c)); err != nil {
		authError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// authError passes the remote service's 4xx answers through, since they
// describe the caller's own mistake (wrong password, email taken).
func authError(c *gin.Context, err error) {
	var gwErr *conciliation.GatewayError
	if errors.As(err, &gwErr) && gwErr.StatusCode >= 400 && gwErr.StatusCode < 500 {
		c.JSON(gwErr.StatusCode, gin.H{"error": conciliation.UserMessage(err, conciliation.MsgAuthFailed)})
		return
	}
	writeError(c, err, conciliation.MsgAuthFailed)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
