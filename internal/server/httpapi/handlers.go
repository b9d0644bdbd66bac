package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/logging"
	"github.com/wassertech/fieldsync/internal/wire"
)

type handlers struct {
	users   UserService
	sync    SyncService
	reports ReportService
	logger  logging.Logger
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	session, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    session.Token,
		"role":     session.Role,
		"clientId": session.ClientID,
	})
}

func (h *handlers) push(c *gin.Context) {
	var req wire.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed push body"})
		return
	}

	resp, err := h.sync.Push(c.Request.Context(), claimsFrom(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) pull(c *gin.Context) {
	since, ok := sinceParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed since parameter"})
		return
	}
	kinds, ok := kindsParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity kind"})
		return
	}

	resp, err := h.sync.Pull(c.Request.Context(), claimsFrom(c), since, kinds, c.Query("client_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) reportUploadURL(c *gin.Context) {
	key, url, err := h.reports.UploadURL(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fileKey": key, "url": url})
}

func (h *handlers) reportDownloadURL(c *gin.Context) {
	url, err := h.reports.DownloadURL(c.Request.Context(), claimsFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// fail maps service errors onto HTTP statuses.
func (h *handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, common.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
