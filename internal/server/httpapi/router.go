// Package httpapi exposes the sync backend over HTTP JSON: login, the
// push/pull endpoints and presigned report URLs.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/wassertech/fieldsync/internal/logging"
	"github.com/wassertech/fieldsync/internal/server/auth"
	"github.com/wassertech/fieldsync/internal/server/services"
	"github.com/wassertech/fieldsync/internal/wire"
)

// UserService is the authentication surface the router needs.
type UserService interface {
	Login(ctx context.Context, email, password string) (*services.Session, error)
}

// SyncService is the sync protocol surface the router needs.
type SyncService interface {
	Push(ctx context.Context, claims *auth.Claims, req *wire.PushRequest) (*wire.PushResponse, error)
	Pull(ctx context.Context, claims *auth.Claims, since int64, kinds []wire.Kind, clientID string) (*wire.PullResponse, error)
}

// ReportService is the report file surface the router needs.
type ReportService interface {
	UploadURL(ctx context.Context) (key, url string, err error)
	DownloadURL(ctx context.Context, claims *auth.Claims, reportID string) (string, error)
}

const claimsKey = "claims"

// NewRouter builds the gin engine with all routes registered.
func NewRouter(users UserService, sync SyncService, reports ReportService, secretKey []byte, logger logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	h := &handlers{users: users, sync: sync, reports: reports, logger: logger}

	router.POST("/api/login", h.login)

	authorized := router.Group("/api", authMiddleware(secretKey))
	{
		authorized.POST("/sync/push", h.push)
		authorized.GET("/sync/pull", h.pull)
		authorized.POST("/reports/upload-url", h.reportUploadURL)
		authorized.GET("/reports/:id/url", h.reportDownloadURL)
	}

	return router
}

// authMiddleware verifies the bearer token and stores the claims in the
// request context.
func authMiddleware(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := auth.ParseToken(token, secretKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsKey).(*auth.Claims)
}

// sinceParam parses the ?since= cursor; absent means 0 (full pull).
func sinceParam(c *gin.Context) (int64, bool) {
	raw := c.Query("since")
	if raw == "" {
		return 0, true
	}
	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || since < 0 {
		return 0, false
	}
	return since, true
}

// kindsParam parses the optional ?entities[]= subset filter; absent means
// every kind. Unknown kind names fail the request.
func kindsParam(c *gin.Context) ([]wire.Kind, bool) {
	raw := c.QueryArray("entities[]")
	if len(raw) == 0 {
		raw = c.QueryArray("entities")
	}
	kinds := make([]wire.Kind, 0, len(raw))
	for _, name := range raw {
		kind := wire.Kind(name)
		if !kind.Valid() {
			return nil, false
		}
		kinds = append(kinds, kind)
	}
	return kinds, true
}
