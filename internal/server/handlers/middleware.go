package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// OwnerHeader carries the tenant the request acts for. An upstream
	// gateway authenticates the caller and sets it.
	OwnerHeader = "X-Owner-ID"
	// RequestIDHeader is echoed back, or generated when missing.
	RequestIDHeader = "X-Request-ID"

	ownerKey     = "owner_id"
	requestIDKey = "request_id"
)

// RequireOwner rejects requests without an owner.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(OwnerHeader))
		if owner == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + OwnerHeader + " header"})
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

// RequestID tags every request with an id for log correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the id RequestID assigned.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}
