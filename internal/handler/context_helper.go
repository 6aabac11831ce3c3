package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-companion-api/internal/middleware"
)

// requestOwner resolves whose data a listing is for: an explicit user_id
// query parameter wins over the token identity.
func requestOwner(c *gin.Context) string {
	if id := strings.TrimSpace(c.Query("user_id")); id != "" {
		return id
	}
	return middleware.CurrentClaims(c).Identity()
}
