package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS allows browser dashboards on other origins to read the operational
// API. The API is read-mostly and unauthenticated inside the cluster, so a
// permissive policy is acceptable.
func CORS() gin.HandlerFunc {
	allowMethods := strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodOptions,
	}, ", ")

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", allowMethods)
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
