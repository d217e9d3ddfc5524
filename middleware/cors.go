package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS stamps the fixed cross-origin headers on every response of the
// group, then lets gin-contrib/cors answer browser preflights with 200.
func CORS(methods ...string) []gin.HandlerFunc {
	allowMethods := strings.Join(methods, ", ")

	static := func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", allowMethods)
		c.Next()
	}

	preflight := cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              methods,
		AllowHeaders:              []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:             []string{"Content-Length", RequestIDHeader},
		MaxAge:                    12 * time.Hour,
		OptionsResponseStatusCode: http.StatusOK,
	})

	return []gin.HandlerFunc{static, preflight}
}
