package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/expense-api/models"
	"github.com/LovationAdmin/expense-api/services"
)

const userKey = "user"

// ErrorResponder writes a service error to the response.
type ErrorResponder func(c *gin.Context, err error)

// RequireUser resolves the bearer token through the ledger and stores the
// user in the context. Requests without a valid token are aborted.
func RequireUser(ledger *services.Ledger, respond ErrorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := services.BearerToken(c.GetHeader("Authorization"))
		user, err := ledger.Authenticate(c.Request.Context(), token)
		if err != nil {
			respond(c, err)
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// GetUser returns the user set by RequireUser.
func GetUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
