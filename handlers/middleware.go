package handlers

import (
	"log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const clientIDKey = "client_id"

// ClientID gives every browser session a stable random id, kept in the
// session cookie. Preferences and the page cache are keyed by it.
func ClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, _ := session.Get(clientIDKey).(string)

		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			session.Set(clientIDKey, id)
			if err := session.Save(); err != nil {
				log.Printf("Failed to save session: %v", err)
			}
		}

		c.Set(clientIDKey, id)
		c.Next()
	}
}

func clientID(c *gin.Context) string {
	return c.GetString(clientIDKey)
}

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
		c.Next()
	}
}
