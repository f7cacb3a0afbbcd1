package web

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

const userIDLocal = "user_id"

// NewAuthMiddleware validates a Bearer JWT signed with the shared HS256
// secret and stores its subject as the acting user ID.
func NewAuthMiddleware(secret string) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return unauthorized(c, "missing bearer token")
		}

		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}

			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return unauthorized(c, "invalid token")
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			return unauthorized(c, "token has no subject")
		}

		c.Locals(userIDLocal, subject)

		return c.Next()
	}
}

// UserID returns the authenticated user set by the middleware.
func UserID(c fiber.Ctx) string {
	userID, _ := c.Locals(userIDLocal).(string)

	return userID
}
