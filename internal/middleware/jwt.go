package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-lms-api/internal/utils"
)

var hmacMethods = []string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}

// principal is the caller identity carried by a validated token.
type principal struct {
	UserID uint
	Role   string
}

// JWTProtected validates HMAC-signed bearer tokens and stores the caller's id
// and role in Locals as user_id and user_role. Tokens without a usable subject
// are rejected.
func JWTProtected(secret string) fiber.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods(hmacMethods))

	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		who, ok := principalFromClaims(claims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}

		c.Locals("user_id", who.UserID)
		if who.Role != "" {
			c.Locals("user_role", who.Role)
		}
		return c.Next()
	}
}

// bearerToken reads the token from the Authorization header. Websocket upgrades
// cannot set headers from browsers, so those may pass it as the access_token query value.
func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		if token := strings.TrimSpace(c.Query("access_token")); token != "" && isUpgradeRequest(c) {
			return token, nil
		}
		return "", fmt.Errorf("authorization header missing")
	}

	const bearer = "bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", fmt.Errorf("invalid authorization header")
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", fmt.Errorf("invalid token")
	}
	return token, nil
}

func isUpgradeRequest(c *fiber.Ctx) bool {
	return strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket")
}

func principalFromClaims(claims jwt.MapClaims) (principal, bool) {
	var who principal
	for _, key := range []string{"sub", "user_id", "id"} {
		if id, ok := subjectID(claims[key]); ok {
			who.UserID = id
			break
		}
	}
	if who.UserID == 0 {
		return principal{}, false
	}

	for _, key := range []string{"role", "roles"} {
		if role := roleClaim(claims[key]); role != "" {
			who.Role = role
			break
		}
	}
	return who, true
}

func subjectID(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case float64:
		if v >= 1 && v == float64(uint(v)) {
			return uint(v), true
		}
	case string:
		if parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err == nil && parsed > 0 {
			return uint(parsed), true
		}
	}
	return 0, false
}

// roleClaim accepts a single role or a role list; for lists the first
// non-empty entry wins.
func roleClaim(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if role := roleClaim(item); role != "" {
				return role
			}
		}
	}
	return ""
}
