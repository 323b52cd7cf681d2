package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// Roles recognised by the grading API.
const (
	RoleAdmin   = "admin"
	RoleMentor  = "mentor"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// GraderRoles may score submissions and leave feedback.
var GraderRoles = []string{RoleMentor, RoleTeacher, RoleAdmin}

// CurrentRole returns the lower-cased role placed in Locals by the JWT middleware.
func CurrentRole(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	return strings.ToLower(strings.TrimSpace(role))
}

// CurrentUserID returns the authenticated user id, or zero for anonymous requests.
func CurrentUserID(c *fiber.Ctx) uint {
	switch v := c.Locals("user_id").(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}

// IsStudent reports whether the caller may only act on their own records.
func IsStudent(c *fiber.Ctx) bool {
	return CurrentRole(c) == RoleStudent
}

// RequireRole rejects callers whose role is not in roles with 403.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[CurrentRole(c)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RequireGrader is RequireRole(GraderRoles...).
func RequireGrader() fiber.Handler {
	return RequireRole(GraderRoles...)
}
