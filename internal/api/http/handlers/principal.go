package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// actorFrom converts the authenticated principal into a service actor.
func actorFrom(c *fiber.Ctx) (service.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	switch principal.SubjectType {
	case domain.ActorTypeStaff:
		return service.StaffActor(principal.SubjectID, principal.Role), nil
	case domain.ActorTypeUser:
		return service.UserActor(principal.SubjectID), nil
	default:
		return service.Actor{}, apperrors.NewUnauthorized("unknown subject")
	}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func splitQuery(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}
