package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.ActorType
	SubjectID   string
	Role        domain.StaffRole
	Staff       *domain.StaffMember
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	staff  repository.StaffRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, staff repository.StaffRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, staff: staff}
}

// Handle enforces authentication for protected routes. Staff principals are
// reloaded so a deactivated account or changed role takes effect at once.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{SubjectType: claims.Subject, SubjectID: claims.SubjectID}

	switch claims.Subject {
	case domain.ActorTypeUser:
	case domain.ActorTypeStaff:
		staff, err := m.staff.GetByID(c.UserContext(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("staff not found")
			}
			return apperrors.MapError(err)
		}
		if !staff.Active {
			return apperrors.NewUnauthorized("staff inactive")
		}
		principal.Staff = staff
		principal.Role = staff.Role
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// WithPrincipal stores principal on the request. Used by tests and internal
// callers that authenticate by other means.
func WithPrincipal(c *fiber.Ctx, principal *Principal) {
	c.Locals(principalKey, principal)
}
