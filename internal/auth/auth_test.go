package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expiresAt, err := tm.GenerateStaffToken("staff-1", "HardwareEngineer")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.SubjectID)
	assert.Equal(t, domain.ActorTypeStaff, claims.Subject)
	require.NotNil(t, claims.Role)
	assert.Equal(t, domain.StaffRole("HardwareEngineer"), *claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	issued := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }
	token, _, err := tm.GenerateToken("user-1", domain.ActorTypeUser, nil)
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(4 * time.Minute) }
	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.Role)

	tm.now = func() time.Time { return issued.Add(10 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestGenerateTokenRequiresSubject(t *testing.T) {
	_, _, err := NewTokenManager("secret", 5).GenerateToken("", domain.ActorTypeUser, nil)
	assert.Error(t, err)
}

func TestMiddlewareLoadsStaffRole(t *testing.T) {
	staffRepo := memory.NewStaffRepository()
	require.NoError(t, staffRepo.Create(context.Background(), &domain.StaffMember{
		ID: "s1", Name: "Ada", Email: "ada@example.com", Role: domain.StaffRoleAdmin, Active: true,
	}))
	require.NoError(t, staffRepo.Create(context.Background(), &domain.StaffMember{
		ID: "s2", Name: "Bo", Email: "bo@example.com", Role: domain.StaffRoleAgent, Active: false,
	}))
	tm := NewTokenManager("secret", 5)
	mw := NewAuthMiddleware(tm, staffRepo)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(http.StatusUnauthorized)
		},
	})
	app.Get("/admin", mw.Handle, RequireStaffRole(domain.StaffRoleAdmin), func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(string(principal.Role))
	})

	// Role in the token is ignored in favour of the stored role.
	token, _, err := tm.GenerateStaffToken("s1", domain.StaffRoleAgent)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ADMIN", string(body))

	inactive, _, err := tm.GenerateStaffToken("s2", domain.StaffRoleAgent)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+inactive)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
