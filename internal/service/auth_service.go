package service

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AuthService issues bearer tokens for staff members. Credentials are handled
// by an upstream identity provider; this service only mints tokens for known,
// active staff.
type AuthService struct {
	staff    repository.StaffRepository
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(staff repository.StaffRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{staff: staff, tokenMgr: tokens}
}

// IssueStaffToken signs a token carrying the staff member's id and role.
func (s *AuthService) IssueStaffToken(ctx context.Context, staffID string) (string, time.Time, error) {
	staff, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		return "", time.Time{}, mapRepoError(err, "staff", map[string]any{"staff_id": staffID})
	}
	if !staff.Active {
		return "", time.Time{}, apperrors.NewForbidden("staff member inactive")
	}
	token, expiresAt, err := s.tokenMgr.GenerateStaffToken(staff.ID, staff.Role)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, expiresAt, nil
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
