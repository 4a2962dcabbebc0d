package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Issuer is stamped on every token and required when parsing.
const Issuer = "helpdesk-service"

const clockSkew = 30 * time.Second

var errNoSubject = errors.New("token has no subject")

// TokenManager signs and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenManager builds a new manager. A non-positive ttl means one hour.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	tm := &TokenManager{
		secret: []byte(secret),
		ttl:    time.Duration(ttlMinutes) * time.Minute,
		now:    time.Now,
	}
	tm.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(func() time.Time { return tm.now() }),
	)
	return tm
}

// Claims is the token payload. Role is informational: the middleware reloads
// staff members and trusts the stored role.
type Claims struct {
	SubjectID string            `json:"sid"`
	Subject   domain.ActorType  `json:"subject"`
	Role      *domain.StaffRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for subjectID.
func (tm *TokenManager) GenerateToken(subjectID string, subject domain.ActorType, role *domain.StaffRole) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, errNoSubject
	}
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		SubjectID: subjectID,
		Subject:   subject,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// GenerateStaffToken signs a token for a staff member and role.
func (tm *TokenManager) GenerateStaffToken(staffID string, role domain.StaffRole) (string, time.Time, error) {
	return tm.GenerateToken(staffID, domain.ActorTypeStaff, &role)
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, err := tm.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	}); err != nil {
		return nil, err
	}
	if claims.SubjectID == "" {
		return nil, errNoSubject
	}
	return claims, nil
}
