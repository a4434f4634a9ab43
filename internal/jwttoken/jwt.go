// Package jwttoken binds liveness sessions to the subject they were created
// for, so the completion callback cannot be replayed against another identity.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "verifid/pkg/domain"
	dErrors "verifid/pkg/domain-errors"
)

// Claims carries the subject binding for one liveness session.
type Claims struct {
	SessionID      string `json:"session_id"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	jwt.RegisteredClaims
}

// JWTService handles session token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateSessionToken issues a token tying sessionID to one document.
func (s *JWTService) GenerateSessionToken(
	sessionID id.LivenessSessionID,
	documentType, documentNumber string,
	expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID:      sessionID.String(),
		DocumentType:   documentType,
		DocumentNumber: documentNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token claims")
	}

	return claims, nil
}

// ExtractSession validates the token and returns the bound session and
// subject.
func (s *JWTService) ExtractSession(tokenString string) (id.LivenessSessionID, id.SubjectRef, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", id.SubjectRef{}, err
	}
	subject, err := id.NewSubjectRef(claims.DocumentType, claims.DocumentNumber, 0)
	if err != nil {
		return "", id.SubjectRef{}, err
	}
	return id.LivenessSessionID(claims.SessionID), subject, nil
}
