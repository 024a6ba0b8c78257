// Package auth verifies bearer tokens issued by the external session
// service. Issuance and registration are not this service's concern; it only
// needs to map a presented token to a user id.
package auth

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tallyhq/tally/internal/errs"
)

// UserIDFromToken validates an HS256 token and returns its subject.
// Any parse or signature failure maps to errs.ErrUnauthorized.
func UserIDFromToken(tokenStr string, key []byte) (uuid.UUID, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil || !tok.Valid {
		return uuid.Nil, errs.ErrUnauthorized
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return uuid.Nil, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}

// IssueToken signs an HS256 token for the given user. Used by tests and the
// dev tooling; production tokens come from the session service.
func IssueToken(userID uuid.UUID, key []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
