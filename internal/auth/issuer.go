// Package auth extracts the viewer identity from getFeedSkeleton requests.
//
// The signature is not verified: the identity only selects which cached feed
// is served and is never used to authorise writes.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

const bearerPrefix = "Bearer "

// DecodeError reports a credential that could not be read. Callers treat it
// as an anonymous request.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode credential: " + e.Reason
}

var parser = jwt.NewParser()

// IssuerFromHeader returns the iss claim of the bearer token in an
// Authorization header value. An empty header yields an empty issuer and no
// error.
func IssuerFromHeader(header string) (string, error) {
	if header == "" {
		return "", nil
	}
	// The scheme is case-insensitive.
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", &DecodeError{Reason: "not a bearer credential"}
	}
	return Issuer(strings.TrimSpace(header[len(bearerPrefix):]))
}

// Issuer returns the iss claim of a compact JWT. The issuer must be a DID.
func Issuer(token string) (string, error) {
	if token == "" {
		return "", &DecodeError{Reason: "empty token"}
	}

	var claims jwt.RegisteredClaims
	// Service tokens are signed with ES256K, which the jwt package does not
	// register. Claims are still decoded in that case.
	_, _, err := parser.ParseUnverified(token, &claims)
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return "", &DecodeError{Reason: fmt.Sprintf("parse token: %v", err)}
	}

	if claims.Issuer == "" {
		return "", &DecodeError{Reason: "missing iss claim"}
	}
	if !domain.ValidDID(claims.Issuer) {
		return "", &DecodeError{Reason: fmt.Sprintf("iss %q is not a DID", claims.Issuer)}
	}
	return claims.Issuer, nil
}
