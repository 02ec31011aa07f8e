// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the pluggable authentication surface of the
// orchestrator.
//
// The open-source build ships two providers: NopAuthProvider, which accepts
// every request as a local user, and StaticTokenProvider, which validates a
// single shared bearer token. Deployments with a real identity provider
// implement AuthProvider against it and inject their implementation at
// startup.
package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when authentication fails.
//
// Implementations should wrap it so callers can test with errors.Is:
//
//	return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo describes the authenticated caller of a request.
type AuthInfo struct {
	// UserID uniquely identifies the user.
	UserID string

	// DisplayName is a human-readable name for logs and UI.
	DisplayName string

	// Roles lists the roles granted to the user.
	Roles []string
}

// HasRole reports whether the user holds the given role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates bearer tokens.
//
// Implementations must be safe for concurrent use; Validate is called on
// every request.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity.
	//
	// Returns ErrUnauthorized (possibly wrapped) when the token is
	// missing, malformed, or expired. Other errors indicate provider
	// failures (network, upstream outage) and are also treated as
	// authentication failures by the middleware.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every request as a local admin user.
//
// This is the default provider: it lets the service run without any
// authentication infrastructure, matching single-user local deployments.
type NopAuthProvider struct{}

// Validate implements AuthProvider. It never fails.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID:      "local-user",
		DisplayName: "Local User",
		Roles:       []string{"admin"},
	}, nil
}

// StaticTokenProvider validates requests against a single shared secret.
//
// Intended for small deployments where issuing per-user tokens is not worth
// the setup cost. The comparison is constant-time.
type StaticTokenProvider struct {
	// Token is the expected bearer token. Must be non-empty.
	Token string
}

// Validate implements AuthProvider.
func (p *StaticTokenProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if p.Token == "" {
		return nil, fmt.Errorf("static token provider misconfigured: empty token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.Token)) != 1 {
		return nil, fmt.Errorf("invalid bearer token: %w", ErrUnauthorized)
	}
	return &AuthInfo{
		UserID:      "token-user",
		DisplayName: "Token User",
		Roles:       []string{"user"},
	}, nil
}
