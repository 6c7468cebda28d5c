// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package auth provides optional bearer-token authentication for the
// HTTP surface. In "none" mode (the default) every request passes; in
// "jwt" mode admin credentials exchange for an HS256 token at login and
// protected routes require it.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials rejects a login with a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken rejects a request with a missing or bad bearer token.
	ErrInvalidToken = errors.New("invalid token")
)

// Config carries what the manager needs from the security section.
type Config struct {
	Mode              string // "none" or "jwt"
	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string // bcrypt hash
	SessionTimeout    time.Duration
}

// Manager issues and validates tokens.
type Manager struct {
	cfg Config
}

// New creates a manager. Callers are expected to have validated the
// config already (config.Validate enforces the jwt-mode requirements).
func New(cfg Config) *Manager {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 24 * time.Hour
	}
	return &Manager{cfg: cfg}
}

// Enabled reports whether authentication is enforced.
func (m *Manager) Enabled() bool {
	return m.cfg.Mode == "jwt"
}

// Login checks the admin credentials and returns a signed token.
func (m *Manager) Login(username, password string) (string, error) {
	if username != m.cfg.AdminUsername {
		// Burn comparable time so username probing is not cheaper than
		// password probing.
		_ = bcrypt.CompareHashAndPassword([]byte(m.cfg.AdminPasswordHash), []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.SessionTimeout)),
		Issuer:    "meet-tracker",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a bearer token, returning the subject.
func (m *Manager) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Middleware enforces bearer auth on protected routes. In "none" mode it
// is a pass-through.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := m.ValidateToken(strings.TrimPrefix(header, prefix)); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashPassword is a helper for provisioning the admin password hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
