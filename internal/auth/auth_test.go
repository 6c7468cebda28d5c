// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func createTestManager(t *testing.T) *Manager {
	t.Helper()
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return New(Config{
		Mode:              "jwt",
		JWTSecret:         testSecret,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		SessionTimeout:    time.Hour,
	})
}

func TestLoginAndValidate(t *testing.T) {
	m := createTestManager(t)

	token, err := m.Login("admin", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	subject, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if subject != "admin" {
		t.Errorf("subject = %s, want admin", subject)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	m := createTestManager(t)

	if _, err := m.Login("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(bad password) error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := m.Login("nobody", "correct horse battery staple"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(bad username) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	m := createTestManager(t)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := m.ValidateToken(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken(%q) error = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	m := createTestManager(t)
	other := New(Config{
		Mode:      "jwt",
		JWTSecret: "another-secret-another-secret-xx",
	})

	token, err := m.Login("admin", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() with wrong secret error = %v, want ErrInvalidToken", err)
	}
}

func TestMiddlewarePassThroughWhenDisabled(t *testing.T) {
	m := New(Config{Mode: "none"})
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 without auth in none mode", rec.Code)
	}
}

func TestMiddlewareEnforcesBearer(t *testing.T) {
	m := createTestManager(t)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with bad token = %d, want 401", rec.Code)
	}

	token, err := m.Login("admin", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status with valid token = %d, want 204", rec.Code)
	}
}
