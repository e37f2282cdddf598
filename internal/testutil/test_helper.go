// Package testutil holds fixtures shared by tests that need a real database
// or signed tokens. Packages under repository cannot import it.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/noteduco342/om-relay/internal/config"
	"github.com/noteduco342/om-relay/internal/middleware"
	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/repository"
	"gorm.io/gorm"
)

// NewSQLiteDB opens a migrated in-memory database private to the test.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repository.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// SeedUsers creates users whose id, username and display name are all the
// given id.
func SeedUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	users := repository.NewUserRepository(db)
	for _, id := range ids {
		if err := users.Upsert(context.Background(), &models.User{ID: id, Username: id, DisplayName: id}); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
}

// SignToken returns an HS256 access token valid for an hour.
func SignToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
