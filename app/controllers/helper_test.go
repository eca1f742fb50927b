package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/models"
	"github.com/ManuelReschke/Arcana/app/repository"
	"github.com/ManuelReschke/Arcana/internal/pkg/database"
	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
	"github.com/ManuelReschke/Arcana/internal/pkg/usercontext"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory("ctrl_" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	return repository.NewFactory(newTestDB(t)).GetRepositories()
}

func seedUser(t *testing.T, repos *repository.Repositories, email string) *models.User {
	t.Helper()
	u, err := models.CreateUser("Seeker", email, "correct-horse")
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(u))
	return u
}

func seedReading(t *testing.T, repos *repository.Repositories, userID string) *models.Reading {
	t.Helper()
	r := &models.Reading{
		UserID:     userID,
		SpreadType: models.SpreadThreeCard,
		UserInput:  "Will the move go well?",
		CardsJSON:  `[{"name":"The Fool","position":0}]`,
	}
	require.NoError(t, repos.Reading.Create(r))
	return r
}

// asUser stands in for the API key middleware.
func asUser(userID string, tier entitlements.Tier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		usercontext.Set(c, usercontext.UserContext{UserID: userID, IsLoggedIn: true, Tier: tier})
		return c.Next()
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func repositoryFor(db *gorm.DB) *repository.Repositories {
	return repository.NewFactory(db).GetRepositories()
}
