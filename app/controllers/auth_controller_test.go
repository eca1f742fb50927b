package controllers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Arcana/app/models"
	"github.com/ManuelReschke/Arcana/app/repository"
)

func newAuthApp(repos *repository.Repositories) *fiber.App {
	ctrl := NewAuthController(repos.User, nil)
	app := fiber.New()
	app.Post("/register", ctrl.HandleRegister)
	app.Post("/login", ctrl.HandleLogin)
	return app
}

func TestHandleRegister(t *testing.T) {
	repos := newTestRepos(t)
	app := newAuthApp(repos)

	resp, body := doJSON(t, app, http.MethodPost, "/register", map[string]string{
		"name":     "Seeker",
		"email":    "Seeker@Example.com",
		"password": "correct-horse",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)

	apiKey, _ := body["apiKey"].(string)
	require.NotEmpty(t, apiKey)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "seeker@example.com", user["email"])
	assert.Equal(t, "FREE", user["tier"])
	assert.NotContains(t, user, "password")

	stored, err := repos.User.GetByAPIKeyHash(models.HashAPIKey(apiKey))
	require.NoError(t, err)
	assert.Equal(t, user["id"], stored.ID)
	assert.NotEqual(t, "correct-horse", stored.Password)

	resp, _ = doJSON(t, app, http.MethodPost, "/register", map[string]string{
		"name":     "Someone Else",
		"email":    "seeker@example.com",
		"password": "another-password",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestHandleRegister_Validation(t *testing.T) {
	app := newAuthApp(newTestRepos(t))

	for _, body := range []interface{}{
		"{",
		map[string]string{"name": "Seeker", "email": "not-an-email", "password": "correct-horse"},
		map[string]string{"name": "Seeker", "email": "a@example.com", "password": "short"},
		map[string]string{"name": "", "email": "a@example.com", "password": "correct-horse"},
	} {
		resp, _ := doJSON(t, app, http.MethodPost, "/register", body)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "body %v", body)
	}
}

func TestHandleLogin(t *testing.T) {
	repos := newTestRepos(t)
	app := newAuthApp(repos)
	user := seedUser(t, repos, "seeker@example.com")
	oldKey, err := user.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, repos.User.Update(user))

	t.Run("wrong password", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/login", map[string]string{"email": "seeker@example.com", "password": "nope-nope"})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown email", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/login", map[string]string{"email": "ghost@example.com", "password": "correct-horse"})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid email or password", body["message"])
	})

	t.Run("rotates api key", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/login", map[string]string{"email": "seeker@example.com", "password": "correct-horse"})
		require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
		newKey := body["apiKey"].(string)
		assert.NotEqual(t, oldKey, newKey)

		_, err := repos.User.GetByAPIKeyHash(models.HashAPIKey(oldKey))
		assert.Error(t, err, "the previous key must stop working")

		stored, err := repos.User.GetByAPIKeyHash(models.HashAPIKey(newKey))
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLoginAt)
	})

	t.Run("disabled user", func(t *testing.T) {
		user.Status = models.STATUS_DISABLED
		require.NoError(t, repos.User.Update(user))
		resp, _ := doJSON(t, app, http.MethodPost, "/login", map[string]string{"email": "seeker@example.com", "password": "correct-horse"})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}
