package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"taskory/config"
	"taskory/models"
	"taskory/routes"
	"taskory/utils"
)

// setupApp builds the full route tree over a fresh in-memory database.
// The package-level config.DB is repointed so the auth middleware sees the
// same database the handlers do.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database handle: %v", err)
	}
	// A single connection keeps every session on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	config.DB = db
	config.AppConfig.Environment = "test"
	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.FrontendURL = "http://localhost:3000"
	config.AppConfig.UploadDir = t.TempDir()

	app := fiber.New()
	routes.SetupRoutes(app, db)
	return app, db
}

func createUser(t *testing.T, db *gorm.DB, username string, admin bool) (*models.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     true,
		IsAdmin:      admin,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}

	access, _, err := utils.GenerateJWTToken(user)
	if err != nil {
		t.Fatalf("failed to generate token for %s: %v", username, err)
	}
	return user, access
}

// request performs a JSON request and decodes the envelope when the
// response carries one.
func request(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}

	var out map[string]interface{}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("%s %s: failed to decode response: %v", method, path, err)
		}
	}
	return resp, out
}

func createProject(t *testing.T, app *fiber.App, token, name string) uint {
	t.Helper()

	resp, body := request(t, app, fiber.MethodPost, "/api/projects", token, fiber.Map{"name": name})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create project returned %d: %v", resp.StatusCode, body)
	}
	return entityID(t, body)
}

func createTask(t *testing.T, app *fiber.App, token string, fields fiber.Map) uint {
	t.Helper()

	resp, body := request(t, app, fiber.MethodPost, "/api/tasks", token, fields)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create task returned %d: %v", resp.StatusCode, body)
	}
	return entityID(t, body)
}

func addProjectMember(t *testing.T, app *fiber.App, token string, projectID, userID uint, role string) {
	t.Helper()

	path := "/api/projects/" + itoa(projectID) + "/members"
	resp, body := request(t, app, fiber.MethodPost, path, token, fiber.Map{"user_id": userID, "role": role})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("add member returned %d: %v", resp.StatusCode, body)
	}
}

// entityID pulls the created row's ID out of the data envelope.
func entityID(t *testing.T, body map[string]interface{}) uint {
	t.Helper()

	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no data object: %v", body)
	}
	id, ok := data["ID"].(float64)
	if !ok {
		t.Fatalf("data has no ID: %v", data)
	}
	return uint(id)
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
