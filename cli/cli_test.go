package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autocatalog/common"
	"autocatalog/config"
	"autocatalog/database"
	"autocatalog/models"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

func useTempDatabase(t *testing.T) string {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "autocatalog.db")
	t.Setenv("DATABASE_URL", dbURL)
	t.Setenv("MEDIA_DIR", t.TempDir())
	t.Setenv("SMTP_HOST", "")
	return dbURL
}

func TestCreateUserCommand(t *testing.T) {
	dbURL := useTempDatabase(t)

	out, err := runCommand(t, "createuser", "--username", "boss", "--email", "boss@example.com", "--password", "s3cret-pass", "--staff")
	require.NoError(t, err)
	assert.Contains(t, out, "created user boss")

	db, err := common.ConnectDb(dbURL)
	require.NoError(t, err)
	var user models.User
	require.NoError(t, db.Preload("Profile").Where("username = ?", "boss").First(&user).Error)
	assert.True(t, user.IsStaff)
	assert.NotNil(t, user.Profile)

	_, err = runCommand(t, "createuser", "--username", "boss", "--email", "other@example.com", "--password", "s3cret-pass")
	assert.True(t, common.IsValidation(err))
}

func TestMigrateCommand(t *testing.T) {
	dbURL := useTempDatabase(t)

	_, err := runCommand(t, "migrate")
	require.NoError(t, err)

	db, err := common.ConnectDb(dbURL)
	require.NoError(t, err)
	for _, model := range models.All() {
		assert.True(t, db.Migrator().HasTable(model))
	}
}

func TestServeRequiresSessionSecret(t *testing.T) {
	useTempDatabase(t)
	t.Setenv("SESSION_SECRET", "")

	_, err := runCommand(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_secret")
}

func TestNewRouter(t *testing.T) {
	db, err := common.ConnectDb(":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.RunMigrations(db))

	cfg := &config.Config{
		Port:          "8080",
		SessionSecret: "secret",
		Domain:        "http://localhost:8080",
		MediaDir:      t.TempDir(),
		CacheDir:      t.TempDir(),
		CacheMaxAge:   time.Minute,
	}
	router := newRouter(cfg, db)

	for path, want := range map[string]int{
		"/about":              http.StatusOK,
		"/categories":         http.StatusOK,
		"/articles":           http.StatusOK,
		"/sitemap.xml":        http.StatusOK,
		"/admin":              http.StatusUnauthorized,
		"/users/profile":      http.StatusUnauthorized,
		"/car/does-not-exist": http.StatusNotFound,
	} {
		req, _ := http.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, path)
	}
}
