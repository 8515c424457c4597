package site

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"autocatalog/cache"
	"autocatalog/catalog"
	"autocatalog/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func setupTestRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cacheStore := cache.NewStore(t.TempDir(), time.Minute)
	siteModule := NewSiteModule(db, catalog.NewCatalogModule(db, cacheStore), cacheStore, "https://cars.example.com/")

	router := gin.New()
	siteModule.RegisterRoutes(router)
	return router
}

func seed(t *testing.T, db *gorm.DB) {
	author := &models.User{Username: "writer", PasswordHash: "hash", IsActive: true}
	require.NoError(t, db.Create(author).Error)

	sedans := &models.Category{Title: "Sedans"}
	require.NoError(t, db.Create(sedans).Error)
	require.NoError(t, db.Create(&models.Category{Title: "Trucks"}).Error)

	require.NoError(t, db.Create(&models.Car{Name: "Model X", CatID: sedans.ID, IsActive: true}).Error)
	require.NoError(t, db.Create(&models.Car{Name: "Prototype", CatID: sedans.ID}).Error)

	require.NoError(t, db.Create(&models.Article{Title: "First Drive", AuthorID: author.ID, IsPublished: true}).Error)
	require.NoError(t, db.Create(&models.Article{Title: "Secret Draft", AuthorID: author.ID}).Error)
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)
	router := setupTestRouter(t, db)

	w := get(router, "/")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Stats      Stats        `json:"stats"`
		LatestCars []models.Car `json:"latest_cars"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, Stats{TotalCars: 2, TotalCategories: 2, TotalArticles: 1}, body.Stats)
	require.Len(t, body.LatestCars, 1)
	assert.Equal(t, "model-x", body.LatestCars[0].Slug)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = get(router, "/")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestAbout(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)
	router := setupTestRouter(t, db)

	w := get(router, "/about")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stats":{"total_cars":2,"total_categories":2,"total_articles":1}}`, w.Body.String())
}

func TestSitemap(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)
	router := setupTestRouter(t, db)

	w := get(router, "/sitemap.xml")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "<loc>https://cars.example.com/</loc>")
	assert.Contains(t, body, "<loc>https://cars.example.com/categories/sedans</loc>")
	assert.Contains(t, body, "<loc>https://cars.example.com/categories/trucks</loc>")
	assert.Contains(t, body, "<loc>https://cars.example.com/car/model-x</loc>")
	assert.Contains(t, body, "<loc>https://cars.example.com/articles/first-drive</loc>")
	assert.NotContains(t, body, "prototype")
	assert.NotContains(t, body, "secret-draft")
}
