package cache

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(store *Store, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/cars", store.Middleware(), func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"calls": *calls, "q": c.Query("q")})
	})
	router.GET("/missing", store.Middleware(), func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return router
}

func get(router *gin.Engine, uri string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", uri, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGenerateHash(t *testing.T) {
	assert.Len(t, generateHash("/cars"), 16)
	assert.Equal(t, generateHash("/cars"), generateHash("/cars"))
	assert.NotEqual(t, generateHash("/cars"), generateHash("/cars?q=1"))
}

func TestMiddleware_HitAfterMiss(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	calls := 0
	router := setupTestRouter(store, &calls)

	w := get(router, "/cars")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = get(router, "/cars")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1,"q":""}`, w.Body.String())
	assert.Equal(t, 1, calls)

	w = get(router, "/cars?q=bmw")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestMiddleware_SkipsErrors(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	calls := 0
	router := setupTestRouter(store, &calls)

	get(router, "/missing")
	w := get(router, "/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 2, calls)
}

func TestRead_Expired(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	require.NoError(t, store.Write("/cars", []byte(`{}`)))

	old := time.Now().Add(-2 * time.Minute)
	require.NoError(t, os.Chtimes(store.Path("/cars"), old, old))

	_, found := store.Read("/cars")
	assert.False(t, found)

	require.NoError(t, store.ClearOld())
	_, err := os.Stat(store.Path("/cars"))
	assert.True(t, os.IsNotExist(err))
}

func TestClear(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	calls := 0
	router := setupTestRouter(store, &calls)

	get(router, "/cars")
	require.NoError(t, store.Clear())

	w := get(router, "/cars")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	assert.NoError(t, NewStore(t.TempDir()+"/absent", time.Minute).Clear())
}

func TestMiddleware_DropsResponseComputedBeforeClear(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	calls := 0
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/cars", store.Middleware(), func(c *gin.Context) {
		calls++
		if calls == 1 {
			// a write lands while this listing is being rendered
			require.NoError(t, store.Clear())
		}
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	w := get(router, "/cars")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = get(router, "/cars")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":2}`, w.Body.String())

	w = get(router, "/cars")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Write("/cars", []byte(strings.Repeat("x", 1024*(i+1)))))
		}(i)
	}
	wg.Wait()

	body, ok := store.Read("/cars")
	require.True(t, ok)
	assert.Zero(t, len(body)%1024)
	assert.Equal(t, strings.Repeat("x", len(body)), string(body))

	leftovers, err := filepath.Glob(filepath.Join(store.dir, "*"+tempSuffix))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteIfCurrent(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	gen := store.Generation()
	require.NoError(t, store.Clear())

	stored, err := store.WriteIfCurrent("/cars", []byte(`{}`), gen)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok := store.Read("/cars")
	assert.False(t, ok)

	stored, err = store.WriteIfCurrent("/cars", []byte(`{}`), store.Generation())
	require.NoError(t, err)
	assert.True(t, stored)
}
