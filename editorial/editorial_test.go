package editorial

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"autocatalog/cache"
	"autocatalog/common"
	"autocatalog/database"
	"autocatalog/media"
	"autocatalog/models"
)

type notification struct {
	to, subject, link string
}

type recordingMailer struct {
	notes []notification
}

func (r *recordingMailer) SendWelcome(to, username string) error { return nil }

func (r *recordingMailer) SendCommentNotification(to, username, subject, link string) error {
	r.notes = append(r.notes, notification{to: to, subject: subject, link: link})
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func setupTestModule(t *testing.T) (*EditorialModule, *recordingMailer) {
	mailer := &recordingMailer{}
	m := NewEditorialModule(setupTestDB(t), cache.NewStore(t.TempDir(), time.Minute), mailer,
		media.NewStore(t.TempDir()), "http://localhost:8080/")
	return m, mailer
}

func setupTestRouter(m *EditorialModule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))
	router.GET("/test/login/:id", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		session := sessions.Default(c)
		session.Set("user_id", uint(id))
		session.Save()
		c.Status(http.StatusNoContent)
	})
	m.RegisterRoutes(router)
	return router
}

func createTestUser(t *testing.T, db *gorm.DB, username string, staff bool) *models.User {
	user := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "hash", IsActive: true, IsStaff: staff}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestCar(t *testing.T, db *gorm.DB, name string, authorID *uint) *models.Car {
	cat := &models.Category{Title: "Cat " + name}
	require.NoError(t, db.Create(cat).Error)
	car := &models.Car{Name: name, CatID: cat.ID, AuthorID: authorID, IsActive: true}
	require.NoError(t, db.Create(car).Error)
	return car
}

func createTestArticle(t *testing.T, m *EditorialModule, authorID uint, title string, published bool) *models.Article {
	article, err := m.CreateArticle(context.Background(), authorID, ArticleInput{
		Title:       title,
		Content:     "# Heading\n\nThis is **bold**.",
		IsPublished: published,
	})
	require.NoError(t, err)
	return article
}

func fieldNames(t *testing.T, err error) []string {
	var ve *common.ValidationError
	require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
	var names []string
	for _, f := range ve.Fields {
		names = append(names, f.Field)
	}
	return names
}

func request(router *gin.Engine, method, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req, _ = http.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginAs(t *testing.T, router *gin.Engine, userID uint) []*http.Cookie {
	w := request(router, "GET", fmt.Sprintf("/test/login/%d", userID), nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	return w.Result().Cookies()
}

func TestRenderMarkdown(t *testing.T) {
	html := renderMarkdown("# Title\n\nSome **bold** text and https://example.com")
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, `<a href="https://example.com">`)

	assert.NotContains(t, renderMarkdown("<script>alert(1)</script>"), "<script>")
}

func TestCreateArticle(t *testing.T) {
	m, _ := setupTestModule(t)
	author := createTestUser(t, m.db, "writer", false)
	car := createTestCar(t, m.db, "Model X", nil)

	article, err := m.CreateArticle(context.Background(), author.ID, ArticleInput{
		Title:  "Model X Long Term Test",
		CarIDs: []uint{car.ID, car.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "model-x-long-term-test", article.Slug)
	require.Len(t, article.Cars, 1)
	assert.Equal(t, car.ID, article.Cars[0].ID)

	var profile models.Profile
	require.NoError(t, m.db.Where("user_id = ?", author.ID).First(&profile).Error)
	assert.Equal(t, uint(1), profile.ReviewsWritten)
}

func TestCreateArticle_Validation(t *testing.T) {
	m, _ := setupTestModule(t)
	author := createTestUser(t, m.db, "writer", false)
	createTestArticle(t, m, author.ID, "Road Test", true)

	_, err := m.CreateArticle(context.Background(), author.ID, ArticleInput{Title: "Road Test"})
	assert.Equal(t, []string{"slug"}, fieldNames(t, err))
	assert.Contains(t, err.Error(), "article with this slug already exists")

	_, err = m.CreateArticle(context.Background(), author.ID, ArticleInput{Title: "Other", CarIDs: []uint{42}})
	assert.Equal(t, []string{"cars"}, fieldNames(t, err))

	_, err = m.CreateArticle(context.Background(), author.ID, ArticleInput{})
	assert.Equal(t, []string{"title"}, fieldNames(t, err))

	var count int64
	m.db.Model(&models.Article{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpdateArticle(t *testing.T) {
	m, _ := setupTestModule(t)
	author := createTestUser(t, m.db, "writer", false)
	other := createTestUser(t, m.db, "reader", false)
	staff := createTestUser(t, m.db, "editor", true)
	carA := createTestCar(t, m.db, "A", nil)
	carB := createTestCar(t, m.db, "B", nil)
	ctx := context.Background()

	article, err := m.CreateArticle(ctx, author.ID, ArticleInput{Title: "Draft", CarIDs: []uint{carA.ID}})
	require.NoError(t, err)

	_, err = m.UpdateArticle(ctx, article.ID, other.ID, ArticleInput{Title: "Hijacked"})
	assert.ErrorIs(t, err, common.ErrForbidden)

	updated, err := m.UpdateArticle(ctx, article.ID, author.ID, ArticleInput{
		Title:       "Final",
		IsPublished: true,
		CarIDs:      []uint{carB.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", updated.Slug)
	assert.True(t, updated.IsPublished)
	require.Len(t, updated.Cars, 1)
	assert.Equal(t, carB.ID, updated.Cars[0].ID)

	updated, err = m.UpdateArticle(ctx, article.ID, staff.ID, ArticleInput{Title: "Final", Slug: "final"})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Slug)
	assert.Empty(t, updated.Cars)

	createTestArticle(t, m, author.ID, "Taken", true)
	_, err = m.UpdateArticle(ctx, article.ID, author.ID, ArticleInput{Title: "Final", Slug: "taken"})
	assert.Equal(t, []string{"slug"}, fieldNames(t, err))
}

func TestPublishedArticles(t *testing.T) {
	m, _ := setupTestModule(t)
	author := createTestUser(t, m.db, "writer", false)
	createTestArticle(t, m, author.ID, "Published", true)
	createTestArticle(t, m, author.ID, "Hidden", false)

	articles, err := m.PublishedArticles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Published", articles[0].Title)

	_, err = m.ArticleBySlug(context.Background(), "hidden", false)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = m.ArticleBySlug(context.Background(), "hidden", true)
	assert.NoError(t, err)
}

func TestComments_Tree(t *testing.T) {
	m, _ := setupTestModule(t)
	user := createTestUser(t, m.db, "alice", false)
	car := createTestCar(t, m.db, "Model X", nil)
	target := models.CarTarget(car.ID)
	ctx := context.Background()

	top, err := m.CreateComment(ctx, user.ID, target, nil, "great car")
	require.NoError(t, err)
	reply, err := m.CreateComment(ctx, user.ID, target, &top.ID, "agreed")
	require.NoError(t, err)
	_, err = m.CreateComment(ctx, user.ID, target, &reply.ID, "me too")
	require.NoError(t, err)
	hidden, err := m.CreateComment(ctx, user.ID, target, nil, "spam")
	require.NoError(t, err)
	_, err = m.CreateComment(ctx, user.ID, target, &hidden.ID, "reply to spam")
	require.NoError(t, err)
	require.NoError(t, m.db.Model(hidden).UpdateColumn("is_active", false).Error)

	tree, err := m.Comments(ctx, target)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "great car", tree[0].Content)
	require.Len(t, tree[0].Replies, 1)
	require.Len(t, tree[0].Replies[0].Replies, 1)
	assert.Equal(t, "me too", tree[0].Replies[0].Replies[0].Content)
	require.NotNil(t, tree[0].User)
	assert.Equal(t, "alice", tree[0].User.Username)
}

func TestCreateComment_Validation(t *testing.T) {
	m, _ := setupTestModule(t)
	user := createTestUser(t, m.db, "alice", false)
	car := createTestCar(t, m.db, "Model X", nil)
	article := createTestArticle(t, m, user.ID, "Review", true)
	ctx := context.Background()

	_, err := m.CreateComment(ctx, user.ID, models.CarTarget(car.ID), nil, "   ")
	assert.Equal(t, []string{"content"}, fieldNames(t, err))

	_, err = m.CreateComment(ctx, user.ID, models.CarTarget(999), nil, "hello")
	assert.Equal(t, []string{"target"}, fieldNames(t, err))

	missing := uint(999)
	_, err = m.CreateComment(ctx, user.ID, models.CarTarget(car.ID), &missing, "hello")
	assert.Equal(t, []string{"parent"}, fieldNames(t, err))

	onCar, err := m.CreateComment(ctx, user.ID, models.CarTarget(car.ID), nil, "hello")
	require.NoError(t, err)
	_, err = m.CreateComment(ctx, user.ID, models.ArticleTarget(article.ID), &onCar.ID, "cross reply")
	assert.Equal(t, []string{"parent"}, fieldNames(t, err))
}

func TestCreateComment_NotifiesAuthor(t *testing.T) {
	m, mailer := setupTestModule(t)
	author := createTestUser(t, m.db, "dealer", false)
	reader := createTestUser(t, m.db, "reader", false)
	car := createTestCar(t, m.db, "Model X", &author.ID)
	ctx := context.Background()

	_, err := m.CreateComment(ctx, reader.ID, models.CarTarget(car.ID), nil, "how much?")
	require.NoError(t, err)
	require.Len(t, mailer.notes, 1)
	assert.Equal(t, "dealer@example.com", mailer.notes[0].to)
	assert.Equal(t, "Model X", mailer.notes[0].subject)
	assert.Equal(t, "http://localhost:8080/car/model-x", mailer.notes[0].link)

	// own comments and opted-out authors are not notified
	_, err = m.CreateComment(ctx, author.ID, models.CarTarget(car.ID), nil, "ask me")
	require.NoError(t, err)
	require.NoError(t, m.db.Model(&models.Profile{}).Where("user_id = ?", author.ID).
		UpdateColumn("email_notifications", false).Error)
	_, err = m.CreateComment(ctx, reader.ID, models.CarTarget(car.ID), nil, "hello?")
	require.NoError(t, err)
	assert.Len(t, mailer.notes, 1)
}

func TestArticleRoutes(t *testing.T) {
	m, _ := setupTestModule(t)
	router := setupTestRouter(m)
	author := createTestUser(t, m.db, "writer", false)
	reader := createTestUser(t, m.db, "reader", false)

	w := request(router, "POST", "/articles", url.Values{"title": {"Road Test"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	authorCookies := loginAs(t, router, author.ID)
	w = request(router, "POST", "/articles", url.Values{"title": {"Road Test"}, "content": {"**fast**"}}, authorCookies)
	require.Equal(t, http.StatusCreated, w.Code)

	// drafts are only visible to their author
	readerCookies := loginAs(t, router, reader.ID)
	assert.Equal(t, http.StatusNotFound, request(router, "GET", "/articles/road-test", nil, readerCookies).Code)
	w = request(router, "GET", "/articles/road-test", nil, authorCookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "\\u003cstrong\\u003efast\\u003c/strong\\u003e")

	w = request(router, "POST", "/articles/road-test", url.Values{"title": {"Road Test"}, "is_published": {"true"}}, readerCookies)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = request(router, "POST", "/articles/road-test", url.Values{"title": {"Road Test"}, "is_published": {"true"}}, authorCookies)
	require.Equal(t, http.StatusOK, w.Code)

	w = request(router, "GET", "/articles", nil, nil)
	assert.Contains(t, w.Body.String(), `"slug":"road-test"`)

	w = request(router, "GET", "/articles/road-test", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var article models.Article
	require.NoError(t, m.db.Where("slug = ?", "road-test").First(&article).Error)
	assert.Equal(t, uint(2), article.Views)
}

func TestCommentRoutes(t *testing.T) {
	m, _ := setupTestModule(t)
	router := setupTestRouter(m)
	user := createTestUser(t, m.db, "alice", false)
	createTestCar(t, m.db, "Model X", nil)
	createTestArticle(t, m, user.ID, "Review", true)

	w := request(router, "POST", "/car/model-x/comments", url.Values{"content": {"nice"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookies := loginAs(t, router, user.ID)
	w = request(router, "POST", "/car/model-x/comments", url.Values{"content": {"nice"}}, cookies)
	require.Equal(t, http.StatusCreated, w.Code)

	w = request(router, "POST", "/articles/review/comments", url.Values{"content": {""}}, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(router, "POST", "/car/unknown/comments", url.Values{"content": {"hi"}}, cookies)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(router, "GET", "/car/model-x/comments", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"content":"nice"`)

	w = request(router, "GET", "/articles/review/comments", nil, nil)
	assert.JSONEq(t, `{"comments":[]}`, w.Body.String())
}

func TestCommentRoutes_RejectStaleSession(t *testing.T) {
	m, _ := setupTestModule(t)
	router := setupTestRouter(m)
	author := createTestUser(t, m.db, "author", false)
	createTestArticle(t, m, author.ID, "Review", true)

	banned := createTestUser(t, m.db, "banned", false)
	bannedCookies := loginAs(t, router, banned.ID)
	require.NoError(t, m.db.Model(banned).UpdateColumn("is_active", false).Error)

	w := request(router, "POST", "/articles/review/comments", url.Values{"content": {"still here"}}, bannedCookies)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	deleted := createTestUser(t, m.db, "deleted", false)
	deletedCookies := loginAs(t, router, deleted.ID)
	require.NoError(t, m.db.Transaction(func(tx *gorm.DB) error {
		_, err := database.DeleteUser(tx, deleted.ID)
		return err
	}))

	w = request(router, "POST", "/articles/review/comments", url.Values{"content": {"ghost"}}, deletedCookies)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = request(router, "POST", "/articles", url.Values{"title": {"Ghost"}, "content": {"text"}}, deletedCookies)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var comments int64
	require.NoError(t, m.db.Model(&models.Comment{}).Count(&comments).Error)
	assert.Zero(t, comments)
}
