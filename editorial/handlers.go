package editorial

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"autocatalog/common"
	"autocatalog/models"
	"autocatalog/users"
)

func (m *EditorialModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/articles", m.cache.Middleware(), m.index)
	router.POST("/articles", users.RequireAuth(m.db), m.createArticle)
	router.GET("/articles/:slug", m.article)
	router.POST("/articles/:slug", users.RequireAuth(m.db), m.updateArticle)
	router.GET("/articles/:slug/comments", m.articleComments)
	router.POST("/articles/:slug/comments", users.RequireAuth(m.db), m.commentArticle)

	router.GET("/car/:slug/comments", m.carComments)
	router.POST("/car/:slug/comments", users.RequireAuth(m.db), m.commentCar)
}

func (m *EditorialModule) index(c *gin.Context) {
	articles, err := m.PublishedArticles(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (m *EditorialModule) article(c *gin.Context) {
	ctx := c.Request.Context()

	article, err := m.ArticleBySlug(ctx, c.Param("slug"), true)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if !article.IsPublished && !m.canEdit(c, article) {
		common.RespondError(c, fmt.Errorf("article: %w", common.ErrNotFound))
		return
	}

	if err := m.IncrementArticleViews(ctx, article.ID); err != nil {
		common.RespondError(c, err)
		return
	}
	article.Views++

	c.JSON(http.StatusOK, gin.H{
		"article":      article,
		"content_html": renderMarkdown(article.Content),
	})
}

func (m *EditorialModule) canEdit(c *gin.Context, article *models.Article) bool {
	userID, ok := users.CurrentUserID(c)
	if !ok {
		return false
	}
	return userID == article.AuthorID || m.isStaff(m.db.WithContext(c.Request.Context()), userID)
}

func (m *EditorialModule) createArticle(c *gin.Context) {
	userID, _ := users.CurrentUserID(c)

	var in ArticleInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	article, err := m.CreateArticle(c.Request.Context(), userID, in)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"article": article})
}

func (m *EditorialModule) updateArticle(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := users.CurrentUserID(c)

	existing, err := m.ArticleBySlug(ctx, c.Param("slug"), true)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var in ArticleInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	article, err := m.UpdateArticle(ctx, existing.ID, userID, in)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"article": article})
}

type commentInput struct {
	Content  string `form:"content" json:"content"`
	ParentID *uint  `form:"parent_id" json:"parent_id"`
}

func (m *EditorialModule) articleComments(c *gin.Context) {
	article, err := m.ArticleBySlug(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	m.listComments(c, models.ArticleTarget(article.ID))
}

func (m *EditorialModule) carComments(c *gin.Context) {
	carID, err := m.carIDBySlug(c, c.Param("slug"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	m.listComments(c, models.CarTarget(carID))
}

func (m *EditorialModule) listComments(c *gin.Context, target models.CommentTarget) {
	tree, err := m.Comments(c.Request.Context(), target)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": tree})
}

func (m *EditorialModule) commentArticle(c *gin.Context) {
	article, err := m.ArticleBySlug(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	m.postComment(c, models.ArticleTarget(article.ID))
}

func (m *EditorialModule) commentCar(c *gin.Context) {
	carID, err := m.carIDBySlug(c, c.Param("slug"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	m.postComment(c, models.CarTarget(carID))
}

func (m *EditorialModule) postComment(c *gin.Context, target models.CommentTarget) {
	userID, _ := users.CurrentUserID(c)

	var in commentInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	comment, err := m.CreateComment(c.Request.Context(), userID, target, in.ParentID, in.Content)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

func (m *EditorialModule) carIDBySlug(c *gin.Context, slug string) (uint, error) {
	var car models.Car
	err := m.db.WithContext(c.Request.Context()).
		Select("id").
		Where("slug = ?", slug).
		Order(models.OrderCars).
		First(&car).Error
	if err != nil {
		return 0, common.NotFound(err, "car")
	}
	return car.ID, nil
}
