package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/database"
	"autocatalog/editorial"
	"autocatalog/models"
	"autocatalog/users"
)

// articleInput is the editorial form plus the author, which staff may
// reassign.
type articleInput struct {
	editorial.ArticleInput
	AuthorID uint `form:"author_id" json:"author_id"`
}

func (a *AdminModule) listArticles(c *gin.Context) {
	q := a.db.WithContext(c.Request.Context()).Model(&models.Article{})
	q = search(q, c.Query("q"), "title", "content")
	q = boolFilter(c, q, "is_published", "is_published")
	q = idFilter(c, q, "author", "author_id")

	var articles []models.Article
	total, err := listQuery(c, q, models.OrderArticles, &articles, "Author")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles": articles, "total": total})
}

func (a *AdminModule) createArticle(c *gin.Context) {
	ctx := c.Request.Context()

	var in articleInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}
	if err := a.checkAuthor(a.db.WithContext(ctx), in.AuthorID, true); err != nil {
		common.RespondError(c, err)
		return
	}

	article, err := a.editorial.CreateArticle(ctx, in.AuthorID, in.ArticleInput)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	a.changed(c, "create", "article", article.ID)
	c.JSON(http.StatusCreated, gin.H{"article": article})
}

func (a *AdminModule) updateArticle(c *gin.Context) {
	ctx := c.Request.Context()
	db := a.db.WithContext(ctx)

	var existing models.Article
	if !a.load(c, &existing, "article") {
		return
	}

	var in articleInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}
	if err := a.checkAuthor(db, in.AuthorID, false); err != nil {
		common.RespondError(c, err)
		return
	}

	staffID, _ := users.CurrentUserID(c)
	article, err := a.editorial.UpdateArticle(ctx, existing.ID, staffID, in.ArticleInput)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if in.AuthorID != 0 && in.AuthorID != article.AuthorID {
		if err := db.Model(&models.Article{}).Where("id = ?", article.ID).
			UpdateColumn("author_id", in.AuthorID).Error; err != nil {
			common.RespondError(c, err)
			return
		}
		if article, err = a.editorial.ArticleBySlug(ctx, article.Slug, true); err != nil {
			common.RespondError(c, err)
			return
		}
	}

	a.changed(c, "update", "article", article.ID)
	c.JSON(http.StatusOK, gin.H{"article": article})
}

func (a *AdminModule) deleteArticle(c *gin.Context) {
	var article models.Article
	if !a.load(c, &article, "article") {
		return
	}

	var files []string
	err := a.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		files, err = database.DeleteArticles(tx, article.ID)
		return err
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	a.media.RemoveAll(files...)

	a.changed(c, "delete", "article", article.ID)
	respondDeleted(c, article.ID)
}

func (a *AdminModule) checkAuthor(db *gorm.DB, authorID uint, required bool) error {
	if authorID == 0 {
		if required {
			return common.Invalid("author_id", "this field is required")
		}
		return nil
	}
	ok, err := a.exists(db, &models.User{}, authorID)
	if err != nil {
		return err
	}
	if !ok {
		return common.Invalid("author_id", "select a valid choice")
	}
	return nil
}
