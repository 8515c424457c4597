package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/database"
	"autocatalog/models"
)

const shortContentLen = 50

type commentInput struct {
	Content  string `form:"content" json:"content" binding:"required"`
	IsActive bool   `form:"is_active" json:"is_active"`
}

type commentRow struct {
	models.Comment
	ShortContent string `json:"short_content"`
}

func shortContent(s string) string {
	r := []rune(s)
	if len(r) <= shortContentLen {
		return s
	}
	return string(r[:shortContentLen]) + "..."
}

func (a *AdminModule) listComments(c *gin.Context) {
	q := a.db.WithContext(c.Request.Context()).Model(&models.Comment{})
	q = boolFilter(c, q, "is_active", "is_active")
	q = idFilter(c, q, "user", "user_id")
	q = idFilter(c, q, "car", "car_id")
	q = idFilter(c, q, "article", "article_id")
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		pattern := likePattern(term)
		q = q.Where(`LOWER(content) LIKE ? ESCAPE '\' OR user_id IN (SELECT id FROM users WHERE LOWER(username) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	var comments []models.Comment
	total, err := listQuery(c, q, models.OrderComments, &comments, "User")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	rows := make([]commentRow, len(comments))
	for i, cm := range comments {
		rows[i] = commentRow{Comment: cm, ShortContent: shortContent(cm.Content)}
	}

	c.JSON(http.StatusOK, gin.H{"comments": rows, "total": total})
}

// updateComment moderates a comment. Its target and parent are fixed.
func (a *AdminModule) updateComment(c *gin.Context) {
	var comment models.Comment
	if !a.load(c, &comment, "comment") {
		return
	}

	var in commentInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		common.RespondError(c, common.Invalid("content", "this field is required"))
		return
	}

	comment.Content = content
	comment.IsActive = in.IsActive
	err := a.db.WithContext(c.Request.Context()).Model(&comment).
		Select("content", "is_active").
		Updates(map[string]any{"content": content, "is_active": in.IsActive}).Error
	if err != nil {
		common.RespondError(c, err)
		return
	}

	a.changed(c, "update", "comment", comment.ID)
	c.JSON(http.StatusOK, gin.H{"comment": commentRow{Comment: comment, ShortContent: shortContent(comment.Content)}})
}

func (a *AdminModule) deleteComment(c *gin.Context) {
	var comment models.Comment
	if !a.load(c, &comment, "comment") {
		return
	}

	err := a.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		return database.DeleteComments(tx, comment.ID)
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	a.changed(c, "delete", "comment", comment.ID)
	respondDeleted(c, comment.ID)
}
