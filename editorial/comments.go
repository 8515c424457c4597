package editorial

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/logger"
	"autocatalog/models"
)

// CommentNode is an active comment with its active replies.
type CommentNode struct {
	models.Comment
	Replies []*CommentNode `json:"replies"`
}

// Comments returns the active comments of target as a reply tree, newest
// first at every level.
func (m *EditorialModule) Comments(ctx context.Context, target models.CommentTarget) ([]*CommentNode, error) {
	var comments []models.Comment
	err := m.db.WithContext(ctx).
		Preload("User").
		Where(target.Column()+" = ? AND is_active = ?", target.ID, true).
		Order(models.OrderComments).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}

	nodes := make(map[uint]*CommentNode, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &CommentNode{Comment: c, Replies: []*CommentNode{}}
	}

	roots := []*CommentNode{}
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		// replies under a hidden comment stay hidden
		if parent, ok := nodes[*c.ParentID]; ok {
			parent.Replies = append(parent.Replies, node)
		}
	}
	return roots, nil
}

// CreateComment stores a comment or reply on target and notifies the
// target's author.
func (m *EditorialModule) CreateComment(ctx context.Context, userID uint, target models.CommentTarget, parentID *uint, content string) (*models.Comment, error) {
	db := m.db.WithContext(ctx)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.Invalid("content", "this field is required")
	}

	owner, err := m.targetOwner(db, target)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		UserID:   userID,
		Content:  content,
		ParentID: parentID,
		IsActive: true,
	}
	comment.SetTarget(target)
	if err := db.Omit("User", "Replies").Create(&comment).Error; err != nil {
		return nil, err
	}

	logger.L().Info("comment created",
		zap.Uint("comment_id", comment.ID),
		zap.String("target", target.String()),
	)

	if owner.authorID != nil && *owner.authorID != userID {
		m.notifyAuthor(db, *owner.authorID, owner.title, owner.path)
	}
	return &comment, nil
}

type targetInfo struct {
	authorID *uint
	title    string
	path     string
}

func (m *EditorialModule) targetOwner(db *gorm.DB, target models.CommentTarget) (*targetInfo, error) {
	switch target.Kind {
	case models.TargetCar:
		var car models.Car
		if err := db.Select("id", "name", "slug", "author_id").First(&car, target.ID).Error; err != nil {
			return nil, missingTarget(err)
		}
		return &targetInfo{authorID: car.AuthorID, title: car.Name, path: "/car/" + car.Slug}, nil
	case models.TargetArticle:
		var article models.Article
		if err := db.Select("id", "title", "slug", "author_id").First(&article, target.ID).Error; err != nil {
			return nil, missingTarget(err)
		}
		return &targetInfo{authorID: &article.AuthorID, title: article.Title, path: "/articles/" + article.Slug}, nil
	default:
		return nil, common.Invalid("target", "unknown comment target")
	}
}

func missingTarget(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.Invalid("target", "the commented item does not exist")
	}
	return err
}

// notifyAuthor mails the author when their profile allows it. Failures are
// logged and never fail the comment.
func (m *EditorialModule) notifyAuthor(db *gorm.DB, authorID uint, title, path string) {
	var author models.User
	if err := db.Preload("Profile").First(&author, authorID).Error; err != nil {
		logger.L().Warn("comment notification: author not found", zap.Uint("user_id", authorID), zap.Error(err))
		return
	}
	if author.Email == "" || author.Profile == nil || !author.Profile.EmailNotifications {
		return
	}

	if err := m.mailer.SendCommentNotification(author.Email, author.Username, title, m.domain+path); err != nil {
		logger.L().Warn("failed to send comment notification", zap.String("to", author.Email), zap.Error(err))
	}
}
