package editorial

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"autocatalog/cache"
	"autocatalog/common"
	"autocatalog/email"
	"autocatalog/logger"
	"autocatalog/media"
	"autocatalog/models"
)

const imageFolder = "articles"

type EditorialModule struct {
	db     *gorm.DB
	cache  *cache.Store
	mailer email.Mailer
	media  *media.Store
	domain string
}

func NewEditorialModule(db *gorm.DB, cacheStore *cache.Store, mailer email.Mailer, mediaStore *media.Store, domain string) *EditorialModule {
	return &EditorialModule{
		db:     db,
		cache:  cacheStore,
		mailer: mailer,
		media:  mediaStore,
		domain: strings.TrimRight(domain, "/"),
	}
}

type ArticleInput struct {
	Title       string                `form:"title" json:"title" binding:"required,max=200"`
	Slug        string                `form:"slug" json:"slug" binding:"max=200"`
	Content     string                `form:"content" json:"content"`
	Excerpt     string                `form:"excerpt" json:"excerpt" binding:"max=300"`
	IsPublished bool                  `form:"is_published" json:"is_published"`
	CarIDs      []uint                `form:"cars" json:"cars"`
	Image       *multipart.FileHeader `form:"image" json:"-"`
}

// PublishedArticles lists published articles, newest first.
func (m *EditorialModule) PublishedArticles(ctx context.Context) ([]models.Article, error) {
	var articles []models.Article
	err := m.db.WithContext(ctx).
		Preload("Author").
		Where("is_published = ?", true).
		Order(models.OrderArticles).
		Find(&articles).Error
	return articles, err
}

func (m *EditorialModule) ArticleBySlug(ctx context.Context, slug string, includeDrafts bool) (*models.Article, error) {
	q := m.db.WithContext(ctx).
		Preload("Author").
		Preload("Cars", func(db *gorm.DB) *gorm.DB { return db.Order(models.OrderCars) }).
		Where("slug = ?", slug)
	if !includeDrafts {
		q = q.Where("is_published = ?", true)
	}

	var article models.Article
	if err := q.First(&article).Error; err != nil {
		return nil, common.NotFound(err, "article")
	}
	return &article, nil
}

func (m *EditorialModule) IncrementArticleViews(ctx context.Context, id uint) error {
	res := m.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NotFound(gorm.ErrRecordNotFound, "article")
	}
	return nil
}

func (m *EditorialModule) CreateArticle(ctx context.Context, authorID uint, in ArticleInput) (*models.Article, error) {
	db := m.db.WithContext(ctx)

	slug, err := m.checkArticleInput(db, in, 0)
	if err != nil {
		return nil, err
	}

	article := models.Article{
		Title:       strings.TrimSpace(in.Title),
		Slug:        slug,
		Content:     in.Content,
		Excerpt:     in.Excerpt,
		AuthorID:    authorID,
		IsPublished: in.IsPublished,
	}
	if in.Image != nil {
		if article.Image, err = m.media.Save(imageFolder, "image", in.Image); err != nil {
			return nil, err
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Cars", "Author").Create(&article).Error; err != nil {
			return err
		}
		return replaceArticleCars(tx, article.ID, in.CarIDs)
	})
	if err != nil {
		_ = m.media.Remove(article.Image)
		return nil, err
	}

	m.clearCache()
	logger.L().Info("article created", zap.Uint("article_id", article.ID), zap.String("slug", article.Slug))
	return m.ArticleBySlug(ctx, article.Slug, true)
}

// UpdateArticle applies in to the article. Only its author or a staff
// account may do so.
func (m *EditorialModule) UpdateArticle(ctx context.Context, id, actorID uint, in ArticleInput) (*models.Article, error) {
	db := m.db.WithContext(ctx)

	var article models.Article
	if err := db.First(&article, id).Error; err != nil {
		return nil, common.NotFound(err, "article")
	}
	if article.AuthorID != actorID && !m.isStaff(db, actorID) {
		return nil, fmt.Errorf("only the author can edit this article: %w", common.ErrForbidden)
	}

	if in.Slug == "" {
		in.Slug = article.Slug
	}
	slug, err := m.checkArticleInput(db, in, article.ID)
	if err != nil {
		return nil, err
	}

	oldImage := article.Image
	article.Title = strings.TrimSpace(in.Title)
	article.Slug = slug
	article.Content = in.Content
	article.Excerpt = in.Excerpt
	article.IsPublished = in.IsPublished
	if in.Image != nil {
		if article.Image, err = m.media.Save(imageFolder, "image", in.Image); err != nil {
			return nil, err
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&article).
			Select("title", "slug", "content", "excerpt", "image", "is_published", "updated").
			Updates(&article).Error; err != nil {
			return err
		}
		return replaceArticleCars(tx, article.ID, in.CarIDs)
	})
	if err != nil {
		if in.Image != nil {
			_ = m.media.Remove(article.Image)
		}
		return nil, err
	}
	if in.Image != nil && oldImage != "" {
		_ = m.media.Remove(oldImage)
	}

	m.clearCache()
	return m.ArticleBySlug(ctx, article.Slug, true)
}

// checkArticleInput validates in and returns the slug to store. An empty
// result leaves slug assignment to the model hook.
func (m *EditorialModule) checkArticleInput(db *gorm.DB, in ArticleInput, exceptID uint) (string, error) {
	if err := binding.Validator.ValidateStruct(in); err != nil {
		return "", common.BindingError(err)
	}

	ve := &common.ValidationError{}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = models.Slugify(in.Title)
	} else if models.Slugify(slug) != slug {
		ve.Add("slug", "enter a valid slug of lowercase letters, numbers and hyphens")
	}

	if slug != "" {
		var count int64
		if err := db.Model(&models.Article{}).Where("slug = ? AND id <> ?", slug, exceptID).Count(&count).Error; err != nil {
			return "", err
		}
		if count > 0 {
			ve.Add("slug", "article with this slug already exists")
		}
	}

	if len(in.CarIDs) > 0 {
		var found int64
		if err := db.Model(&models.Car{}).Where("id IN ?", in.CarIDs).Count(&found).Error; err != nil {
			return "", err
		}
		if found != int64(len(uniq(in.CarIDs))) {
			ve.Add("cars", "select a valid choice")
		}
	}
	return slug, ve.OrNil()
}

// replaceArticleCars makes carIDs the article's related cars.
func replaceArticleCars(tx *gorm.DB, articleID uint, carIDs []uint) error {
	if err := tx.Exec("DELETE FROM article_cars WHERE article_id = ?", articleID).Error; err != nil {
		return err
	}
	for _, carID := range uniq(carIDs) {
		if err := tx.Exec("INSERT INTO article_cars (article_id, car_id) VALUES (?, ?)", articleID, carID).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *EditorialModule) isStaff(db *gorm.DB, userID uint) bool {
	var user models.User
	if err := db.Select("id", "is_staff", "is_active").First(&user, userID).Error; err != nil {
		return false
	}
	return user.IsStaff && user.IsActive
}

func (m *EditorialModule) clearCache() {
	if err := m.cache.Clear(); err != nil {
		logger.L().Warn("failed to clear cache", zap.Error(err))
	}
}

func uniq(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
