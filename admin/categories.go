package admin

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/database"
	"autocatalog/models"
)

type categoryInput struct {
	Title       string                `form:"title" json:"title" binding:"required,max=100"`
	Slug        string                `form:"slug" json:"slug" binding:"max=100"`
	Description string                `form:"description" json:"description"`
	ParentID    *uint                 `form:"parent_id" json:"parent_id"`
	Image       *multipart.FileHeader `form:"image" json:"-"`
}

type categoryRow struct {
	models.Category
	CarsCount int64 `json:"cars_count"`
}

func (a *AdminModule) listCategories(c *gin.Context) {
	db := a.db.WithContext(c.Request.Context())

	q := db.Model(&models.Category{})
	q = search(q, c.Query("q"), "title", "description")

	var categories []models.Category
	total, err := listQuery(c, q, models.OrderCategories, &categories, "Parent")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	counts, err := carCountsByCategory(db)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	rows := make([]categoryRow, len(categories))
	for i, cat := range categories {
		rows[i] = categoryRow{Category: cat, CarsCount: counts[cat.ID]}
	}

	c.JSON(http.StatusOK, gin.H{"categories": rows, "total": total})
}

func carCountsByCategory(db *gorm.DB) (map[uint]int64, error) {
	var rows []struct {
		CatID uint
		Total int64
	}
	if err := db.Model(&models.Car{}).Select("cat_id, COUNT(*) AS total").Group("cat_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CatID] = r.Total
	}
	return counts, nil
}

func (a *AdminModule) getCategory(c *gin.Context) {
	var category models.Category
	if !a.load(c, &category, "category") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

func (a *AdminModule) createCategory(c *gin.Context) {
	a.saveCategory(c, &models.Category{})
}

func (a *AdminModule) updateCategory(c *gin.Context) {
	var category models.Category
	if !a.load(c, &category, "category") {
		return
	}
	a.saveCategory(c, &category)
}

// saveCategory creates category when it has no id yet and updates it
// otherwise. Cycle checks run in the model hook.
func (a *AdminModule) saveCategory(c *gin.Context, category *models.Category) {
	db := a.db.WithContext(c.Request.Context())

	var in categoryInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}
	if in.ParentID != nil && *in.ParentID == 0 {
		in.ParentID = nil
	}

	ve := &common.ValidationError{}
	if in.Slug != "" && models.Slugify(in.Slug) != in.Slug {
		ve.Add("slug", "enter a valid slug of lowercase letters, numbers and hyphens")
	}
	if in.ParentID != nil {
		ok, err := a.exists(db, &models.Category{}, *in.ParentID)
		if err != nil {
			common.RespondError(c, err)
			return
		}
		if !ok {
			ve.Add("parent_id", "select a valid choice")
		}
	}
	if err := ve.OrNil(); err != nil {
		common.RespondError(c, err)
		return
	}

	image, err := a.upload("categories", "image", in.Image)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	oldImage := category.Image

	category.Title = in.Title
	if in.Slug != "" {
		category.Slug = in.Slug
	}
	category.Description = in.Description
	category.ParentID = in.ParentID
	category.Parent = nil
	if image != "" {
		category.Image = image
	}

	creating := category.ID == 0
	if err := db.Save(category).Error; err != nil {
		_ = a.media.Remove(image)
		common.RespondError(c, err)
		return
	}
	a.replaceFile(oldImage, image)

	status, action := http.StatusOK, "update"
	if creating {
		status, action = http.StatusCreated, "create"
	}
	a.changed(c, action, "category", category.ID)
	c.JSON(status, gin.H{"category": category})
}

func (a *AdminModule) deleteCategory(c *gin.Context) {
	var category models.Category
	if !a.load(c, &category, "category") {
		return
	}

	var files []string
	err := a.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		files, err = database.DeleteCategories(tx, category.ID)
		return err
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	a.media.RemoveAll(files...)

	a.changed(c, "delete", "category", category.ID)
	respondDeleted(c, category.ID)
}
