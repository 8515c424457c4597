package admin

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/models"
)

type manufacturerInput struct {
	Name        string                `form:"name" json:"name" binding:"required,max=100"`
	Slug        string                `form:"slug" json:"slug" binding:"max=100"`
	Country     string                `form:"country" json:"country" binding:"max=50"`
	Founded     uint                  `form:"founded" json:"founded" binding:"omitempty,lte=2100"`
	Description string                `form:"description" json:"description"`
	Logo        *multipart.FileHeader `form:"logo" json:"-"`
}

type manufacturerRow struct {
	models.Manufacturer
	CarsCount int64 `json:"cars_count"`
}

func (a *AdminModule) listManufacturers(c *gin.Context) {
	db := a.db.WithContext(c.Request.Context())

	q := db.Model(&models.Manufacturer{})
	q = search(q, c.Query("q"), "name", "country")

	var manufacturers []models.Manufacturer
	total, err := listQuery(c, q, "name", &manufacturers)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	rows := make([]manufacturerRow, len(manufacturers))
	for i, mf := range manufacturers {
		n, err := manufacturerCarsCount(db, mf.Name)
		if err != nil {
			common.RespondError(c, err)
			return
		}
		rows[i] = manufacturerRow{Manufacturer: mf, CarsCount: n}
	}

	c.JSON(http.StatusOK, gin.H{"manufacturers": rows, "total": total})
}

// manufacturerCarsCount counts cars whose name contains the manufacturer
// name, ignoring case. There is no foreign key between the two tables, so
// this is a heuristic: "Mini" also matches "Minivan X".
func manufacturerCarsCount(db *gorm.DB, name string) (int64, error) {
	var n int64
	err := search(db.Model(&models.Car{}), name, "name").Count(&n).Error
	return n, err
}

func (a *AdminModule) getManufacturer(c *gin.Context) {
	var mf models.Manufacturer
	if !a.load(c, &mf, "manufacturer") {
		return
	}

	n, err := manufacturerCarsCount(a.db.WithContext(c.Request.Context()), mf.Name)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"manufacturer": manufacturerRow{Manufacturer: mf, CarsCount: n}})
}

func (a *AdminModule) createManufacturer(c *gin.Context) {
	a.saveManufacturer(c, &models.Manufacturer{})
}

func (a *AdminModule) updateManufacturer(c *gin.Context) {
	var mf models.Manufacturer
	if !a.load(c, &mf, "manufacturer") {
		return
	}
	a.saveManufacturer(c, &mf)
}

func (a *AdminModule) saveManufacturer(c *gin.Context, mf *models.Manufacturer) {
	db := a.db.WithContext(c.Request.Context())

	var in manufacturerInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	// prepopulated from the name like the other slugs
	slug := in.Slug
	if slug == "" {
		slug = models.Slugify(in.Name)
	}

	ve := &common.ValidationError{}
	switch {
	case slug == "":
		ve.Add("slug", "this field is required")
	case models.Slugify(slug) != slug:
		ve.Add("slug", "enter a valid slug of lowercase letters, numbers and hyphens")
	default:
		var n int64
		if err := db.Model(&models.Manufacturer{}).Where("slug = ? AND id <> ?", slug, mf.ID).Count(&n).Error; err != nil {
			common.RespondError(c, err)
			return
		}
		if n > 0 {
			ve.Add("slug", "manufacturer with this slug already exists")
		}
	}
	if err := ve.OrNil(); err != nil {
		common.RespondError(c, err)
		return
	}

	logo, err := a.upload("manufacturers", "logo", in.Logo)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	oldLogo := mf.Logo

	mf.Name = in.Name
	mf.Slug = slug
	mf.Country = in.Country
	mf.Founded = in.Founded
	mf.Description = in.Description
	if logo != "" {
		mf.Logo = logo
	}

	creating := mf.ID == 0
	if err := db.Save(mf).Error; err != nil {
		_ = a.media.Remove(logo)
		common.RespondError(c, err)
		return
	}
	a.replaceFile(oldLogo, logo)

	status, action := http.StatusOK, "update"
	if creating {
		status, action = http.StatusCreated, "create"
	}
	a.changed(c, action, "manufacturer", mf.ID)
	c.JSON(status, gin.H{"manufacturer": mf})
}

func (a *AdminModule) deleteManufacturer(c *gin.Context) {
	var mf models.Manufacturer
	if !a.load(c, &mf, "manufacturer") {
		return
	}

	if err := a.db.WithContext(c.Request.Context()).Delete(&mf).Error; err != nil {
		common.RespondError(c, err)
		return
	}
	_ = a.media.Remove(mf.Logo)

	a.changed(c, "delete", "manufacturer", mf.ID)
	respondDeleted(c, mf.ID)
}
