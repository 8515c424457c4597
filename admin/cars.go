package admin

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/database"
	"autocatalog/models"
)

type carInput struct {
	Name             string                `form:"name" json:"name" binding:"required,max=100"`
	Slug             string                `form:"slug" json:"slug" binding:"max=100"`
	Description      string                `form:"description" json:"description"`
	CatID            uint                  `form:"cat_id" json:"cat_id" binding:"required"`
	AuthorID         *uint                 `form:"author_id" json:"author_id"`
	IsActive         bool                  `form:"is_active" json:"is_active"`
	Year             *uint                 `form:"year" json:"year" binding:"omitempty,gte=1886,lte=2100"`
	Price            string                `form:"price" json:"price"`
	EngineVolume     string                `form:"engine_volume" json:"engine_volume"`
	Horsepower       *int                  `form:"horsepower" json:"horsepower" binding:"omitempty,gte=0"`
	Acceleration0100 string                `form:"acceleration_0_100" json:"acceleration_0_100"`
	TopSpeed         *int                  `form:"top_speed" json:"top_speed" binding:"omitempty,gte=0"`
	Image            *multipart.FileHeader `form:"image" json:"-"`
}

// carColumns are the columns an edit may touch; views is read-only.
var carColumns = []string{
	"name", "slug", "description", "cat_id", "author_id", "is_active", "year", "price",
	"engine_volume", "horsepower", "acceleration_0_100", "top_speed", "image", "updated",
}

func (a *AdminModule) listCars(c *gin.Context) {
	q := a.db.WithContext(c.Request.Context()).Model(&models.Car{})
	q = search(q, c.Query("q"), "name", "description")
	q = boolFilter(c, q, "is_active", "is_active")
	q = idFilter(c, q, "cat", "cat_id")
	q = idFilter(c, q, "year", "year")

	var cars []models.Car
	total, err := listQuery(c, q, models.OrderCars, &cars, "Cat")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cars": cars, "total": total})
}

func (a *AdminModule) getCar(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	db := a.db.WithContext(c.Request.Context())
	var car models.Car
	if err := db.Preload("Cat").Preload("Author").First(&car, id).Error; err != nil {
		common.RespondError(c, common.NotFound(err, "car"))
		return
	}

	var likes []uint
	if err := db.Model(&models.CarLike{}).Where("car_id = ?", car.ID).Order("user_id").Pluck("user_id", &likes).Error; err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"car": car, "likes": likes})
}

func (a *AdminModule) createCar(c *gin.Context) {
	a.saveCar(c, &models.Car{})
}

func (a *AdminModule) updateCar(c *gin.Context) {
	var car models.Car
	if !a.load(c, &car, "car") {
		return
	}
	a.saveCar(c, &car)
}

func (a *AdminModule) saveCar(c *gin.Context, car *models.Car) {
	db := a.db.WithContext(c.Request.Context())

	var in carInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	ve := &common.ValidationError{}
	if in.Slug != "" && models.Slugify(in.Slug) != in.Slug {
		ve.Add("slug", "enter a valid slug of lowercase letters, numbers and hyphens")
	}
	if ok, err := a.exists(db, &models.Category{}, in.CatID); err != nil {
		common.RespondError(c, err)
		return
	} else if !ok {
		ve.Add("cat_id", "select a valid choice")
	}
	authorID := nonZero(in.AuthorID)
	if authorID != nil {
		if ok, err := a.exists(db, &models.User{}, *authorID); err != nil {
			common.RespondError(c, err)
			return
		} else if !ok {
			ve.Add("author_id", "select a valid choice")
		}
	}
	price := parseDecimal(ve, "price", in.Price, 12, 2)
	engine := parseDecimal(ve, "engine_volume", in.EngineVolume, 3, 1)
	accel := parseDecimal(ve, "acceleration_0_100", in.Acceleration0100, 3, 1)
	if err := ve.OrNil(); err != nil {
		common.RespondError(c, err)
		return
	}

	image, err := a.upload("cars", "image", in.Image)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	oldImage := car.Image

	car.Name = in.Name
	if in.Slug != "" {
		car.Slug = in.Slug
	}
	car.Description = in.Description
	car.CatID = in.CatID
	car.AuthorID = authorID
	car.IsActive = in.IsActive
	car.Year = nonZero(in.Year)
	car.Price = price
	car.EngineVolume = engine
	car.Horsepower = in.Horsepower
	car.Acceleration0100 = accel
	car.TopSpeed = in.TopSpeed
	if image != "" {
		car.Image = image
	}

	creating := car.ID == 0
	if creating {
		err = db.Create(car).Error
	} else {
		err = db.Model(car).Select(carColumns).Updates(car).Error
	}
	if err != nil {
		_ = a.media.Remove(image)
		common.RespondError(c, err)
		return
	}
	a.replaceFile(oldImage, image)

	status, action := http.StatusOK, "update"
	if creating {
		status, action = http.StatusCreated, "create"
	}
	a.changed(c, action, "car", car.ID)
	c.JSON(status, gin.H{"car": car})
}

type likesInput struct {
	UserIDs []uint `form:"user_ids" json:"user_ids"`
}

// setCarLikes replaces the car's like set.
func (a *AdminModule) setCarLikes(c *gin.Context) {
	var car models.Car
	if !a.load(c, &car, "car") {
		return
	}

	var in likesInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	db := a.db.WithContext(c.Request.Context())
	ids := uniqueIDs(in.UserIDs)
	if len(ids) > 0 {
		var found int64
		if err := db.Model(&models.User{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
			common.RespondError(c, err)
			return
		}
		if found != int64(len(ids)) {
			common.RespondError(c, common.Invalid("user_ids", "select a valid choice"))
			return
		}
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("car_id = ?", car.ID).Delete(&models.CarLike{}).Error; err != nil {
			return err
		}
		for _, userID := range ids {
			if err := tx.Create(&models.CarLike{CarID: car.ID, UserID: userID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	a.changed(c, "update", "car likes", car.ID)
	c.JSON(http.StatusOK, gin.H{"car_id": car.ID, "likes": ids})
}

func (a *AdminModule) deleteCar(c *gin.Context) {
	var car models.Car
	if !a.load(c, &car, "car") {
		return
	}

	var files []string
	err := a.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		files, err = database.DeleteCars(tx, car.ID)
		return err
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	a.media.RemoveAll(files...)

	a.changed(c, "delete", "car", car.ID)
	respondDeleted(c, car.ID)
}

// parseDecimal reads an optional decimal with at most digits digits of
// which places are after the point. Problems are added to ve.
func parseDecimal(ve *common.ValidationError, field, raw string, digits, places int32) decimal.NullDecimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		ve.Add(field, "enter a number")
		return decimal.NullDecimal{}
	}
	if d.IsNegative() {
		ve.Add(field, "ensure this value is greater than or equal to 0")
		return decimal.NullDecimal{}
	}
	if -d.Exponent() > places && !d.Equal(d.Truncate(places)) {
		ve.Add(field, "ensure that there are no more than "+itoa(places)+" decimal places")
		return decimal.NullDecimal{}
	}
	limit := decimal.New(1, digits-places)
	if d.GreaterThanOrEqual(limit) {
		ve.Add(field, "ensure that there are no more than "+itoa(digits)+" digits in total")
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func itoa(n int32) string {
	return decimal.NewFromInt32(n).String()
}

func nonZero[T comparable](p *T) *T {
	var zero T
	if p == nil || *p == zero {
		return nil
	}
	return p
}

func uniqueIDs(ids []uint) []uint {
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
