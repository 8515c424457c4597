package admin

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"autocatalog/cache"
	"autocatalog/common"
	"autocatalog/editorial"
	"autocatalog/logger"
	"autocatalog/media"
	"autocatalog/models"
	"autocatalog/users"
)

const perPage = 100

// AdminModule is the staff back office: list, create, edit and delete for
// every catalog entity.
type AdminModule struct {
	db        *gorm.DB
	cache     *cache.Store
	media     *media.Store
	users     *users.UsersModule
	editorial *editorial.EditorialModule
}

func NewAdminModule(db *gorm.DB, cacheStore *cache.Store, mediaStore *media.Store, usersModule *users.UsersModule, editorialModule *editorial.EditorialModule) *AdminModule {
	return &AdminModule{
		db:        db,
		cache:     cacheStore,
		media:     mediaStore,
		users:     usersModule,
		editorial: editorialModule,
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	adminGroup := router.Group("/admin")
	adminGroup.Use(users.RequireAuth(a.db), users.RequireStaff)
	{
		adminGroup.GET("", a.dashboard)

		adminGroup.GET("/categories", a.listCategories)
		adminGroup.POST("/categories", a.createCategory)
		adminGroup.GET("/categories/:id", a.getCategory)
		adminGroup.POST("/categories/:id", a.updateCategory)
		adminGroup.DELETE("/categories/:id", a.deleteCategory)

		adminGroup.GET("/cars", a.listCars)
		adminGroup.POST("/cars", a.createCar)
		adminGroup.GET("/cars/:id", a.getCar)
		adminGroup.POST("/cars/:id", a.updateCar)
		adminGroup.POST("/cars/:id/likes", a.setCarLikes)
		adminGroup.DELETE("/cars/:id", a.deleteCar)

		adminGroup.GET("/manufacturers", a.listManufacturers)
		adminGroup.POST("/manufacturers", a.createManufacturer)
		adminGroup.GET("/manufacturers/:id", a.getManufacturer)
		adminGroup.POST("/manufacturers/:id", a.updateManufacturer)
		adminGroup.DELETE("/manufacturers/:id", a.deleteManufacturer)

		adminGroup.GET("/photos", a.listPhotos)
		adminGroup.POST("/photos", a.createPhoto)
		adminGroup.POST("/photos/:id", a.updatePhoto)
		adminGroup.DELETE("/photos/:id", a.deletePhoto)

		adminGroup.GET("/videos", a.listVideos)
		adminGroup.POST("/videos", a.createVideo)
		adminGroup.POST("/videos/:id", a.updateVideo)
		adminGroup.DELETE("/videos/:id", a.deleteVideo)

		adminGroup.GET("/articles", a.listArticles)
		adminGroup.POST("/articles", a.createArticle)
		adminGroup.POST("/articles/:id", a.updateArticle)
		adminGroup.DELETE("/articles/:id", a.deleteArticle)

		adminGroup.GET("/comments", a.listComments)
		adminGroup.POST("/comments/:id", a.updateComment)
		adminGroup.DELETE("/comments/:id", a.deleteComment)

		adminGroup.GET("/users", a.listUsers)
		adminGroup.POST("/users/:id", a.updateUser)
		adminGroup.DELETE("/users/:id", a.deleteUser)
	}
}

func (a *AdminModule) dashboard(c *gin.Context) {
	db := a.db.WithContext(c.Request.Context())

	counts := gin.H{}
	for name, model := range map[string]any{
		"categories":    &models.Category{},
		"cars":          &models.Car{},
		"manufacturers": &models.Manufacturer{},
		"photos":        &models.CarPhoto{},
		"videos":        &models.CarVideo{},
		"articles":      &models.Article{},
		"comments":      &models.Comment{},
		"users":         &models.User{},
	} {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			common.RespondError(c, err)
			return
		}
		counts[name] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   users.CurrentUser(c),
		"counts": counts,
	})
}

// listQuery counts the filtered rows and loads one page of them.
func listQuery(c *gin.Context, q *gorm.DB, order string, dest any, preloads ...string) (int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, err
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	for _, p := range preloads {
		q = q.Preload(p)
	}
	err := q.Order(order).Offset((page - 1) * perPage).Limit(perPage).Find(dest).Error
	return total, err
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

// search restricts q to rows where any of the columns contains term.
func search(q *gorm.DB, term string, columns ...string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" {
		return q
	}
	clauses := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		clauses[i] = "LOWER(" + col + `) LIKE ? ESCAPE '\'`
		args[i] = likePattern(term)
	}
	return q.Where(strings.Join(clauses, " OR "), args...)
}

// boolFilter applies ?name=true|false when present.
func boolFilter(c *gin.Context, q *gorm.DB, name, column string) *gorm.DB {
	v, ok := c.GetQuery(name)
	if !ok || v == "" {
		return q
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return q
	}
	return q.Where(column+" = ?", b)
}

// idFilter applies ?name=<id> when present.
func idFilter(c *gin.Context, q *gorm.DB, name, column string) *gorm.DB {
	id, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		return q
	}
	return q.Where(column+" = ?", id)
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", c.Param("id"), common.ErrNotFound)
	}
	return uint(id), nil
}

// load fetches the row named by the :id parameter into dest.
func (a *AdminModule) load(c *gin.Context, dest any, what string) bool {
	id, err := parseID(c)
	if err != nil {
		common.RespondError(c, err)
		return false
	}
	if err := a.db.WithContext(c.Request.Context()).First(dest, id).Error; err != nil {
		common.RespondError(c, common.NotFound(err, what))
		return false
	}
	return true
}

// exists reports whether a row with id exists in model's table.
func (a *AdminModule) exists(db *gorm.DB, model any, id uint) (bool, error) {
	var n int64
	err := db.Model(model).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// upload stores fh under folder when present and returns the new path.
func (a *AdminModule) upload(folder, field string, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", nil
	}
	return a.media.Save(folder, field, fh)
}

// replaceFile removes old once new has replaced it.
func (a *AdminModule) replaceFile(old, new string) {
	if new == "" || old == "" || old == new {
		return
	}
	if err := a.media.Remove(old); err != nil {
		logger.L().Warn("failed to remove replaced file", zap.String("path", old), zap.Error(err))
	}
}

// changed clears the listing cache after a successful write.
func (a *AdminModule) changed(c *gin.Context, action, what string, id uint) {
	if err := a.cache.Clear(); err != nil {
		logger.L().Warn("failed to clear cache", zap.Error(err))
	}

	staff := users.CurrentUser(c)
	fields := []zap.Field{zap.String("action", action), zap.String("entity", what), zap.Uint("id", id)}
	if staff != nil {
		fields = append(fields, zap.String("staff", staff.Username))
	}
	logger.L().Info("admin change", fields...)
}

func respondDeleted(c *gin.Context, id uint) {
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

var errInvalidDuration = errors.New("invalid duration")
