package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/users"
)

func (m *CatalogModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/categories", m.cache.Middleware(), m.categories)
	router.GET("/categories/:slug", m.cache.Middleware(), m.carsList)
	router.GET("/car/:slug", m.carDetail)
	router.POST("/car/:slug/like", users.RequireAuth(m.db), m.like)
	router.GET("/video/:id", m.videoDetail)
}

func (m *CatalogModule) categories(c *gin.Context) {
	ctx := c.Request.Context()

	tree, err := m.CategoryTree(ctx)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	total, err := m.TotalCars(ctx)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": tree,
		"total_cars": total,
	})
}

func (m *CatalogModule) carsList(c *gin.Context) {
	category, cars, err := m.CarsByCategory(c.Request.Context(), c.Param("slug"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"cars":     cars,
	})
}

func (m *CatalogModule) carDetail(c *gin.Context) {
	ctx := c.Request.Context()

	car, err := m.CarBySlug(ctx, c.Param("slug"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if err := m.IncrementCarViews(ctx, car.ID); err != nil {
		common.RespondError(c, err)
		return
	}
	car.Views++

	likes, err := m.LikesCount(ctx, car.ID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	liked := false
	if userID, ok := users.CurrentUserID(c); ok {
		if liked, err = m.HasLiked(ctx, car.ID, userID); err != nil {
			common.RespondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"car":         car,
		"likes_count": likes,
		"liked":       liked,
	})
}

func (m *CatalogModule) like(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := users.CurrentUserID(c)

	car, err := m.CarBySlug(ctx, c.Param("slug"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	liked, count, err := m.ToggleLike(ctx, car.ID, userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"liked":       liked,
		"likes_count": count,
	})
}

func (m *CatalogModule) videoDetail(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.RespondError(c, common.NotFound(gorm.ErrRecordNotFound, "video"))
		return
	}
	if err := m.IncrementVideoViews(ctx, uint(id)); err != nil {
		common.RespondError(c, err)
		return
	}

	video, err := m.Video(ctx, uint(id))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"video": video})
}
