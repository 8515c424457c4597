package site

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"autocatalog/cache"
	"autocatalog/catalog"
	"autocatalog/common"
	"autocatalog/models"
)

const latestCarsLimit = 6

type SiteModule struct {
	db      *gorm.DB
	catalog *catalog.CatalogModule
	cache   *cache.Store
	domain  string
}

func NewSiteModule(db *gorm.DB, catalogModule *catalog.CatalogModule, cacheStore *cache.Store, domain string) *SiteModule {
	return &SiteModule{
		db:      db,
		catalog: catalogModule,
		cache:   cacheStore,
		domain:  strings.TrimSuffix(domain, "/"),
	}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", s.cache.Middleware(), s.index)
	router.GET("/about", s.cache.Middleware(), s.about)
	router.GET("/sitemap.xml", s.sitemap)
}

// Stats are the site-wide totals shown on the home and about pages.
type Stats struct {
	TotalCars       int64 `json:"total_cars"`
	TotalCategories int64 `json:"total_categories"`
	TotalArticles   int64 `json:"total_articles"`
}

// Stats counts every car and category and the published articles.
func (s *SiteModule) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)

	var st Stats
	var err error
	if st.TotalCars, err = s.catalog.TotalCars(ctx); err != nil {
		return nil, err
	}
	if err := db.Model(&models.Category{}).Count(&st.TotalCategories).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Article{}).Where("is_published = ?", true).Count(&st.TotalArticles).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SiteModule) index(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := s.Stats(ctx)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	latest, err := s.catalog.LatestCars(ctx, latestCarsLimit)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":       stats,
		"latest_cars": latest,
	})
}

func (s *SiteModule) about(c *gin.Context) {
	stats, err := s.Stats(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *SiteModule) sitemap(c *gin.Context) {
	db := s.db.WithContext(c.Request.Context())

	var categories []models.Category
	if err := db.Select("slug", "updated").Order("slug").Find(&categories).Error; err != nil {
		common.RespondError(c, err)
		return
	}
	var cars []models.Car
	if err := db.Select("slug", "updated").Where("is_active = ?", true).Order(models.OrderCars).Find(&cars).Error; err != nil {
		common.RespondError(c, err)
		return
	}
	var articles []models.Article
	if err := db.Select("slug", "updated").Where("is_published = ?", true).Order(models.OrderArticles).Find(&articles).Error; err != nil {
		common.RespondError(c, err)
		return
	}

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	s.writeURL(&sitemap, "/", time.Time{}, "daily", "1.0")
	s.writeURL(&sitemap, "/about", time.Time{}, "monthly", "0.3")
	s.writeURL(&sitemap, "/categories", time.Time{}, "daily", "0.8")
	s.writeURL(&sitemap, "/articles", time.Time{}, "daily", "0.8")

	for _, cat := range categories {
		s.writeURL(&sitemap, "/categories/"+cat.Slug, cat.Updated, "weekly", "0.7")
	}
	for _, car := range cars {
		s.writeURL(&sitemap, "/car/"+car.Slug, car.Updated, "weekly", "0.6")
	}
	for _, article := range articles {
		s.writeURL(&sitemap, "/articles/"+article.Slug, article.Updated, "monthly", "0.6")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}

func (s *SiteModule) writeURL(b *strings.Builder, path string, lastmod time.Time, changefreq, priority string) {
	b.WriteString("  <url>\n")
	b.WriteString("    <loc>")
	xml.EscapeText(b, []byte(s.domain+path))
	b.WriteString("</loc>\n")
	if !lastmod.IsZero() {
		b.WriteString("    <lastmod>" + lastmod.Format(time.RFC3339) + "</lastmod>\n")
	}
	b.WriteString("    <changefreq>" + changefreq + "</changefreq>\n")
	b.WriteString("    <priority>" + priority + "</priority>\n")
	b.WriteString("  </url>\n")
}
