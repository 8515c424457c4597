package catalog

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"autocatalog/cache"
	"autocatalog/common"
	"autocatalog/models"
)

type CatalogModule struct {
	db    *gorm.DB
	cache *cache.Store
}

func NewCatalogModule(db *gorm.DB, cacheStore *cache.Store) *CatalogModule {
	return &CatalogModule{db: db, cache: cacheStore}
}

// CategoryNode is a category with its direct car count and subcategories.
type CategoryNode struct {
	models.Category
	CarsCount int64           `json:"cars_count"`
	Children  []*CategoryNode `json:"children"`
}

// CategoryTree returns the root categories, newest first, each with its
// descendants attached.
func (m *CatalogModule) CategoryTree(ctx context.Context) ([]*CategoryNode, error) {
	db := m.db.WithContext(ctx)

	var categories []models.Category
	if err := db.Order(models.OrderCategories).Find(&categories).Error; err != nil {
		return nil, err
	}

	counts, err := m.carCounts(db)
	if err != nil {
		return nil, err
	}

	nodes := make(map[uint]*CategoryNode, len(categories))
	for _, cat := range categories {
		nodes[cat.ID] = &CategoryNode{Category: cat, CarsCount: counts[cat.ID], Children: []*CategoryNode{}}
	}

	roots := []*CategoryNode{}
	for _, cat := range categories {
		node := nodes[cat.ID]
		if cat.ParentID != nil {
			if parent, ok := nodes[*cat.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots, nil
}

func (m *CatalogModule) carCounts(db *gorm.DB) (map[uint]int64, error) {
	var rows []struct {
		CatID uint
		Total int64
	}
	if err := db.Model(&models.Car{}).
		Select("cat_id, COUNT(*) AS total").
		Group("cat_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CatID] = r.Total
	}
	return counts, nil
}

// CarsByCategory lists the cars filed directly under the category.
func (m *CatalogModule) CarsByCategory(ctx context.Context, catSlug string) (*models.Category, []models.Car, error) {
	db := m.db.WithContext(ctx)

	var category models.Category
	if err := db.Where("slug = ?", catSlug).Order(models.OrderCategories).First(&category).Error; err != nil {
		return nil, nil, common.NotFound(err, "category")
	}

	var cars []models.Car
	if err := db.Where("cat_id = ?", category.ID).Order(models.OrderCars).Find(&cars).Error; err != nil {
		return nil, nil, err
	}
	return &category, cars, nil
}

// CarBySlug loads a car with its photos (main first), videos, category and
// author.
func (m *CatalogModule) CarBySlug(ctx context.Context, slug string) (*models.Car, error) {
	var car models.Car
	err := m.db.WithContext(ctx).
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order(models.OrderPhotos) }).
		Preload("Videos", func(db *gorm.DB) *gorm.DB { return db.Order("created DESC") }).
		Preload("Cat").
		Preload("Author").
		Where("slug = ?", slug).
		Order(models.OrderCars).
		First(&car).Error
	if err != nil {
		return nil, common.NotFound(err, "car")
	}
	return &car, nil
}

func (m *CatalogModule) IncrementCarViews(ctx context.Context, id uint) error {
	return increment(m.db.WithContext(ctx), &models.Car{}, id, "car")
}

func (m *CatalogModule) IncrementVideoViews(ctx context.Context, id uint) error {
	return increment(m.db.WithContext(ctx), &models.CarVideo{}, id, "video")
}

// increment adds one to views in a single UPDATE so concurrent renders are
// never lost.
func increment(db *gorm.DB, model any, id uint, what string) error {
	res := db.Model(model).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.NotFound(gorm.ErrRecordNotFound, what)
	}
	return nil
}

func (m *CatalogModule) Video(ctx context.Context, id uint) (*models.CarVideo, error) {
	var video models.CarVideo
	if err := m.db.WithContext(ctx).Preload("Car").First(&video, id).Error; err != nil {
		return nil, common.NotFound(err, "video")
	}
	return &video, nil
}

// ToggleLike adds userID to the car's like set when absent and removes it
// otherwise. It returns the new membership and the set size.
func (m *CatalogModule) ToggleLike(ctx context.Context, carID, userID uint) (bool, int64, error) {
	var liked bool
	var count int64

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var car models.Car
		if err := tx.Select("id").First(&car, carID).Error; err != nil {
			return common.NotFound(err, "car")
		}

		res := tx.Where("car_id = ? AND user_id = ?", carID, userID).Delete(&models.CarLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.CarLike{CarID: carID, UserID: userID}).Error; err != nil {
				return err
			}
			liked = true
		}

		return tx.Model(&models.CarLike{}).Where("car_id = ?", carID).Count(&count).Error
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

func (m *CatalogModule) LikesCount(ctx context.Context, carID uint) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&models.CarLike{}).Where("car_id = ?", carID).Count(&count).Error
	return count, err
}

func (m *CatalogModule) HasLiked(ctx context.Context, carID, userID uint) (bool, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&models.CarLike{}).
		Where("car_id = ? AND user_id = ?", carID, userID).
		Count(&count).Error
	return count > 0, err
}

func (m *CatalogModule) TotalCars(ctx context.Context) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&models.Car{}).Count(&count).Error
	return count, err
}

// LatestCars returns the newest active cars.
func (m *CatalogModule) LatestCars(ctx context.Context, limit int) ([]models.Car, error) {
	var cars []models.Car
	err := m.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order(models.OrderCars).
		Limit(limit).
		Find(&cars).Error
	return cars, err
}
