package database

import (
	"gorm.io/gorm"

	"autocatalog/models"
)

// The helpers below implement the delete rules of the data model in code,
// so they hold on every driver regardless of foreign key enforcement. Call
// them inside a transaction. The returned paths are media files that no row
// references any more; remove them once the transaction has committed.

// DeleteCategories removes the categories, all their descendants and every
// car filed under any of them.
func DeleteCategories(tx *gorm.DB, ids ...uint) ([]string, error) {
	all, err := collectTree(tx, &models.Category{}, ids)
	if err != nil || len(all) == 0 {
		return nil, err
	}

	files, err := images(tx, &models.Category{}, "image", "id IN ?", all)
	if err != nil {
		return nil, err
	}

	var carIDs []uint
	if err := tx.Model(&models.Car{}).Where("cat_id IN ?", all).Pluck("id", &carIDs).Error; err != nil {
		return nil, err
	}
	carFiles, err := DeleteCars(tx, carIDs...)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("id IN ?", all).Delete(&models.Category{}).Error; err != nil {
		return nil, err
	}
	return append(files, carFiles...), nil
}

// DeleteCars removes the cars with their photos, videos, comments, likes and
// article links.
func DeleteCars(tx *gorm.DB, ids ...uint) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	files, err := images(tx, &models.Car{}, "image", "id IN ?", ids)
	if err != nil {
		return nil, err
	}
	photos, err := images(tx, &models.CarPhoto{}, "image", "car_id IN ?", ids)
	if err != nil {
		return nil, err
	}
	files = append(files, photos...)

	var commentIDs []uint
	if err := tx.Model(&models.Comment{}).Where("car_id IN ?", ids).Pluck("id", &commentIDs).Error; err != nil {
		return nil, err
	}
	if err := DeleteComments(tx, commentIDs...); err != nil {
		return nil, err
	}

	for _, dep := range []any{&models.CarPhoto{}, &models.CarVideo{}, &models.CarLike{}} {
		if err := tx.Where("car_id IN ?", ids).Delete(dep).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Exec("DELETE FROM article_cars WHERE car_id IN ?", ids).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Car{}).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteArticles removes the articles with their comments and car links.
func DeleteArticles(tx *gorm.DB, ids ...uint) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	files, err := images(tx, &models.Article{}, "image", "id IN ?", ids)
	if err != nil {
		return nil, err
	}

	var commentIDs []uint
	if err := tx.Model(&models.Comment{}).Where("article_id IN ?", ids).Pluck("id", &commentIDs).Error; err != nil {
		return nil, err
	}
	if err := DeleteComments(tx, commentIDs...); err != nil {
		return nil, err
	}
	if err := tx.Exec("DELETE FROM article_cars WHERE article_id IN ?", ids).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Article{}).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteComments removes the comments and all replies below them.
func DeleteComments(tx *gorm.DB, ids ...uint) error {
	all, err := collectTree(tx, &models.Comment{}, ids)
	if err != nil || len(all) == 0 {
		return err
	}
	return tx.Where("id IN ?", all).Delete(&models.Comment{}).Error
}

// DeleteUser removes the identity record and what depends on it: the
// profile, likes, comments and authored articles. Cars keep existing with
// their author cleared.
func DeleteUser(tx *gorm.DB, id uint) ([]string, error) {
	if err := tx.Model(&models.Car{}).Where("author_id = ?", id).
		UpdateColumn("author_id", nil).Error; err != nil {
		return nil, err
	}

	files, err := images(tx, &models.Profile{}, "avatar", "user_id = ?", id)
	if err != nil {
		return nil, err
	}

	var articleIDs []uint
	if err := tx.Model(&models.Article{}).Where("author_id = ?", id).Pluck("id", &articleIDs).Error; err != nil {
		return nil, err
	}
	articleFiles, err := DeleteArticles(tx, articleIDs...)
	if err != nil {
		return nil, err
	}
	files = append(files, articleFiles...)

	var commentIDs []uint
	if err := tx.Model(&models.Comment{}).Where("user_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
		return nil, err
	}
	if err := DeleteComments(tx, commentIDs...); err != nil {
		return nil, err
	}

	if err := tx.Where("user_id = ?", id).Delete(&models.CarLike{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", id).Delete(&models.Profile{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Delete(&models.User{}, id).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// images plucks the non-empty file paths in column of the matching rows.
func images(tx *gorm.DB, model any, column, query string, args ...any) ([]string, error) {
	var paths []string
	err := tx.Model(model).Where(query, args...).Where(column+" <> ''").Pluck(column, &paths).Error
	return paths, err
}

// collectTree returns ids plus every row reachable through parent_id.
func collectTree(tx *gorm.DB, model any, ids []uint) ([]uint, error) {
	seen := make(map[uint]bool, len(ids))
	var all []uint
	frontier := ids
	for len(frontier) > 0 {
		var next []uint
		for _, id := range frontier {
			if !seen[id] {
				seen[id] = true
				all = append(all, id)
				next = append(next, id)
			}
		}
		if len(next) == 0 {
			break
		}
		var children []uint
		if err := tx.Model(model).Where("parent_id IN ?", next).Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		frontier = children
	}
	return all, nil
}
