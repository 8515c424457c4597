package models

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"autocatalog/common"
)

// fresh returns a handle on the hook's connection/transaction without the
// triggering statement's clauses.
func fresh(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true})
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.Slug == "" {
		c.Slug = slugOrFallback(c.Title, "category")
	}
	return nil
}

// BeforeSave rejects a parent that would make the category its own ancestor.
func (c *Category) BeforeSave(tx *gorm.DB) error {
	if c.ID == 0 || c.ParentID == nil {
		return nil
	}
	db := fresh(tx)
	seen := map[uint]bool{}
	for cur := *c.ParentID; cur != 0; {
		if cur == c.ID {
			return common.Invalid("parent", "a category cannot be its own ancestor")
		}
		if seen[cur] {
			// an older cycle that does not involve c
			return nil
		}
		seen[cur] = true

		var parent Category
		if err := db.Select("id", "parent_id").Take(&parent, cur).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.Invalid("parent", "parent category does not exist")
			}
			return err
		}
		if parent.ParentID == nil {
			break
		}
		cur = *parent.ParentID
	}
	return nil
}

func (c *Car) BeforeCreate(tx *gorm.DB) error {
	if c.Slug == "" {
		c.Slug = slugOrFallback(c.Name, "car")
	}
	return nil
}

func (c *Car) AfterCreate(tx *gorm.DB) error {
	if c.AuthorID == nil {
		return nil
	}
	return bumpProfileCounter(tx, *c.AuthorID, "cars_added")
}

func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.Slug == "" {
		a.Slug = slugOrFallback(a.Title, "article")
	}
	return nil
}

func (a *Article) AfterCreate(tx *gorm.DB) error {
	return bumpProfileCounter(tx, a.AuthorID, "reviews_written")
}

func bumpProfileCounter(tx *gorm.DB, userID uint, column string) error {
	return fresh(tx).Model(&Profile{}).
		Where("user_id = ?", userID).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}

// BeforeCreate enforces that a comment has exactly one target and that a
// reply shares its parent's target. The target is immutable afterwards.
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	target, ok := c.Target()
	if !ok {
		return common.Invalid("target", "a comment must belong to exactly one car or article")
	}
	if c.ParentID == nil {
		return nil
	}

	var parent Comment
	if err := fresh(tx).Select("id", "car_id", "article_id").Take(&parent, *c.ParentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.Invalid("parent", "parent comment does not exist")
		}
		return err
	}
	if pt, _ := parent.Target(); pt != target {
		return common.Invalid("parent", "a reply must belong to the same "+string(target.Kind)+" as its parent")
	}
	return nil
}

// AfterSave keeps exactly one Profile per user. It runs inside the same
// transaction as the user write, so a failure here rolls the user back.
func (u *User) AfterSave(tx *gorm.DB) error {
	if u.ID == 0 {
		return nil
	}
	return EnsureProfile(tx, u.ID)
}

// EnsureProfile creates the user's profile when it is missing and otherwise
// only touches its updated timestamp, leaving the counters to their atomic
// increments.
func EnsureProfile(tx *gorm.DB, userID uint) error {
	db := fresh(tx)

	res := db.Model(&Profile{}).Where("user_id = ?", userID).UpdateColumn("updated", time.Now())
	if res.Error != nil || res.RowsAffected > 0 {
		return res.Error
	}
	// MySQL reports unchanged rows as unaffected
	var n int64
	if err := db.Model(&Profile{}).Where("user_id = ?", userID).Count(&n).Error; err != nil || n > 0 {
		return err
	}
	return db.Create(&Profile{
		UserID:             userID,
		EmailNotifications: true,
		Newsletter:         true,
	}).Error
}
