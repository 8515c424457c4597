package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default orderings, used by every listing of the entity.
const (
	OrderCategories = "created DESC"
	OrderCars       = "created DESC"
	OrderPhotos     = "is_main DESC, created DESC"
	OrderArticles   = "created DESC"
	OrderComments   = "created DESC"
	OrderProfiles   = "created DESC"
)

// User is the identity record. Everything else refers to it by ID only.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:254;index" json:"email"`
	PasswordHash string    `gorm:"column:password;not null" json:"-"` // bcrypt hash, never serialized
	FirstName    string    `gorm:"size:150" json:"first_name"`
	LastName     string    `gorm:"size:150" json:"last_name"`
	IsStaff      bool      `json:"is_staff"`
	IsActive     bool      `json:"is_active"`
	DateJoined   time.Time `gorm:"autoCreateTime" json:"date_joined"`
	Profile      *Profile  `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// Profile extends a User one-to-one. It is provisioned by User.AfterSave.
type Profile struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Avatar             string     `gorm:"size:255" json:"avatar"`
	Phone              *string    `gorm:"size:20" json:"phone"`
	BirthDate          *time.Time `gorm:"type:date" json:"birth_date"`
	Location           *string    `gorm:"size:100" json:"location"`
	Bio                *string    `gorm:"type:text" json:"bio"`
	CarsAdded          uint       `gorm:"not null;default:0" json:"cars_added"`
	ReviewsWritten     uint       `gorm:"not null;default:0" json:"reviews_written"`
	EmailNotifications bool       `json:"email_notifications"`
	Newsletter         bool       `json:"newsletter"`
	Created            time.Time  `gorm:"column:created;autoCreateTime" json:"created"`
	Updated            time.Time  `gorm:"column:updated;autoUpdateTime" json:"updated"`
}

type Category struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string     `gorm:"size:100;not null" json:"title"`
	Slug        string     `gorm:"size:100;index" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	Image       string     `gorm:"size:255" json:"image"`
	Created     time.Time  `gorm:"column:created;autoCreateTime" json:"created"`
	Updated     time.Time  `gorm:"column:updated;autoUpdateTime" json:"updated"`
	ParentID    *uint      `gorm:"index" json:"parent_id"`
	Parent      *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children    []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// Manufacturer has no foreign key to Car.
type Manufacturer struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Slug        string `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Country     string `gorm:"size:50" json:"country"`
	Founded     uint   `json:"founded"`
	Logo        string `gorm:"size:255" json:"logo"`
	Description string `gorm:"type:text" json:"description"`
}

type Car struct {
	ID               uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string              `gorm:"size:100;not null" json:"name"`
	Slug             string              `gorm:"size:100;index" json:"slug"`
	Description      string              `gorm:"type:text" json:"description"`
	Price            decimal.NullDecimal `gorm:"type:decimal(12,2);index" json:"price"`
	Image            string              `gorm:"size:255" json:"image"`
	IsActive         bool                `gorm:"index" json:"is_active"`
	Created          time.Time           `gorm:"column:created;autoCreateTime;index" json:"created"`
	Updated          time.Time           `gorm:"column:updated;autoUpdateTime" json:"updated"`
	EngineVolume     decimal.NullDecimal `gorm:"type:decimal(3,1)" json:"engine_volume"`
	Horsepower       *int                `json:"horsepower"`
	Year             *uint               `gorm:"index" json:"year"`
	Acceleration0100 decimal.NullDecimal `gorm:"column:acceleration_0_100;type:decimal(3,1)" json:"acceleration_0_100"`
	TopSpeed         *int                `json:"top_speed"`
	AuthorID         *uint               `gorm:"index" json:"author_id"`
	Author           *User               `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Views            uint                `gorm:"not null;default:0" json:"views"`
	CatID            uint                `gorm:"column:cat_id;not null;index" json:"cat_id"`
	Cat              *Category           `gorm:"foreignKey:CatID" json:"cat,omitempty"`
	Photos           []CarPhoto          `gorm:"foreignKey:CarID" json:"photos,omitempty"`
	Videos           []CarVideo          `gorm:"foreignKey:CarID" json:"videos,omitempty"`
}

// CarLike is one member of a car's like set. The composite key keeps a
// user from appearing twice.
type CarLike struct {
	CarID  uint `gorm:"primaryKey;autoIncrement:false" json:"car_id"`
	UserID uint `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
}

type CarPhoto struct {
	ID      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CarID   uint      `gorm:"not null;index" json:"car_id"`
	Car     *Car      `gorm:"foreignKey:CarID" json:"car,omitempty"`
	Image   string    `gorm:"size:255;not null" json:"image"`
	Title   string    `gorm:"size:100" json:"title"`
	IsMain  bool      `json:"is_main"`
	Created time.Time `gorm:"column:created;autoCreateTime" json:"created"`
}

type CarVideo struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CarID      uint           `gorm:"not null;index" json:"car_id"`
	Car        *Car           `gorm:"foreignKey:CarID" json:"car,omitempty"`
	Title      string         `gorm:"size:200;not null" json:"title"`
	YoutubeURL string         `gorm:"column:youtube_url;size:200;not null" json:"youtube_url"`
	Duration   *time.Duration `json:"duration"`
	Views      uint           `gorm:"not null;default:0" json:"views"`
	Created    time.Time      `gorm:"column:created;autoCreateTime" json:"created"`
}

type Article struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Slug        string    `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Content     string    `gorm:"type:text" json:"content"`
	Excerpt     string    `gorm:"size:300" json:"excerpt"`
	Image       string    `gorm:"size:255" json:"image"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Author      *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Cars        []Car     `gorm:"many2many:article_cars" json:"cars,omitempty"`
	Views       uint      `gorm:"not null;default:0" json:"views"`
	IsPublished bool      `gorm:"index" json:"is_published"`
	Created     time.Time `gorm:"column:created;autoCreateTime" json:"created"`
	Updated     time.Time `gorm:"column:updated;autoUpdateTime" json:"updated"`
}

// Comment belongs to exactly one car or one article; see CommentTarget.
type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CarID     *uint     `gorm:"index" json:"car_id"`
	ArticleID *uint     `gorm:"index" json:"article_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Replies   []Comment `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
	IsActive  bool      `gorm:"index" json:"is_active"`
	Created   time.Time `gorm:"column:created;autoCreateTime" json:"created"`
}

// All lists every persisted entity in migration order.
func All() []any {
	return []any{
		&User{},
		&Profile{},
		&Category{},
		&Manufacturer{},
		&Car{},
		&CarLike{},
		&CarPhoto{},
		&CarVideo{},
		&Article{},
		&Comment{},
	}
}
