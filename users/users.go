package users

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/database"
	"autocatalog/email"
	"autocatalog/logger"
	"autocatalog/media"
	"autocatalog/models"
)

const avatarFolder = "users/avatars"

var ErrInvalidCredentials = fmt.Errorf("invalid username or password: %w", common.ErrUnauthorized)

type UsersModule struct {
	db     *gorm.DB
	mailer email.Mailer
	media  *media.Store
}

func NewUsersModule(db *gorm.DB, mailer email.Mailer, mediaStore *media.Store) *UsersModule {
	return &UsersModule{db: db, mailer: mailer, media: mediaStore}
}

type RegisterInput struct {
	Username  string `form:"username" json:"username" binding:"required,max=150"`
	Email     string `form:"email" json:"email" binding:"required,email,max=254"`
	FirstName string `form:"first_name" json:"first_name" binding:"max=150"`
	LastName  string `form:"last_name" json:"last_name" binding:"max=150"`
	Password1 string `form:"password1" json:"password1" binding:"required,min=8"`
	Password2 string `form:"password2" json:"password2" binding:"required"`
}

type UserUpdateInput struct {
	Username  string `form:"username" json:"username" binding:"required,max=150"`
	Email     string `form:"email" json:"email" binding:"required,email,max=254"`
	FirstName string `form:"first_name" json:"first_name" binding:"max=150"`
	LastName  string `form:"last_name" json:"last_name" binding:"max=150"`
}

type ProfileUpdateInput struct {
	Phone              string                `form:"phone" json:"phone" binding:"max=20"`
	BirthDate          string                `form:"birth_date" json:"birth_date"`
	Location           string                `form:"location" json:"location" binding:"max=100"`
	Bio                string                `form:"bio" json:"bio"`
	EmailNotifications bool                  `form:"email_notifications" json:"email_notifications"`
	Newsletter         bool                  `form:"newsletter" json:"newsletter"`
	Avatar             *multipart.FileHeader `form:"avatar" json:"-"`
}

// validate runs the binding rules so non-HTTP callers get the same checks.
func validate(obj any) error {
	if err := binding.Validator.ValidateStruct(obj); err != nil {
		return common.BindingError(err)
	}
	return nil
}

// CreateUser registers an account. The profile is provisioned in the same
// transaction by the model hook.
func (m *UsersModule) CreateUser(ctx context.Context, in RegisterInput, staff bool) (*models.User, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	db := m.db.WithContext(ctx)

	ve := &common.ValidationError{}
	if taken, err := m.usernameTaken(db, in.Username, 0); err != nil {
		return nil, err
	} else if taken {
		ve.Add("username", "a user with that username already exists")
	}
	if taken, err := m.emailTaken(db, in.Email, 0); err != nil {
		return nil, err
	} else if taken {
		ve.Add("email", "user with this email already exists")
	}
	if in.Password1 != in.Password2 {
		ve.Add("password2", "the two password fields didn't match")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	passwordHash, err := hashPassword(in.Password1)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: passwordHash,
		IsStaff:      staff,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}

	logger.L().Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))

	if err := m.mailer.SendWelcome(user.Email, user.Username); err != nil {
		logger.L().Warn("failed to send welcome email", zap.String("to", user.Email), zap.Error(err))
	}
	return &user, nil
}

func (m *UsersModule) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	if err := m.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive || !checkPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetUser loads the user with its profile.
func (m *UsersModule) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := m.db.WithContext(ctx).Preload("Profile").First(&user, id).Error; err != nil {
		return nil, common.NotFound(err, "user")
	}
	return &user, nil
}

// UpdateProfile validates both forms before anything is written, then saves
// the user and the profile in one transaction.
func (m *UsersModule) UpdateProfile(ctx context.Context, userID uint, u UserUpdateInput, p ProfileUpdateInput) (*models.User, error) {
	user, err := m.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ve := &common.ValidationError{}
	for _, obj := range []any{u, p} {
		if err := validate(obj); err != nil {
			var fields *common.ValidationError
			if !errors.As(err, &fields) {
				return nil, err
			}
			ve.Fields = append(ve.Fields, fields.Fields...)
		}
	}

	db := m.db.WithContext(ctx)
	if u.Username != "" && u.Username != user.Username {
		if taken, err := m.usernameTaken(db, u.Username, userID); err != nil {
			return nil, err
		} else if taken {
			ve.Add("username", "a user with that username already exists")
		}
	}
	if u.Email != "" && !strings.EqualFold(u.Email, user.Email) {
		if taken, err := m.emailTaken(db, u.Email, userID); err != nil {
			return nil, err
		} else if taken {
			ve.Add("email", "user with this email already exists")
		}
	}

	var birthDate *time.Time
	if p.BirthDate != "" {
		d, err := time.Parse("2006-01-02", p.BirthDate)
		if err != nil {
			ve.Add("birth_date", "enter a valid date")
		} else {
			birthDate = &d
		}
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var avatar string
	if p.Avatar != nil {
		rel, err := m.media.Save(avatarFolder, "avatar", p.Avatar)
		if err != nil {
			return nil, err
		}
		avatar = rel
	}

	user.Username = u.Username
	user.Email = u.Email
	user.FirstName = u.FirstName
	user.LastName = u.LastName

	var profile models.Profile
	var oldAvatar string
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profile").Save(user).Error; err != nil {
			return err
		}
		// the user hook guarantees the row exists by now
		if err := tx.Where("user_id = ?", user.ID).Take(&profile).Error; err != nil {
			return err
		}
		oldAvatar = profile.Avatar
		if avatar != "" {
			profile.Avatar = avatar
		}
		profile.Phone = optional(p.Phone)
		profile.BirthDate = birthDate
		profile.Location = optional(p.Location)
		profile.Bio = optional(p.Bio)
		profile.EmailNotifications = p.EmailNotifications
		profile.Newsletter = p.Newsletter
		// counters are bumped concurrently by hooks and must not be written back
		return tx.Model(&profile).
			Select("avatar", "phone", "birth_date", "location", "bio", "email_notifications", "newsletter").
			Updates(&profile).Error
	})
	if err != nil {
		if avatar != "" {
			_ = m.media.Remove(avatar)
		}
		return nil, err
	}
	if avatar != "" && oldAvatar != "" {
		if err := m.media.Remove(oldAvatar); err != nil {
			logger.L().Warn("failed to remove old avatar", zap.String("path", oldAvatar), zap.Error(err))
		}
	}

	user.Profile = &profile
	return user, nil
}

func (m *UsersModule) ChangePassword(ctx context.Context, userID uint, oldPassword, new1, new2 string) error {
	user, err := m.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	ve := &common.ValidationError{}
	if !checkPasswordHash(oldPassword, user.PasswordHash) {
		ve.Add("old_password", "your old password was entered incorrectly")
	}
	if len(new1) < 8 {
		ve.Add("new_password1", "ensure this value has at least 8 characters")
	}
	if new1 != new2 {
		ve.Add("new_password2", "the two password fields didn't match")
	}
	if err := ve.OrNil(); err != nil {
		return err
	}

	passwordHash, err := hashPassword(new1)
	if err != nil {
		return err
	}
	return m.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("password", passwordHash).Error
}

// DeleteUser removes the account with its profile and authored content.
func (m *UsersModule) DeleteUser(ctx context.Context, id uint) error {
	var user models.User
	if err := m.db.WithContext(ctx).Select("id").First(&user, id).Error; err != nil {
		return common.NotFound(err, "user")
	}
	var files []string
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		files, err = database.DeleteUser(tx, id)
		return err
	})
	if err != nil {
		return err
	}
	m.media.RemoveAll(files...)
	return nil
}

func (m *UsersModule) usernameTaken(db *gorm.DB, username string, exceptID uint) (bool, error) {
	var count int64
	err := db.Model(&models.User{}).Where("username = ? AND id <> ?", username, exceptID).Count(&count).Error
	return count > 0, err
}

func (m *UsersModule) emailTaken(db *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	err := db.Model(&models.User{}).Where("LOWER(email) = LOWER(?) AND id <> ?", email, exceptID).Count(&count).Error
	return count > 0, err
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
