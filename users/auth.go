package users

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/logger"
	"autocatalog/models"
)

const (
	userIDKey  = "user_id"
	currentKey = "current_user"
)

// RequireAuth aborts with 401 unless the session belongs to an existing,
// active account. A stale session is cleared.
func RequireAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CurrentUserID(c)
		if !ok {
			common.RespondError(c, common.ErrUnauthorized)
			c.Abort()
			return
		}

		var user models.User
		err := db.WithContext(c.Request.Context()).Where("id = ?", userID).Limit(1).Find(&user).Error
		if err != nil {
			common.RespondError(c, err)
			c.Abort()
			return
		}
		if user.ID == 0 || !user.IsActive {
			if err := logout(c); err != nil {
				logger.L().Warn("failed to clear stale session", zap.Uint("user_id", userID), zap.Error(err))
			}
			common.RespondError(c, common.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(userIDKey, user.ID)
		c.Set(currentKey, &user)
		c.Next()
	}
}

// CurrentUserID returns the logged-in user's id, if any.
func CurrentUserID(c *gin.Context) (uint, bool) {
	if v, ok := c.Get(userIDKey); ok {
		id, ok := v.(uint)
		return id, ok
	}
	id, ok := sessions.Default(c).Get(userIDKey).(uint)
	return id, ok && id != 0
}

// CurrentUser returns the user loaded by RequireAuth.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(currentKey); ok {
		return v.(*models.User)
	}
	return nil
}

// RequireStaff admits only staff accounts. It must run after RequireAuth,
// which has already rejected inactive ones.
func RequireStaff(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		common.RespondError(c, common.ErrUnauthorized)
		c.Abort()
		return
	}
	if !user.IsStaff {
		common.RespondError(c, common.ErrForbidden)
		c.Abort()
		return
	}
	c.Next()
}

func login(c *gin.Context, userID uint) error {
	session := sessions.Default(c)
	session.Set(userIDKey, userID)
	return session.Save()
}

func logout(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
