package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"autocatalog/common"
	"autocatalog/logger"
)

func (m *UsersModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/users")
	{
		group.POST("/register", m.register)
		group.POST("/login", m.loginPost)
		group.GET("/logout", RequireAuth(m.db), m.logout)
		group.GET("/profile", RequireAuth(m.db), m.profile)
		group.POST("/profile", RequireAuth(m.db), m.updateProfile)
		group.POST("/password", RequireAuth(m.db), m.changePassword)
	}
}

func (m *UsersModule) register(c *gin.Context) {
	var in RegisterInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	user, err := m.CreateUser(c.Request.Context(), in, false)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":    user,
		"message": "account created, you can now log in",
	})
}

type loginInput struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

func (m *UsersModule) loginPost(c *gin.Context) {
	var in loginInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	user, err := m.Authenticate(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if err := login(c, user.ID); err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"message": "welcome, " + user.Username,
	})
}

func (m *UsersModule) logout(c *gin.Context) {
	if err := logout(c); err != nil {
		logger.L().Warn("failed to clear session", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (m *UsersModule) profile(c *gin.Context) {
	userID, _ := CurrentUserID(c)

	user, err := m.GetUser(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "profile": user.Profile})
}

func (m *UsersModule) updateProfile(c *gin.Context) {
	userID, _ := CurrentUserID(c)

	// validation of both forms happens in UpdateProfile, so only decoding
	// failures are reported here
	var form struct {
		UserUpdateInput
		ProfileUpdateInput
	}
	if err := c.ShouldBind(&form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			common.RespondError(c, common.BindingError(err))
			return
		}
	}

	user, err := m.UpdateProfile(c.Request.Context(), userID, form.UserUpdateInput, form.ProfileUpdateInput)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"profile": user.Profile,
		"message": "profile updated",
	})
}

type passwordInput struct {
	OldPassword  string `form:"old_password" json:"old_password"`
	NewPassword1 string `form:"new_password1" json:"new_password1"`
	NewPassword2 string `form:"new_password2" json:"new_password2"`
}

func (m *UsersModule) changePassword(c *gin.Context) {
	userID, _ := CurrentUserID(c)

	var in passwordInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	if err := m.ChangePassword(c.Request.Context(), userID, in.OldPassword, in.NewPassword1, in.NewPassword2); err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}
