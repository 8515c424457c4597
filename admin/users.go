package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autocatalog/common"
	"autocatalog/models"
	"autocatalog/users"
)

type userInput struct {
	IsStaff  bool `form:"is_staff" json:"is_staff"`
	IsActive bool `form:"is_active" json:"is_active"`
}

func (a *AdminModule) listUsers(c *gin.Context) {
	q := a.db.WithContext(c.Request.Context()).Model(&models.User{})
	q = search(q, c.Query("q"), "username", "email")
	q = boolFilter(c, q, "is_staff", "is_staff")
	q = boolFilter(c, q, "is_active", "is_active")

	var list []models.User
	total, err := listQuery(c, q, "username", &list, "Profile")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": list, "total": total})
}

// updateUser changes the account flags. Staff cannot revoke their own
// access.
func (a *AdminModule) updateUser(c *gin.Context) {
	var user models.User
	if !a.load(c, &user, "user") {
		return
	}

	var in userInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}
	if staffID, _ := users.CurrentUserID(c); staffID == user.ID && (!in.IsStaff || !in.IsActive) {
		common.RespondError(c, common.Invalid("is_staff", "you cannot remove your own staff access"))
		return
	}

	user.IsStaff = in.IsStaff
	user.IsActive = in.IsActive
	err := a.db.WithContext(c.Request.Context()).Model(&user).
		Select("is_staff", "is_active").
		Updates(map[string]any{"is_staff": in.IsStaff, "is_active": in.IsActive}).Error
	if err != nil {
		common.RespondError(c, err)
		return
	}

	a.changed(c, "update", "user", user.ID)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (a *AdminModule) deleteUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if staffID, _ := users.CurrentUserID(c); staffID == id {
		common.RespondError(c, common.Invalid("id", "you cannot delete your own account here"))
		return
	}

	if err := a.users.DeleteUser(c.Request.Context(), id); err != nil {
		common.RespondError(c, err)
		return
	}

	a.changed(c, "delete", "user", id)
	respondDeleted(c, id)
}
