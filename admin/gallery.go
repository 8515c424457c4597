package admin

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"autocatalog/common"
	"autocatalog/models"
)

type photoInput struct {
	CarID  uint                  `form:"car_id" json:"car_id" binding:"required"`
	Title  string                `form:"title" json:"title" binding:"max=100"`
	IsMain bool                  `form:"is_main" json:"is_main"`
	Image  *multipart.FileHeader `form:"image" json:"-"`
}

type videoInput struct {
	CarID      uint   `form:"car_id" json:"car_id" binding:"required"`
	Title      string `form:"title" json:"title" binding:"required,max=200"`
	YoutubeURL string `form:"youtube_url" json:"youtube_url" binding:"required,url,max=200"`
	Duration   string `form:"duration" json:"duration"`
}

func (a *AdminModule) listPhotos(c *gin.Context) {
	q := a.db.WithContext(c.Request.Context()).Model(&models.CarPhoto{})
	q = boolFilter(c, q, "is_main", "is_main")
	q = idFilter(c, q, "car", "car_id")

	var photos []models.CarPhoto
	total, err := listQuery(c, q, models.OrderPhotos, &photos, "Car")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"photos": photos, "total": total})
}

func (a *AdminModule) createPhoto(c *gin.Context) {
	a.savePhoto(c, &models.CarPhoto{})
}

func (a *AdminModule) updatePhoto(c *gin.Context) {
	var photo models.CarPhoto
	if !a.load(c, &photo, "photo") {
		return
	}
	a.savePhoto(c, &photo)
}

func (a *AdminModule) savePhoto(c *gin.Context, photo *models.CarPhoto) {
	db := a.db.WithContext(c.Request.Context())

	var in photoInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	ve := &common.ValidationError{}
	if ok, err := a.exists(db, &models.Car{}, in.CarID); err != nil {
		common.RespondError(c, err)
		return
	} else if !ok {
		ve.Add("car_id", "select a valid choice")
	}
	if photo.ID == 0 && in.Image == nil {
		ve.Add("image", "this field is required")
	}
	if err := ve.OrNil(); err != nil {
		common.RespondError(c, err)
		return
	}

	image, err := a.upload("cars/photos", "image", in.Image)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	oldImage := photo.Image

	photo.CarID = in.CarID
	photo.Car = nil
	photo.Title = in.Title
	photo.IsMain = in.IsMain
	if image != "" {
		photo.Image = image
	}

	creating := photo.ID == 0
	if err := db.Save(photo).Error; err != nil {
		_ = a.media.Remove(image)
		common.RespondError(c, err)
		return
	}
	a.replaceFile(oldImage, image)

	status, action := http.StatusOK, "update"
	if creating {
		status, action = http.StatusCreated, "create"
	}
	a.changed(c, action, "photo", photo.ID)
	c.JSON(status, gin.H{"photo": photo})
}

func (a *AdminModule) deletePhoto(c *gin.Context) {
	var photo models.CarPhoto
	if !a.load(c, &photo, "photo") {
		return
	}

	if err := a.db.WithContext(c.Request.Context()).Delete(&photo).Error; err != nil {
		common.RespondError(c, err)
		return
	}
	_ = a.media.Remove(photo.Image)

	a.changed(c, "delete", "photo", photo.ID)
	respondDeleted(c, photo.ID)
}

func (a *AdminModule) listVideos(c *gin.Context) {
	q := a.db.WithContext(c.Request.Context()).Model(&models.CarVideo{})
	q = idFilter(c, q, "car", "car_id")
	q = search(q, c.Query("q"), "title")

	var videos []models.CarVideo
	total, err := listQuery(c, q, "created DESC", &videos, "Car")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"videos": videos, "total": total})
}

func (a *AdminModule) createVideo(c *gin.Context) {
	a.saveVideo(c, &models.CarVideo{})
}

func (a *AdminModule) updateVideo(c *gin.Context) {
	var video models.CarVideo
	if !a.load(c, &video, "video") {
		return
	}
	a.saveVideo(c, &video)
}

func (a *AdminModule) saveVideo(c *gin.Context, video *models.CarVideo) {
	db := a.db.WithContext(c.Request.Context())

	var in videoInput
	if err := common.Bind(c, &in); err != nil {
		common.RespondError(c, err)
		return
	}

	ve := &common.ValidationError{}
	if ok, err := a.exists(db, &models.Car{}, in.CarID); err != nil {
		common.RespondError(c, err)
		return
	} else if !ok {
		ve.Add("car_id", "select a valid choice")
	}
	duration, err := parseDuration(in.Duration)
	if err != nil {
		ve.Add("duration", "enter a valid duration")
	}
	if err := ve.OrNil(); err != nil {
		common.RespondError(c, err)
		return
	}

	video.CarID = in.CarID
	video.Car = nil
	video.Title = in.Title
	video.YoutubeURL = in.YoutubeURL
	video.Duration = duration

	creating := video.ID == 0
	if err := db.Save(video).Error; err != nil {
		common.RespondError(c, err)
		return
	}

	status, action := http.StatusOK, "update"
	if creating {
		status, action = http.StatusCreated, "create"
	}
	a.changed(c, action, "video", video.ID)
	c.JSON(status, gin.H{"video": video})
}

func (a *AdminModule) deleteVideo(c *gin.Context) {
	var video models.CarVideo
	if !a.load(c, &video, "video") {
		return
	}

	if err := a.db.WithContext(c.Request.Context()).Delete(&video).Error; err != nil {
		common.RespondError(c, err)
		return
	}

	a.changed(c, "delete", "video", video.ID)
	respondDeleted(c, video.ID)
}

// parseDuration accepts "[HH:]MM:SS", a plain number of seconds, or Go
// duration syntax such as "1h2m3s". Empty input means no duration.
func parseDuration(s string) (*time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var d time.Duration
	switch parts := strings.Split(s, ":"); {
	case len(parts) == 2 || len(parts) == 3:
		var total float64
		for i, p := range parts {
			last := i == len(parts)-1
			var v float64
			var err error
			if last {
				v, err = strconv.ParseFloat(p, 64)
			} else {
				var n int
				n, err = strconv.Atoi(p)
				v = float64(n)
			}
			if err != nil || v < 0 || (i > 0 && v >= 60) {
				return nil, errInvalidDuration
			}
			total = total*60 + v
		}
		d = time.Duration(total * float64(time.Second))
	case len(parts) == 1:
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			d = time.Duration(secs * float64(time.Second))
			break
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return nil, errInvalidDuration
		}
		d = parsed
	default:
		return nil, errInvalidDuration
	}

	if d < 0 {
		return nil, errInvalidDuration
	}
	return &d, nil
}
