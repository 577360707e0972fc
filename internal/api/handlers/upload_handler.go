package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/clipscribe/clipscribe/internal/models"
	"github.com/clipscribe/clipscribe/internal/services"
	"github.com/clipscribe/clipscribe/internal/utils"
)

type UploadHandler struct {
	publisher services.Publisher
}

func NewUploadHandler(publisher services.Publisher) *UploadHandler {
	return &UploadHandler{publisher: publisher}
}

type UploadResponse struct {
	Status       string              `json:"status"`
	AudioFile    string              `json:"audio_file"`
	MetadataFile string              `json:"metadata_file"`
	Metadata     models.ClipMetadata `json:"metadata"`
}

func (h *UploadHandler) Upload(c *gin.Context) {
	const op = "UploadHandler.Upload"

	file, err := c.FormFile("audio")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidUpload, op, "no audio file provided", err))
		return
	}

	src, err := file.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidUpload, op, "unreadable audio file", err))
		return
	}
	defer src.Close()

	clip, err := h.publisher.Publish(c.Request.Context(), src, services.UploadRequest{
		Username:    c.PostForm("username"),
		Subject:     c.PostForm("subject"),
		GPSLat:      c.PostForm("gps_lat"),
		GPSLon:      c.PostForm("gps_lon"),
		ClientIP:    c.ClientIP(),
		DeviceInfo:  c.Request.UserAgent(),
		ContentType: file.Header.Get("Content-Type"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		Status:       "success",
		AudioFile:    filepath.Base(clip.AudioPath),
		MetadataFile: filepath.Base(clip.MetadataPath),
		Metadata:     clip.Metadata,
	})
}
