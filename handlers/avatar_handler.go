package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipartOverhead covers form boundaries and headers around the file part.
const multipartOverhead = 1024 * 1024

// AvatarHandler accepts profile image uploads.
type AvatarHandler struct {
	avatars AvatarUploader
	logger  *zap.Logger
}

func NewAvatarHandler(avatars AvatarUploader, logger *zap.Logger) *AvatarHandler {
	return &AvatarHandler{
		avatars: avatars,
		logger:  logger.Named("AvatarHandler"),
	}
}

// UploadAvatar handles POST /v1/users/avatar with a multipart "file" field.
func (h *AvatarHandler) UploadAvatar(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	maxBytes := h.avatars.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	if err := c.Request.ParseMultipartForm(maxBytes); err != nil {
		h.logger.Debug("Failed to parse avatar upload", zap.String("userID", userID), zap.Error(err))
		respondMessage(c, "Invalid upload: failed to parse multipart form")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, "Invalid upload: file field is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondMessage(c, "Invalid upload: failed to open uploaded file")
		return
	}
	defer file.Close()

	url, err := h.avatars.Upload(c.Request.Context(), userID, file, fileHeader.Size)
	if err != nil {
		h.logger.Warn("Avatar upload failed", zap.String("userID", userID), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "uploaded", "url": url})
}
