package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"battlearena/internal/middleware"
	"battlearena/internal/service"
)

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.fail(c, fmt.Errorf("%w: file is required", service.ErrValidation))
		return
	}
	defer file.Close()

	avatar, err := h.avatars.Upload(c.Request.Context(), user, service.AvatarUpload{
		File:   file,
		Header: header,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", user.ID).Msg("avatar upload failed")
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"avatar": avatar,
	})
}
