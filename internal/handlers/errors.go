package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"battlearena/internal/middleware"
	"battlearena/internal/repository"
	"battlearena/internal/service"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrEmailMismatch),
		errors.Is(err, service.ErrDuplicateParticipant),
		errors.Is(err, service.ErrSessionFinished),
		errors.Is(err, service.ErrAlreadySpectator):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrCharacterNotFound),
		errors.Is(err, repository.ErrCharacterStateNotFound),
		errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrRecoveryTokenNotFound),
		errors.Is(err, service.ErrNotParticipant):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, repository.ErrSessionConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err as {message}. Unexpected errors keep their raw message.
func (h HandlerSet) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("path", c.FullPath()).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"message": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
}

func message(c *gin.Context, status int, text string) {
	c.JSON(status, gin.H{"message": text})
}
