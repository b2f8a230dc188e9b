package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"battlearena/internal/service"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) RegisterAccount(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		h.fail(c, err)
		return
	}

	message(c, http.StatusCreated, "Registration successful. Check your email for the verification code.")
}

func (h HandlerSet) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  newUserResponse(result.User),
	})
}

func (h HandlerSet) Activate(c *gin.Context) {
	if err := h.accounts.Activate(c.Request.Context(), c.Param("token"), c.Query("email")); err != nil {
		h.fail(c, err)
		return
	}
	message(c, http.StatusOK, "Account activated successfully")
}

func (h HandlerSet) VerifyCode(c *gin.Context) {
	if err := h.accounts.VerifyCode(c.Request.Context(), c.Param("token"), c.Query("email")); err != nil {
		h.fail(c, err)
		return
	}
	message(c, http.StatusOK, "Code is valid and is for that email.")
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.accounts.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	message(c, http.StatusOK, "Password reset token sent to your email")
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), c.Param("token"), req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	message(c, http.StatusOK, "Password reset successful")
}
