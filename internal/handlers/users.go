package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"battlearena/internal/middleware"
	"battlearena/internal/models"
	"battlearena/internal/service"
)

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	IsAdmin    bool      `json:"isAdmin"`
	IsActive   bool      `json:"isActive"`
	Characters []string  `json:"characters"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newUserResponse(user models.User) userResponse {
	characters := user.Characters
	if characters == nil {
		characters = []string{}
	}
	return userResponse{
		ID:         user.ID,
		Email:      user.Email,
		IsAdmin:    user.IsAdmin,
		IsActive:   user.IsActive,
		Characters: characters,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	users, err := h.accounts.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, newUserResponse(user))
	}
	c.JSON(http.StatusOK, items)
}

// GetUser is open to admins and to the user being read.
func (h HandlerSet) GetUser(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)
	id := c.Param("id")
	if caller.ID != id && !caller.IsAdmin {
		h.fail(c, service.ErrForbidden)
		return
	}

	user, err := h.accounts.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

type createUserRequest struct {
	Email      string   `json:"email" binding:"required"`
	Password   string   `json:"password" binding:"required"`
	IsAdmin    bool     `json:"isAdmin"`
	IsActive   *bool    `json:"isActive"`
	Characters []string `json:"characters"`
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.accounts.Create(c.Request.Context(), service.CreateUserInput{
		Email:      req.Email,
		Password:   req.Password,
		IsAdmin:    req.IsAdmin,
		IsActive:   req.IsActive,
		Characters: req.Characters,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(user))
}

type updateUserRequest struct {
	Email      *string   `json:"email"`
	Password   *string   `json:"password"`
	IsAdmin    *bool     `json:"isAdmin"`
	IsActive   *bool     `json:"isActive"`
	Characters *[]string `json:"characters"`
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.accounts.Update(c.Request.Context(), c.Param("id"), service.UserPatch{
		Email:      req.Email,
		Password:   req.Password,
		IsAdmin:    req.IsAdmin,
		IsActive:   req.IsActive,
		Characters: req.Characters,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	if err := h.accounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	message(c, http.StatusOK, "User deleted successfully")
}
