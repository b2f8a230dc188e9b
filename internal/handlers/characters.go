package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"battlearena/internal/middleware"
	"battlearena/internal/models"
	"battlearena/internal/service"
)

func (h HandlerSet) ListCharacters(c *gin.Context) {
	owner, _ := middleware.CurrentUser(c)
	characters, err := h.characters.List(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	if characters == nil {
		characters = []models.Character{}
	}
	c.JSON(http.StatusOK, characters)
}

func (h HandlerSet) GetCharacter(c *gin.Context) {
	owner, _ := middleware.CurrentUser(c)
	character, err := h.characters.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, character)
}

type createCharacterRequest struct {
	CharacterName string `json:"characterName"`
	Avatar        string `json:"avatar"`
	Class         string `json:"class"`
	Luck          int    `json:"luck"`
	Attack        int    `json:"attack"`
	Defense       int    `json:"defense"`
	Vitality      int    `json:"vitality"`
	AttackType    string `json:"attackType"`
	AttackDamage  int    `json:"attackDamage"`
}

func (h HandlerSet) CreateCharacter(c *gin.Context) {
	var req createCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	owner, _ := middleware.CurrentUser(c)
	character, err := h.characters.Create(c.Request.Context(), owner, service.CreateCharacterInput(req))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, character)
}

func (h HandlerSet) DeleteCharacter(c *gin.Context) {
	owner, _ := middleware.CurrentUser(c)
	if err := h.characters.Delete(c.Request.Context(), owner, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	message(c, http.StatusOK, "Character deleted successfully")
}
