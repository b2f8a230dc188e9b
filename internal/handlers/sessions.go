package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"battlearena/internal/middleware"
	"battlearena/internal/models"
	"battlearena/internal/service"
)

type createSessionRequest struct {
	CharacterID    string                 `json:"characterId" binding:"required"`
	GameStatus     string                 `json:"gameStatus"`
	CharacterState *models.CharacterState `json:"characterState"`
}

func (h HandlerSet) CreateSession(variant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		caller, _ := middleware.CurrentUser(c)
		session, err := h.sessions.Create(c.Request.Context(), caller, service.CreateSessionInput{
			CharacterID:    req.CharacterID,
			GameStatus:     req.GameStatus,
			CharacterState: req.CharacterState,
			Variant:        variant,
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

type characterRequest struct {
	CharacterID string `json:"characterId" binding:"required"`
}

func (h HandlerSet) CreateSessionWithRoomCode(variant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req characterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		caller, _ := middleware.CurrentUser(c)
		session, err := h.sessions.CreateWithRoomCode(c.Request.Context(), caller, service.CreateSessionInput{
			CharacterID: req.CharacterID,
			Variant:     variant,
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

// GetSession serves a session by id or room code. The game engine variant
// also asks for each participant's max health.
func (h HandlerSet) GetSession(withMaxHealth bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := h.sessions.Get(c.Request.Context(), c.Param("sessionId"), withMaxHealth)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func (h HandlerSet) JoinSession(c *gin.Context) {
	var req characterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	caller, _ := middleware.CurrentUser(c)
	session, err := h.sessions.Join(c.Request.Context(), caller, c.Param("sessionId"), req.CharacterID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type addPlayerRequest struct {
	CharacterID    string                 `json:"characterId" binding:"required"`
	CharacterState *models.CharacterState `json:"characterState"`
}

func (h HandlerSet) AddPlayer(c *gin.Context) {
	var req addPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	caller, _ := middleware.CurrentUser(c)
	session, err := h.sessions.AddPlayer(c.Request.Context(), caller, c.Param("sessionId"), req.CharacterID, req.CharacterState)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h HandlerSet) RemovePlayer(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)
	session, err := h.sessions.RemovePlayer(c.Request.Context(), caller, c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h HandlerSet) AddSpectator(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)
	session, err := h.sessions.AddSpectator(c.Request.Context(), caller, c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h HandlerSet) RemoveSpectator(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)
	session, err := h.sessions.RemoveSpectator(c.Request.Context(), caller, c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type updateStateRequest struct {
	CharacterState json.RawMessage `json:"characterState"`
}

var errStateShape = errors.New("characterState must be a state id or a state object")

// decodeStateUpdate reads characterState as either a state id or a whole
// state document.
func decodeStateUpdate(raw json.RawMessage) (service.StateUpdate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return service.StateUpdate{}, fmt.Errorf("%w: characterState is required", service.ErrValidation)
	}

	switch raw[0] {
	case '"':
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return service.StateUpdate{}, fmt.Errorf("%w: %v", service.ErrValidation, err)
		}
		return service.StateUpdate{StateID: id}, nil
	case '{':
		var state models.CharacterState
		if err := json.Unmarshal(raw, &state); err != nil {
			return service.StateUpdate{}, fmt.Errorf("%w: %v", service.ErrValidation, err)
		}
		return service.StateUpdate{State: &state}, nil
	}
	return service.StateUpdate{}, fmt.Errorf("%w: %v", service.ErrValidation, errStateShape)
}

func (h HandlerSet) UpdateCharacterState(c *gin.Context) {
	var req updateStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	update, err := decodeStateUpdate(req.CharacterState)
	if err != nil {
		h.fail(c, err)
		return
	}

	caller, _ := middleware.CurrentUser(c)
	session, err := h.sessions.UpdateCharacterState(c.Request.Context(), caller, c.Param("sessionId"), update)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type updateStatesRequest struct {
	CurrentTurnCharacterID *string `json:"currentTurnCharacterId"`
	CharacterStates        any     `json:"characterStates"`
}

func (h HandlerSet) UpdateCharacterStates(c *gin.Context) {
	var req updateStatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	update := service.BulkStateUpdate{CurrentTurnCharacterID: req.CurrentTurnCharacterID}
	if req.CharacterStates != nil {
		patches, err := service.DecodeStatePatches(req.CharacterStates)
		if err != nil {
			h.fail(c, err)
			return
		}
		update.Patches = patches
	}

	caller, _ := middleware.CurrentUser(c)
	session, err := h.sessions.UpdateCharacterStates(c.Request.Context(), caller, c.Param("sessionId"), update)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h HandlerSet) EndSession(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)
	session, err := h.sessions.End(c.Request.Context(), caller, c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h HandlerSet) DeleteSession(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)
	if err := h.sessions.Delete(c.Request.Context(), caller, c.Param("sessionId")); err != nil {
		h.fail(c, err)
		return
	}
	message(c, http.StatusOK, "Session deleted successfully")
}
