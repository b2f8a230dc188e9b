package service

import (
	"context"
	"errors"
	"time"

	"battlearena/internal/models"
	"battlearena/internal/repository"
)

// ParticipantView is a participant with its CharacterState resolved inline.
// CharacterState is nil when the referenced state no longer exists.
type ParticipantView struct {
	UserID         string                 `json:"userId"`
	CharacterState *models.CharacterState `json:"characterState"`
	models.CharacterSnapshot
	MaxHealth *int `json:"maxHealth,omitempty"`
}

type SessionView struct {
	ID                     string            `json:"id"`
	GameStatus             models.GameStatus `json:"gameStatus"`
	CurrentTurnCharacterID string            `json:"currentTurnCharacterId"`
	RoomCode               *string           `json:"roomCode,omitempty"`
	Users                  []ParticipantView `json:"users"`
	Spectators             []string          `json:"spectators"`
	Version                int               `json:"version"`
	CreatedAt              time.Time         `json:"createdAt"`
	UpdatedAt              time.Time         `json:"updatedAt"`
}

// view resolves every participant's state with one batch read. With
// withMaxHealth set each participant also carries a maxHealth figure: the
// state's health when the state exists, otherwise the max health of the
// catalog character matching the snapshot.
func (s *SessionService) view(ctx context.Context, session models.GameSession, withMaxHealth bool) (SessionView, error) {
	states, err := s.states.GetMany(ctx, session.StateIDs())
	if err != nil {
		return SessionView{}, err
	}

	users := make([]ParticipantView, 0, len(session.Users))
	for _, p := range session.Users {
		pv := ParticipantView{
			UserID:            p.UserID,
			CharacterSnapshot: p.CharacterSnapshot,
		}
		state, ok := states[p.CharacterStateID]
		if ok {
			pv.CharacterState = &state
		}

		if withMaxHealth {
			if ok {
				health := state.Health
				pv.MaxHealth = &health
			} else {
				c, err := s.characters.FindByIdentity(ctx, p.CharacterName, p.Class, p.Avatar)
				switch {
				case err == nil:
					health := c.MaxHealth()
					pv.MaxHealth = &health
				case !errors.Is(err, repository.ErrCharacterNotFound):
					return SessionView{}, err
				}
			}
		}
		users = append(users, pv)
	}

	spectators := session.Spectators
	if spectators == nil {
		spectators = []string{}
	}

	return SessionView{
		ID:                     session.ID,
		GameStatus:             session.GameStatus,
		CurrentTurnCharacterID: session.CurrentTurnCharacterID,
		RoomCode:               session.RoomCode,
		Users:                  users,
		Spectators:             spectators,
		Version:                session.Version,
		CreatedAt:              session.CreatedAt,
		UpdatedAt:              session.UpdatedAt,
	}, nil
}
