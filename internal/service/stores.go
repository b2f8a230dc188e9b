package service

import (
	"context"
	"time"

	"battlearena/internal/models"
)

// The store interfaces are satisfied by the postgres repositories.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user models.User) error
	SetActive(ctx context.Context, id string, active bool) error
	SetPasswordHash(ctx context.Context, id string, hash []byte) error
	AppendCharacter(ctx context.Context, id string, characterID string) error
	RemoveCharacter(ctx context.Context, id string, characterID string) error
	Delete(ctx context.Context, id string) error
	DeleteUnverified(ctx context.Context, now time.Time) (int64, error)
}

type RecoveryTokenStore interface {
	Create(ctx context.Context, token models.RecoveryToken) error
	Exists(ctx context.Context, token string) (bool, error)
	FindByToken(ctx context.Context, token string) (models.RecoveryToken, error)
	Delete(ctx context.Context, id string) error
}

type CharacterStore interface {
	Create(ctx context.Context, c models.Character) error
	GetByID(ctx context.Context, id string) (models.Character, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Character, error)
	FindByIdentity(ctx context.Context, name string, class models.CharacterClass, avatar string) (models.Character, error)
	Delete(ctx context.Context, id string) error
}

type CharacterStateStore interface {
	Create(ctx context.Context, s models.CharacterState) error
	GetByID(ctx context.Context, id string) (models.CharacterState, error)
	GetMany(ctx context.Context, ids []string) (map[string]models.CharacterState, error)
	Update(ctx context.Context, s models.CharacterState) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
}

type SessionStore interface {
	Create(ctx context.Context, s models.GameSession) error
	GetByID(ctx context.Context, id string) (models.GameSession, error)
	FindActiveByRoomCode(ctx context.Context, roomCode string) (models.GameSession, error)
	RoomCodeInUse(ctx context.Context, roomCode string) (bool, error)
	Update(ctx context.Context, s models.GameSession) (models.GameSession, error)
	Delete(ctx context.Context, id string) error
}

// Mailer delivers account mail out of band.
type Mailer interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// Recorder receives domain counters.
type Recorder interface {
	AccountRegistered()
	SessionCreated(variant string)
}

type nopRecorder struct{}

func (nopRecorder) AccountRegistered() {}
func (nopRecorder) SessionCreated(string) {}
