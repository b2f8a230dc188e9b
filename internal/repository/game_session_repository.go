package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"battlearena/internal/models"
)

// GameSessionRepository stores the session aggregate as one row. Participants
// and spectators live in JSONB columns; the version column arbitrates
// concurrent writers.
type GameSessionRepository struct {
	db DB
}

func NewGameSessionRepository(db DB) *GameSessionRepository {
	return &GameSessionRepository{db: db}
}

const sessionColumns = `id, game_status, current_turn_character_id, room_code, users, spectators,
	version, created_at, updated_at`

func scanSession(row scanner) (models.GameSession, error) {
	var (
		s          models.GameSession
		users      []byte
		spectators []byte
	)
	if err := row.Scan(
		&s.ID,
		&s.GameStatus,
		&s.CurrentTurnCharacterID,
		&s.RoomCode,
		&users,
		&spectators,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GameSession{}, ErrSessionNotFound
		}
		return models.GameSession{}, err
	}

	if err := json.Unmarshal(users, &s.Users); err != nil {
		return models.GameSession{}, fmt.Errorf("decode session users: %w", err)
	}
	if err := json.Unmarshal(spectators, &s.Spectators); err != nil {
		return models.GameSession{}, fmt.Errorf("decode session spectators: %w", err)
	}
	if s.Users == nil {
		s.Users = []models.Participant{}
	}
	if s.Spectators == nil {
		s.Spectators = []string{}
	}
	return s, nil
}

func encodeMembers(s models.GameSession) ([]byte, []byte, error) {
	users := s.Users
	if users == nil {
		users = []models.Participant{}
	}
	spectators := s.Spectators
	if spectators == nil {
		spectators = []string{}
	}

	usersJSON, err := json.Marshal(users)
	if err != nil {
		return nil, nil, fmt.Errorf("encode session users: %w", err)
	}
	spectatorsJSON, err := json.Marshal(spectators)
	if err != nil {
		return nil, nil, fmt.Errorf("encode session spectators: %w", err)
	}
	return usersJSON, spectatorsJSON, nil
}

// Create inserts a new session at version 1. A room code already held by an
// unfinished session yields ErrDuplicate.
func (r *GameSessionRepository) Create(ctx context.Context, s models.GameSession) error {
	const query = `
		INSERT INTO game_sessions (
			id, game_status, current_turn_character_id, room_code, users, spectators,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, 1, NOW(), NOW()
		)
	`

	users, spectators, err := encodeMembers(s)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		s.ID,
		s.GameStatus,
		s.CurrentTurnCharacterID,
		s.RoomCode,
		users,
		spectators,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *GameSessionRepository) GetByID(ctx context.Context, id string) (models.GameSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE id = $1`
	return scanSession(r.db.QueryRow(ctx, query, id))
}

func (r *GameSessionRepository) FindActiveByRoomCode(ctx context.Context, roomCode string) (models.GameSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM game_sessions
		WHERE room_code = $1 AND game_status <> 'finished'`
	return scanSession(r.db.QueryRow(ctx, query, roomCode))
}

func (r *GameSessionRepository) RoomCodeInUse(ctx context.Context, roomCode string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM game_sessions WHERE room_code = $1 AND game_status <> 'finished'
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, roomCode).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Update writes s if the stored version still equals s.Version and bumps the
// version. A stale version yields ErrSessionConflict.
func (r *GameSessionRepository) Update(ctx context.Context, s models.GameSession) (models.GameSession, error) {
	const query = `
		UPDATE game_sessions
		SET game_status = $3,
		    current_turn_character_id = $4,
		    room_code = $5,
		    users = $6,
		    spectators = $7,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	users, spectators, err := encodeMembers(s)
	if err != nil {
		return models.GameSession{}, err
	}

	err = r.db.QueryRow(ctx, query,
		s.ID,
		s.Version,
		s.GameStatus,
		s.CurrentTurnCharacterID,
		s.RoomCode,
		users,
		spectators,
	).Scan(&s.Version, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GameSession{}, ErrSessionConflict
		}
		return models.GameSession{}, err
	}
	return s, nil
}

func (r *GameSessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM game_sessions WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
