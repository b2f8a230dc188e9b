package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"battlearena/internal/models"
)

type CharacterStateRepository struct {
	db DB
}

func NewCharacterStateRepository(db DB) *CharacterStateRepository {
	return &CharacterStateRepository{db: db}
}

const characterStateColumns = `id, health, state, attack_action, attack_damage, heal,
	bleeding_count, bleeding_damage, stun_count`

func scanCharacterState(row scanner) (models.CharacterState, error) {
	var s models.CharacterState
	if err := row.Scan(
		&s.ID,
		&s.Health,
		&s.State,
		&s.AttackAction,
		&s.AttackDamage,
		&s.Heal,
		&s.BleedingCount,
		&s.BleedingDamage,
		&s.StunCount,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CharacterState{}, ErrCharacterStateNotFound
		}
		return models.CharacterState{}, err
	}
	return s, nil
}

func (r *CharacterStateRepository) Create(ctx context.Context, s models.CharacterState) error {
	const query = `
		INSERT INTO character_states (
			id, health, state, attack_action, attack_damage, heal,
			bleeding_count, bleeding_damage, stun_count, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
		)
	`
	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.Health,
		s.State,
		s.AttackAction,
		s.AttackDamage,
		s.Heal,
		s.BleedingCount,
		s.BleedingDamage,
		s.StunCount,
	)
	return err
}

func (r *CharacterStateRepository) GetByID(ctx context.Context, id string) (models.CharacterState, error) {
	query := `SELECT ` + characterStateColumns + ` FROM character_states WHERE id = $1`
	return scanCharacterState(r.db.QueryRow(ctx, query, id))
}

// GetMany loads the states with the given ids keyed by id. Missing ids are
// absent from the map.
func (r *CharacterStateRepository) GetMany(ctx context.Context, ids []string) (map[string]models.CharacterState, error) {
	states := make(map[string]models.CharacterState, len(ids))
	if len(ids) == 0 {
		return states, nil
	}

	query := `SELECT ` + characterStateColumns + ` FROM character_states WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanCharacterState(rows)
		if err != nil {
			return nil, err
		}
		states[s.ID] = s
	}
	return states, rows.Err()
}

// Update replaces every field of the stored state.
func (r *CharacterStateRepository) Update(ctx context.Context, s models.CharacterState) error {
	const query = `
		UPDATE character_states
		SET health = $2,
		    state = $3,
		    attack_action = $4,
		    attack_damage = $5,
		    heal = $6,
		    bleeding_count = $7,
		    bleeding_damage = $8,
		    stun_count = $9,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.db.Exec(ctx, query,
		s.ID,
		s.Health,
		s.State,
		s.AttackAction,
		s.AttackDamage,
		s.Heal,
		s.BleedingCount,
		s.BleedingDamage,
		s.StunCount,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCharacterStateNotFound
	}
	return nil
}

func (r *CharacterStateRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM character_states WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *CharacterStateRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM character_states WHERE id = ANY($1)`
	_, err := r.db.Exec(ctx, query, ids)
	return err
}
