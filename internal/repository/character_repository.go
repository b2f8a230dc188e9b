package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"battlearena/internal/models"
)

type CharacterRepository struct {
	db DB
}

func NewCharacterRepository(db DB) *CharacterRepository {
	return &CharacterRepository{db: db}
}

const characterColumns = `id, owner_id, character_name, avatar, class, luck, attack, defense, vitality,
	attack_type, attack_damage, created_at`

func scanCharacter(row scanner) (models.Character, error) {
	var c models.Character
	if err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.CharacterName,
		&c.Avatar,
		&c.Class,
		&c.Luck,
		&c.Attack,
		&c.Defense,
		&c.Vitality,
		&c.AttackType,
		&c.AttackDamage,
		&c.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Character{}, ErrCharacterNotFound
		}
		return models.Character{}, err
	}
	return c, nil
}

func (r *CharacterRepository) Create(ctx context.Context, c models.Character) error {
	const query = `
		INSERT INTO characters (
			id, owner_id, character_name, avatar, class, luck, attack, defense, vitality,
			attack_type, attack_damage, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()
		)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.OwnerID,
		c.CharacterName,
		c.Avatar,
		c.Class,
		c.Luck,
		c.Attack,
		c.Defense,
		c.Vitality,
		c.AttackType,
		c.AttackDamage,
	)
	return err
}

func (r *CharacterRepository) GetByID(ctx context.Context, id string) (models.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE id = $1`
	return scanCharacter(r.db.QueryRow(ctx, query, id))
}

// ListByIDs returns the characters in the order of ids, skipping ids with no
// catalog row.
func (r *CharacterRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Character, error) {
	result := []models.Character{}
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + characterColumns + ` FROM characters WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]models.Character, len(ids))
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// FindByIdentity looks a character up by its display triple.
func (r *CharacterRepository) FindByIdentity(ctx context.Context, name string, class models.CharacterClass, avatar string) (models.Character, error) {
	query := `SELECT ` + characterColumns + `
		FROM characters
		WHERE character_name = $1 AND class = $2 AND avatar = $3
		ORDER BY created_at ASC
		LIMIT 1`
	return scanCharacter(r.db.QueryRow(ctx, query, name, class, avatar))
}

func (r *CharacterRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM characters WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
