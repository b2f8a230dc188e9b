package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"battlearena/internal/models"
)

type RecoveryTokenRepository struct {
	db DB
}

func NewRecoveryTokenRepository(db DB) *RecoveryTokenRepository {
	return &RecoveryTokenRepository{db: db}
}

// Create stores a token. A token value already held by another row yields
// ErrDuplicate so callers can regenerate.
func (r *RecoveryTokenRepository) Create(ctx context.Context, token models.RecoveryToken) error {
	const query = `
		INSERT INTO recovery_tokens (id, user_id, token, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.db.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.Token,
		token.Purpose,
		token.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *RecoveryTokenRepository) Exists(ctx context.Context, token string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM recovery_tokens WHERE token = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *RecoveryTokenRepository) FindByToken(ctx context.Context, token string) (models.RecoveryToken, error) {
	const query = `
		SELECT id, user_id, token, purpose, expires_at, created_at
		FROM recovery_tokens WHERE token = $1
	`
	var rt models.RecoveryToken
	if err := r.db.QueryRow(ctx, query, token).Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Token,
		&rt.Purpose,
		&rt.ExpiresAt,
		&rt.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RecoveryToken{}, ErrRecoveryTokenNotFound
		}
		return models.RecoveryToken{}, err
	}
	return rt, nil
}

func (r *RecoveryTokenRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM recovery_tokens WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
