package models

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	IsAdmin      bool
	IsActive     bool
	Characters   []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OwnsCharacter reports whether characterID is in the user's character list.
func (u User) OwnsCharacter(characterID string) bool {
	for _, id := range u.Characters {
		if id == characterID {
			return true
		}
	}
	return false
}

type TokenPurpose string

const (
	TokenPurposeVerify TokenPurpose = "verify"
	TokenPurposeReset  TokenPurpose = "reset"
)

// RecoveryToken is a single-use 6-digit code gating account activation or a
// password reset.
type RecoveryToken struct {
	ID        string
	UserID    string
	Token     string
	Purpose   TokenPurpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t RecoveryToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
