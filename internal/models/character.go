package models

import "time"

type CharacterClass string

const (
	ClassArcher  CharacterClass = "archer"
	ClassMage    CharacterClass = "mage"
	ClassWarrior CharacterClass = "warrior"
)

func (c CharacterClass) Valid() bool {
	switch c {
	case ClassArcher, ClassMage, ClassWarrior:
		return true
	}
	return false
}

const (
	BaseHealth        = 100
	HealthPerVitality = 10
)

type Character struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"ownerId"`
	CharacterName string         `json:"characterName"`
	Avatar        string         `json:"avatar"`
	Class         CharacterClass `json:"class"`
	Luck          int            `json:"luck"`
	Attack        int            `json:"attack"`
	Defense       int            `json:"defense"`
	Vitality      int            `json:"vitality"`
	AttackType    string         `json:"attackType"`
	AttackDamage  int            `json:"attackDamage"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// MaxHealth is the health a fresh CharacterState starts with.
func (c Character) MaxHealth() int {
	return BaseHealth + HealthPerVitality*c.Vitality
}

// Snapshot copies the display fields a session keeps for its participants.
func (c Character) Snapshot(now time.Time) CharacterSnapshot {
	return CharacterSnapshot{
		CharacterName: c.CharacterName,
		Class:         c.Class,
		Avatar:        c.Avatar,
		TakenAt:       now,
	}
}

// CharacterState is the mutable battle state of one character inside one
// session.
type CharacterState struct {
	ID             string `json:"id"`
	Health         int    `json:"health"`
	State          string `json:"state"`
	AttackAction   string `json:"attackAction"`
	AttackDamage   int    `json:"attackDamage"`
	Heal           int    `json:"heal"`
	BleedingCount  int    `json:"bleedingCount"`
	BleedingDamage int    `json:"bleedingDamage"`
	StunCount      int    `json:"stunCount"`
}

const StateIdle = "idle"

// InitialState seeds the battle state of a character entering a session.
func InitialState(c Character) CharacterState {
	return CharacterState{
		Health: c.MaxHealth(),
		State:  StateIdle,
	}
}

// CharacterStatePatch carries a partial update; nil fields are left alone.
type CharacterStatePatch struct {
	Health         *int    `mapstructure:"health"`
	State          *string `mapstructure:"state"`
	AttackAction   *string `mapstructure:"attackAction"`
	AttackDamage   *int    `mapstructure:"attackDamage"`
	Heal           *int    `mapstructure:"heal"`
	BleedingCount  *int    `mapstructure:"bleedingCount"`
	BleedingDamage *int    `mapstructure:"bleedingDamage"`
	StunCount      *int    `mapstructure:"stunCount"`
}

func (p CharacterStatePatch) Apply(s *CharacterState) {
	if p.Health != nil {
		s.Health = *p.Health
	}
	if p.State != nil {
		s.State = *p.State
	}
	if p.AttackAction != nil {
		s.AttackAction = *p.AttackAction
	}
	if p.AttackDamage != nil {
		s.AttackDamage = *p.AttackDamage
	}
	if p.Heal != nil {
		s.Heal = *p.Heal
	}
	if p.BleedingCount != nil {
		s.BleedingCount = *p.BleedingCount
	}
	if p.BleedingDamage != nil {
		s.BleedingDamage = *p.BleedingDamage
	}
	if p.StunCount != nil {
		s.StunCount = *p.StunCount
	}
}
