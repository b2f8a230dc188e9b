package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"battlearena/internal/ids"
	"battlearena/internal/models"
	"battlearena/internal/repository"
)

// CharacterService manages the catalog entries reachable through an owner's
// character list.
type CharacterService struct {
	characters CharacterStore
	users      UserStore
	log        zerolog.Logger
}

func NewCharacterService(characters CharacterStore, users UserStore, log zerolog.Logger) *CharacterService {
	return &CharacterService{
		characters: characters,
		users:      users,
		log:        log,
	}
}

func (s *CharacterService) List(ctx context.Context, owner models.User) ([]models.Character, error) {
	return s.characters.ListByIDs(ctx, owner.Characters)
}

func (s *CharacterService) Get(ctx context.Context, owner models.User, id string) (models.Character, error) {
	if !owner.OwnsCharacter(id) {
		return models.Character{}, repository.ErrCharacterNotFound
	}
	return s.characters.GetByID(ctx, id)
}

type CreateCharacterInput struct {
	CharacterName string
	Avatar        string
	Class         string
	Luck          int
	Attack        int
	Defense       int
	Vitality      int
	AttackType    string
	AttackDamage  int
}

func (s *CharacterService) Create(ctx context.Context, owner models.User, input CreateCharacterInput) (models.Character, error) {
	name := strings.TrimSpace(input.CharacterName)
	if name == "" {
		return models.Character{}, invalid("characterName is required")
	}
	if input.Avatar == "" {
		return models.Character{}, invalid("avatar is required")
	}
	class := models.CharacterClass(strings.ToLower(strings.TrimSpace(input.Class)))
	if !class.Valid() {
		return models.Character{}, ErrInvalidClass
	}

	c := models.Character{
		ID:            ids.New(),
		OwnerID:       owner.ID,
		CharacterName: name,
		Avatar:        input.Avatar,
		Class:         class,
		Luck:          input.Luck,
		Attack:        input.Attack,
		Defense:       input.Defense,
		Vitality:      input.Vitality,
		AttackType:    input.AttackType,
		AttackDamage:  input.AttackDamage,
	}

	if err := s.characters.Create(ctx, c); err != nil {
		return models.Character{}, oops.In("character").With("user_id", owner.ID).Wrap(err)
	}
	if err := s.users.AppendCharacter(ctx, owner.ID, c.ID); err != nil {
		if delErr := s.characters.Delete(ctx, c.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("character_id", c.ID).Msg("orphaned character cleanup failed")
		}
		return models.Character{}, oops.In("character").With("user_id", owner.ID).Wrap(err)
	}

	s.log.Info().Str("user_id", owner.ID).Str("character_id", c.ID).Msg("character created")
	return c, nil
}

// Delete removes a character the owner holds. Ids outside the owner's list
// are reported as not found even if the catalog has them.
func (s *CharacterService) Delete(ctx context.Context, owner models.User, id string) error {
	if !owner.OwnsCharacter(id) {
		return repository.ErrCharacterNotFound
	}

	if err := s.users.RemoveCharacter(ctx, owner.ID, id); err != nil {
		return oops.In("character").With("user_id", owner.ID).With("character_id", id).Wrap(err)
	}
	if err := s.characters.Delete(ctx, id); err != nil {
		return oops.In("character").With("user_id", owner.ID).With("character_id", id).Wrap(err)
	}

	s.log.Info().Str("user_id", owner.ID).Str("character_id", id).Msg("character deleted")
	return nil
}
