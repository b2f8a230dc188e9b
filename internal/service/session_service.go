package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"battlearena/internal/ids"
	"battlearena/internal/models"
	"battlearena/internal/repository"
	"battlearena/internal/security"
)

var errRoomCodeTaken = errors.New("room code already in use")

// SessionService runs the session lifecycle. Every mutation reads the
// aggregate, changes it in memory and writes it back guarded by its version,
// so a concurrent writer surfaces as repository.ErrSessionConflict instead of
// a lost update.
type SessionService struct {
	sessions   SessionStore
	states     CharacterStateStore
	characters CharacterStore
	rec        Recorder
	log        zerolog.Logger
	now        func() time.Time
}

func NewSessionService(
	sessions SessionStore,
	states CharacterStateStore,
	characters CharacterStore,
	rec Recorder,
	log zerolog.Logger,
) *SessionService {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &SessionService{
		sessions:   sessions,
		states:     states,
		characters: characters,
		rec:        rec,
		log:        log,
		now:        time.Now,
	}
}

// resolve loads a session by id, or by room code when ref is a 6-digit code.
// Room codes only resolve to unfinished sessions.
func (s *SessionService) resolve(ctx context.Context, ref string) (models.GameSession, error) {
	if ref == "" {
		return models.GameSession{}, invalid("session reference is required")
	}
	if security.IsCode(ref) {
		return s.sessions.FindActiveByRoomCode(ctx, ref)
	}
	return s.sessions.GetByID(ctx, ref)
}

func (s *SessionService) wrap(err error, sessionID string) error {
	if err == nil {
		return nil
	}
	return oops.In("session").With("session_id", sessionID).Wrap(err)
}

// dropState removes a state created for a mutation that did not commit.
func (s *SessionService) dropState(ctx context.Context, stateID string) {
	if err := s.states.Delete(ctx, stateID); err != nil {
		s.log.Error().Err(err).Str("character_state_id", stateID).Msg("orphaned state cleanup failed")
	}
}

type CreateSessionInput struct {
	CharacterID    string
	GameStatus     string
	CharacterState *models.CharacterState
	// Variant labels the client flavour for metrics.
	Variant string
}

// Create starts a session with the caller as its only participant and the
// turn on the caller's character.
func (s *SessionService) Create(ctx context.Context, caller models.User, input CreateSessionInput) (SessionView, error) {
	status := models.GameStatusStarted
	if input.GameStatus != "" {
		status = models.GameStatus(input.GameStatus)
		if !status.Valid() {
			return SessionView{}, ErrInvalidGameStatus
		}
	}

	return s.create(ctx, caller, input, status, nil)
}

// CreateWithRoomCode starts a session addressable by a fresh 6-digit room
// code. Codes are regenerated until one is free among unfinished sessions.
func (s *SessionService) CreateWithRoomCode(ctx context.Context, caller models.User, input CreateSessionInput) (SessionView, error) {
	return s.create(ctx, caller, input, models.GameStatusStarted, s.newRoomCode)
}

func (s *SessionService) create(
	ctx context.Context,
	caller models.User,
	input CreateSessionInput,
	status models.GameStatus,
	roomCode func(ctx context.Context) (string, error),
) (SessionView, error) {
	if input.CharacterID == "" {
		return SessionView{}, invalid("characterId is required")
	}

	character, err := s.characters.GetByID(ctx, input.CharacterID)
	if err != nil {
		return SessionView{}, err
	}

	state := models.InitialState(character)
	if input.CharacterState != nil {
		state = *input.CharacterState
	}
	state.ID = ids.New()
	if err := s.states.Create(ctx, state); err != nil {
		return SessionView{}, oops.In("session").With("character_id", character.ID).Wrap(err)
	}

	session := models.GameSession{
		ID:                     ids.New(),
		GameStatus:             status,
		CurrentTurnCharacterID: character.ID,
		Users: []models.Participant{{
			UserID:            caller.ID,
			CharacterStateID:  state.ID,
			CharacterSnapshot: character.Snapshot(s.now()),
		}},
		Spectators: []string{},
		Version:    1,
	}

	if roomCode == nil {
		err = s.sessions.Create(ctx, session)
	} else {
		err = s.createWithCode(ctx, &session, roomCode)
	}
	if err != nil {
		s.dropState(ctx, state.ID)
		return SessionView{}, s.wrap(err, session.ID)
	}

	variant := input.Variant
	if variant == "" {
		variant = "generic"
	}
	s.rec.SessionCreated(variant)

	event := s.log.Info().Str("session_id", session.ID).Str("user_id", caller.ID)
	if session.RoomCode != nil {
		event = event.Str("room_code", *session.RoomCode)
	}
	event.Msg("session created")

	created, err := s.sessions.GetByID(ctx, session.ID)
	if err != nil {
		return SessionView{}, s.wrap(err, session.ID)
	}
	return s.view(ctx, created, false)
}

func (s *SessionService) createWithCode(ctx context.Context, session *models.GameSession, roomCode func(ctx context.Context) (string, error)) error {
	backoff := retry.WithMaxRetries(codeAttempts, retry.NewConstant(time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		code, err := roomCode(ctx)
		if err != nil {
			return err
		}
		session.RoomCode = &code

		err = s.sessions.Create(ctx, *session)
		if errors.Is(err, repository.ErrDuplicate) {
			return retry.RetryableError(errRoomCodeTaken)
		}
		return err
	})
}

func (s *SessionService) newRoomCode(ctx context.Context) (string, error) {
	code, err := security.GenerateCode()
	if err != nil {
		return "", err
	}
	inUse, err := s.sessions.RoomCodeInUse(ctx, code)
	if err != nil {
		return "", err
	}
	if inUse {
		return "", retry.RetryableError(errRoomCodeTaken)
	}
	return code, nil
}

// Join adds the caller's character to a running session. A character whose
// name, class and avatar already appear among the participants is refused.
func (s *SessionService) Join(ctx context.Context, caller models.User, ref string, characterID string) (SessionView, error) {
	return s.admit(ctx, caller, ref, characterID, nil)
}

// AddPlayer is Join with an optional caller-supplied initial state. The
// state is stored before the membership checks and removed again when any
// of them fails.
func (s *SessionService) AddPlayer(ctx context.Context, caller models.User, ref string, characterID string, initial *models.CharacterState) (SessionView, error) {
	return s.admit(ctx, caller, ref, characterID, initial)
}

func (s *SessionService) admit(ctx context.Context, caller models.User, ref string, characterID string, initial *models.CharacterState) (SessionView, error) {
	if characterID == "" {
		return SessionView{}, invalid("characterId is required")
	}

	session, err := s.resolve(ctx, ref)
	if err != nil {
		return SessionView{}, err
	}
	character, err := s.characters.GetByID(ctx, characterID)
	if err != nil {
		return SessionView{}, err
	}

	// A supplied state is stored up front; a seeded one only after the
	// checks pass.
	var state models.CharacterState
	speculative := initial != nil
	if speculative {
		state = *initial
		state.ID = ids.New()
		if err := s.states.Create(ctx, state); err != nil {
			return SessionView{}, s.wrap(err, session.ID)
		}
	}

	fail := func(err error) (SessionView, error) {
		if state.ID != "" {
			s.dropState(ctx, state.ID)
		}
		return SessionView{}, err
	}

	if session.Finished() {
		return fail(ErrSessionFinished)
	}
	snapshot := character.Snapshot(s.now())
	if session.HasIdentity(snapshot) {
		return fail(ErrDuplicateParticipant)
	}

	if !speculative {
		state = models.InitialState(character)
		state.ID = ids.New()
		if err := s.states.Create(ctx, state); err != nil {
			return SessionView{}, s.wrap(err, session.ID)
		}
	}

	session.Users = append(session.Users, models.Participant{
		UserID:            caller.ID,
		CharacterStateID:  state.ID,
		CharacterSnapshot: snapshot,
	})

	updated, err := s.sessions.Update(ctx, session)
	if err != nil {
		return fail(s.wrap(err, session.ID))
	}

	s.log.Info().
		Str("session_id", session.ID).
		Str("user_id", caller.ID).
		Str("character_id", character.ID).
		Msg("participant joined")
	return s.view(ctx, updated, false)
}

// RemovePlayer drops every participant record of the caller. The removed
// records' CharacterStates are left in place.
func (s *SessionService) RemovePlayer(ctx context.Context, caller models.User, ref string) (SessionView, error) {
	session, err := s.resolve(ctx, ref)
	if err != nil {
		return SessionView{}, err
	}

	kept := make([]models.Participant, 0, len(session.Users))
	for _, p := range session.Users {
		if p.UserID != caller.ID {
			kept = append(kept, p)
		}
	}
	session.Users = kept

	updated, err := s.sessions.Update(ctx, session)
	if err != nil {
		return SessionView{}, s.wrap(err, session.ID)
	}
	return s.view(ctx, updated, false)
}

func (s *SessionService) AddSpectator(ctx context.Context, caller models.User, ref string) (SessionView, error) {
	session, err := s.resolve(ctx, ref)
	if err != nil {
		return SessionView{}, err
	}
	if session.Finished() {
		return SessionView{}, ErrSessionFinished
	}
	if session.HasSpectator(caller.ID) {
		return SessionView{}, ErrAlreadySpectator
	}

	session.Spectators = append(session.Spectators, caller.ID)

	updated, err := s.sessions.Update(ctx, session)
	if err != nil {
		return SessionView{}, s.wrap(err, session.ID)
	}
	return s.view(ctx, updated, false)
}

func (s *SessionService) RemoveSpectator(ctx context.Context, caller models.User, ref string) (SessionView, error) {
	session, err := s.resolve(ctx, ref)
	if err != nil {
		return SessionView{}, err
	}
	if session.Finished() {
		return SessionView{}, ErrSessionFinished
	}

	kept := make([]string, 0, len(session.Spectators))
	for _, id := range session.Spectators {
		if id != caller.ID {
			kept = append(kept, id)
		}
	}
	session.Spectators = kept

	updated, err := s.sessions.Update(ctx, session)
	if err != nil {
		return SessionView{}, s.wrap(err, session.ID)
	}
	return s.view(ctx, updated, false)
}

// StateUpdate carries exactly one of StateID, which re-points the caller's
// participant record at another state, or State, which replaces the
// referenced state document. Fields missing from State are zeroed.
type StateUpdate struct {
	StateID string
	State   *models.CharacterState
}

func (s *SessionService) UpdateCharacterState(ctx context.Context, caller models.User, ref string, update StateUpdate) (SessionView, error) {
	if update.StateID == "" && update.State == nil {
		return SessionView{}, invalid("characterState is required")
	}

	session, err := s.resolve(ctx, ref)
	if err != nil {
		return SessionView{}, err
	}
	if session.Finished() {
		return SessionView{}, ErrSessionFinished
	}

	idx := -1
	for i, p := range session.Users {
		if p.UserID == caller.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return SessionView{}, ErrNotParticipant
	}

	if update.StateID != "" {
		if _, err := s.states.GetByID(ctx, update.StateID); err != nil {
			return SessionView{}, err
		}
		session.Users[idx].CharacterStateID = update.StateID
		updated, err := s.sessions.Update(ctx, session)
		if err != nil {
			return SessionView{}, s.wrap(err, session.ID)
		}
		return s.view(ctx, updated, false)
	}

	state := *update.State
	state.ID = session.Users[idx].CharacterStateID
	if err := s.states.Update(ctx, state); err != nil {
		return SessionView{}, s.wrap(err, session.ID)
	}
	return s.view(ctx, session, false)
}

type BulkStateUpdate struct {
	CurrentTurnCharacterID *string
	Patches                []StatePatch
}

// UpdateCharacterStates merges each patch into its state and then moves the
// turn pointer when a non-empty character id is given. Patches naming a state
// this session does not reference are skipped. The turn only moves once every
// patch has been written.
func (s *SessionService) UpdateCharacterStates(ctx context.Context, caller models.User, ref string, update BulkStateUpdate) (SessionView, error) {
	session, err := s.resolve(ctx, ref)
	if err != nil {
		return SessionView{}, err
	}
	if session.Finished() {
		return SessionView{}, ErrSessionFinished
	}
	if _, ok := session.Participant(caller.ID); !ok {
		return SessionView{}, ErrNotParticipant
	}

	targets := make([]string, 0, len(update.Patches))
	for _, p := range update.Patches {
		if session.ReferencesState(p.ID) {
			targets = append(targets, p.ID)
		}
	}

	states, err := s.states.GetMany(ctx, targets)
	if err != nil {
		return SessionView{}, s.wrap(err, session.ID)
	}

	for _, p := range update.Patches {
		state, ok := states[p.ID]
		if !ok {
			continue
		}
		p.Patch.Apply(&state)
		if err := s.states.Update(ctx, state); err != nil {
			if errors.Is(err, repository.ErrCharacterStateNotFound) {
				continue
			}
			return SessionView{}, s.wrap(err, session.ID)
		}
		states[p.ID] = state
	}

	if turn := update.CurrentTurnCharacterID; turn != nil && *turn != "" && *turn != session.CurrentTurnCharacterID {
		session.CurrentTurnCharacterID = *turn
		updated, err := s.sessions.Update(ctx, session)
		if err != nil {
			return SessionView{}, s.wrap(err, session.ID)
		}
		session = updated
	}

	return s.view(ctx, session, false)
}

// End marks the session finished and deletes every state it references.
// Ending a finished session changes nothing.
func (s *SessionService) End(ctx context.Context, caller models.User, ref string) (SessionView, error) {
	session, err := s.resolve(ctx, ref)
	if err != nil {
		return SessionView{}, err
	}
	if session.Finished() {
		return s.view(ctx, session, false)
	}

	stateIDs := session.StateIDs()
	session.GameStatus = models.GameStatusFinished

	updated, err := s.sessions.Update(ctx, session)
	if err != nil {
		return SessionView{}, s.wrap(err, session.ID)
	}
	if err := s.states.DeleteMany(ctx, stateIDs); err != nil {
		return SessionView{}, s.wrap(err, session.ID)
	}

	s.log.Info().Str("session_id", session.ID).Str("user_id", caller.ID).Msg("session ended")
	return s.view(ctx, updated, false)
}

// Delete removes the session and its states. Only participants and admins
// may delete.
func (s *SessionService) Delete(ctx context.Context, caller models.User, ref string) error {
	session, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}

	if _, ok := session.Participant(caller.ID); !ok && !caller.IsAdmin {
		return ErrForbidden
	}

	stateIDs := session.StateIDs()
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return s.wrap(err, session.ID)
	}
	if err := s.states.DeleteMany(ctx, stateIDs); err != nil {
		return s.wrap(err, session.ID)
	}

	s.log.Info().Str("session_id", session.ID).Str("user_id", caller.ID).Msg("session deleted")
	return nil
}

// Get returns the session with states inline. withMaxHealth adds a
// maxHealth figure per participant.
func (s *SessionService) Get(ctx context.Context, ref string, withMaxHealth bool) (SessionView, error) {
	session, err := s.resolve(ctx, ref)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(ctx, session, withMaxHealth)
}
