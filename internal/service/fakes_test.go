package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"battlearena/internal/models"
	"battlearena/internal/repository"
)

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]models.User
	sweptAt time.Time
	swept   int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]models.User, 0, len(f.byID))
	for _, u := range f.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeUsers) Update(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) mutate(id string, fn func(*models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) SetActive(_ context.Context, id string, active bool) error {
	return f.mutate(id, func(u *models.User) { u.IsActive = active })
}

func (f *fakeUsers) SetPasswordHash(_ context.Context, id string, hash []byte) error {
	return f.mutate(id, func(u *models.User) { u.PasswordHash = hash })
}

func (f *fakeUsers) AppendCharacter(_ context.Context, id string, characterID string) error {
	return f.mutate(id, func(u *models.User) { u.Characters = append(u.Characters, characterID) })
}

func (f *fakeUsers) RemoveCharacter(_ context.Context, id string, characterID string) error {
	return f.mutate(id, func(u *models.User) {
		kept := []string{}
		for _, c := range u.Characters {
			if c != characterID {
				kept = append(kept, c)
			}
		}
		u.Characters = kept
	})
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) DeleteUnverified(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweptAt = now
	return f.swept, nil
}

type fakeTokens struct {
	mu      sync.Mutex
	byToken map[string]models.RecoveryToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byToken: map[string]models.RecoveryToken{}}
}

func (f *fakeTokens) Create(_ context.Context, token models.RecoveryToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byToken[token.Token]; ok {
		return repository.ErrDuplicate
	}
	f.byToken[token.Token] = token
	return nil
}

func (f *fakeTokens) Exists(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byToken[token]
	return ok, nil
}

func (f *fakeTokens) FindByToken(_ context.Context, token string) (models.RecoveryToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byToken[token]
	if !ok {
		return models.RecoveryToken{}, repository.ErrRecoveryTokenNotFound
	}
	return t, nil
}

func (f *fakeTokens) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, t := range f.byToken {
		if t.ID == id {
			delete(f.byToken, k)
		}
	}
	return nil
}

func (f *fakeTokens) forUser(userID string, purpose models.TokenPurpose) (models.RecoveryToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byToken {
		if t.UserID == userID && t.Purpose == purpose {
			return t, true
		}
	}
	return models.RecoveryToken{}, false
}

type fakeCharacters struct {
	mu   sync.Mutex
	byID map[string]models.Character
}

func newFakeCharacters(cs ...models.Character) *fakeCharacters {
	f := &fakeCharacters{byID: map[string]models.Character{}}
	for _, c := range cs {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCharacters) Create(_ context.Context, c models.Character) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[c.ID] = c
	return nil
}

func (f *fakeCharacters) GetByID(_ context.Context, id string) (models.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return models.Character{}, repository.ErrCharacterNotFound
	}
	return c, nil
}

func (f *fakeCharacters) ListByIDs(_ context.Context, ids []string) ([]models.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Character{}
	for _, id := range ids {
		if c, ok := f.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCharacters) FindByIdentity(_ context.Context, name string, class models.CharacterClass, avatar string) (models.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.CharacterName == name && c.Class == class && c.Avatar == avatar {
			return c, nil
		}
	}
	return models.Character{}, repository.ErrCharacterNotFound
}

func (f *fakeCharacters) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

type fakeStates struct {
	mu        sync.Mutex
	byID      map[string]models.CharacterState
	updateErr error
}

func newFakeStates() *fakeStates {
	return &fakeStates{byID: map[string]models.CharacterState{}}
}

func (f *fakeStates) Create(_ context.Context, s models.CharacterState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[s.ID] = s
	return nil
}

func (f *fakeStates) GetByID(_ context.Context, id string) (models.CharacterState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return models.CharacterState{}, repository.ErrCharacterStateNotFound
	}
	return s, nil
}

func (f *fakeStates) GetMany(_ context.Context, ids []string) (map[string]models.CharacterState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]models.CharacterState{}
	for _, id := range ids {
		if s, ok := f.byID[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeStates) Update(_ context.Context, s models.CharacterState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[s.ID]; !ok {
		return repository.ErrCharacterStateNotFound
	}
	f.byID[s.ID] = s
	return nil
}

func (f *fakeStates) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeStates) DeleteMany(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.byID, id)
	}
	return nil
}

func (f *fakeStates) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

// fakeSessions mirrors the version check of the postgres repository.
type fakeSessions struct {
	mu   sync.Mutex
	byID map[string]models.GameSession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: map[string]models.GameSession{}}
}

func cloneSession(s models.GameSession) models.GameSession {
	s.Users = append([]models.Participant{}, s.Users...)
	s.Spectators = append([]string{}, s.Spectators...)
	return s
}

func (f *fakeSessions) Create(_ context.Context, s models.GameSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.RoomCode != nil {
		for _, existing := range f.byID {
			if existing.RoomCode != nil && *existing.RoomCode == *s.RoomCode && !existing.Finished() {
				return repository.ErrDuplicate
			}
		}
	}
	s.Version = 1
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	f.byID[s.ID] = cloneSession(s)
	return nil
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return models.GameSession{}, repository.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (f *fakeSessions) FindActiveByRoomCode(_ context.Context, roomCode string) (models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.RoomCode != nil && *s.RoomCode == roomCode && !s.Finished() {
			return cloneSession(s), nil
		}
	}
	return models.GameSession{}, repository.ErrSessionNotFound
}

func (f *fakeSessions) RoomCodeInUse(ctx context.Context, roomCode string) (bool, error) {
	_, err := f.FindActiveByRoomCode(ctx, roomCode)
	return err == nil, nil
}

func (f *fakeSessions) Update(_ context.Context, s models.GameSession) (models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[s.ID]
	if !ok || stored.Version != s.Version {
		return models.GameSession{}, repository.ErrSessionConflict
	}
	s.Version++
	s.UpdatedAt = time.Now()
	f.byID[s.ID] = cloneSession(s)
	return cloneSession(s), nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(f.byID, id)
	return nil
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to string, subject string, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type countingRecorder struct {
	mu       sync.Mutex
	accounts int
	sessions map[string]int
}

func (r *countingRecorder) AccountRegistered() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts++
}

func (r *countingRecorder) SessionCreated(variant string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions == nil {
		r.sessions = map[string]int{}
	}
	r.sessions[variant]++
}
