package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battlearena/internal/config"
	"battlearena/internal/models"
	"battlearena/internal/repository"
	"battlearena/internal/service"
)

var (
	player = models.User{ID: "u1", Email: "ayla@example.com", IsActive: true}
	other  = models.User{ID: "u2", Email: "bram@example.com", IsActive: true}
	admin  = models.User{ID: "a1", Email: "admin", IsActive: true, IsAdmin: true}
)

type stubAccounts struct {
	Accounts
	registerErr error
	loginErr    error
	users       map[string]models.User
}

func (s *stubAccounts) Authenticate(_ context.Context, bearer string) (models.User, error) {
	switch bearer {
	case "player":
		return player, nil
	case "admin":
		return admin, nil
	}
	return models.User{}, service.ErrUnauthenticated
}

func (s *stubAccounts) Register(_ context.Context, input service.RegisterInput) (models.User, error) {
	return models.User{Email: input.Email}, s.registerErr
}

func (s *stubAccounts) Login(context.Context, string, string) (service.LoginResult, error) {
	if s.loginErr != nil {
		return service.LoginResult{}, s.loginErr
	}
	return service.LoginResult{Token: "jwt", User: player}, nil
}

func (s *stubAccounts) Get(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *stubAccounts) List(context.Context) ([]models.User, error) {
	return []models.User{player, other}, nil
}

type sessionCall struct {
	caller        models.User
	ref           string
	withMaxHealth bool
	create        service.CreateSessionInput
	state         service.StateUpdate
	bulk          service.BulkStateUpdate
}

type stubSessions struct {
	Sessions
	calls []sessionCall
	err   error
}

func (s *stubSessions) record(call sessionCall) (service.SessionView, error) {
	s.calls = append(s.calls, call)
	if s.err != nil {
		return service.SessionView{}, s.err
	}
	return service.SessionView{ID: "s1", GameStatus: models.GameStatusStarted}, nil
}

func (s *stubSessions) Create(_ context.Context, caller models.User, input service.CreateSessionInput) (service.SessionView, error) {
	return s.record(sessionCall{caller: caller, create: input})
}

func (s *stubSessions) Get(_ context.Context, ref string, withMaxHealth bool) (service.SessionView, error) {
	return s.record(sessionCall{ref: ref, withMaxHealth: withMaxHealth})
}

func (s *stubSessions) End(_ context.Context, caller models.User, ref string) (service.SessionView, error) {
	return s.record(sessionCall{caller: caller, ref: ref})
}

func (s *stubSessions) UpdateCharacterState(_ context.Context, caller models.User, ref string, update service.StateUpdate) (service.SessionView, error) {
	return s.record(sessionCall{caller: caller, ref: ref, state: update})
}

func (s *stubSessions) UpdateCharacterStates(_ context.Context, caller models.User, ref string, update service.BulkStateUpdate) (service.SessionView, error) {
	return s.record(sessionCall{caller: caller, ref: ref, bulk: update})
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubCache struct{ err error }

func (c stubCache) Ping(context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(context.Background())
	if c.err != nil {
		cmd.SetErr(c.err)
	}
	return cmd
}

func (stubCache) SetNX(context.Context, string, interface{}, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

type fixture struct {
	router   *gin.Engine
	accounts *stubAccounts
	sessions *stubSessions
}

func newFixture(t *testing.T, deps Deps) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := fixture{
		accounts: &stubAccounts{users: map[string]models.User{player.ID: player, other.ID: other}},
		sessions: &stubSessions{},
	}
	deps.Log = zerolog.Nop()
	if deps.Config == nil {
		deps.Config = &config.AppConfig{Environment: "test"}
	}
	deps.Accounts = f.accounts
	deps.Sessions = f.sessions
	if deps.DB == nil {
		deps.DB = stubPinger{}
	}
	if deps.Cache == nil {
		deps.Cache = stubCache{}
	}

	f.router = gin.New()
	NewHandlerSet(deps).Register(f.router.Group("/api"))
	return f
}

func (f fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidClass, http.StatusBadRequest},
		{service.ErrDuplicateParticipant, http.StatusBadRequest},
		{service.ErrSessionFinished, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusBadRequest},
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{service.ErrAccountInactive, http.StatusForbidden},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrNotParticipant, http.StatusNotFound},
		{oops.In("session").With("session_id", "s1").Wrap(repository.ErrSessionNotFound), http.StatusNotFound},
		{fmt.Errorf("join: %w", repository.ErrSessionConflict), http.StatusConflict},
		{service.ErrEmailTaken, http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(http.MethodPost, "/api/v1/users/register", "", gin.H{"email": "c@example.com", "password": "pw"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "c@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.accounts.registerErr = service.ErrEmailTaken
	rec = f.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "c@example.com", "password": "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.ErrEmailTaken.Error(), decodeMessage(t, rec))

	rec = f.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ayla@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "jwt", login.Token)
	assert.Equal(t, player.ID, login.User.ID)

	f.accounts.loginErr = service.ErrAccountInactive
	rec = f.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ayla@example.com", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserAccess(t *testing.T) {
	f := newFixture(t, Deps{})

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/users/u1", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/users/u1", "player", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/users/u2", "player", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/users/u2", "admin", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/users/ghost", "admin", nil).Code)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/users", "player", nil).Code)
	rec := f.do(http.MethodGet, "/api/v1/users", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)
	assert.NotContains(t, rec.Body.String(), "assword")
}

func TestSessionRoutesRequireAuth(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(http.MethodPost, "/api/v1/sessions/create", "", gin.H{"characterId": "c1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Please authenticate.", decodeMessage(t, rec))
	assert.Empty(t, f.sessions.calls)
}

func TestCreateSessionVariants(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(http.MethodPost, "/api/v1/sessions/create", "player", gin.H{"characterId": "c1", "gameStatus": "ongoing"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(http.MethodPost, "/api/v1/unreal/create", "player", gin.H{
		"characterId":    "c1",
		"characterState": gin.H{"health": 90, "state": "idle"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, f.sessions.calls, 2)
	assert.Equal(t, variantGeneric, f.sessions.calls[0].create.Variant)
	assert.Equal(t, "ongoing", f.sessions.calls[0].create.GameStatus)
	assert.Equal(t, player.ID, f.sessions.calls[0].caller.ID)

	assert.Equal(t, variantUnreal, f.sessions.calls[1].create.Variant)
	require.NotNil(t, f.sessions.calls[1].create.CharacterState)
	assert.Equal(t, 90, f.sessions.calls[1].create.CharacterState.Health)

	rec = f.do(http.MethodPost, "/api/v1/sessions/create", "player", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSessionMaxHealthOnlyForGameEngine(t *testing.T) {
	f := newFixture(t, Deps{})

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/sessions/123456", "player", nil).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/ar/s1", "player", nil).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/unreal/s1", "player", nil).Code)

	require.Len(t, f.sessions.calls, 3)
	assert.Equal(t, "123456", f.sessions.calls[0].ref)
	assert.False(t, f.sessions.calls[0].withMaxHealth)
	assert.False(t, f.sessions.calls[1].withMaxHealth)
	assert.True(t, f.sessions.calls[2].withMaxHealth)
}

func TestEndSessionPaths(t *testing.T) {
	f := newFixture(t, Deps{})

	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/v1/sessions/s1/end", "player", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/v1/unreal/end/s2", "player", nil).Code)

	require.Len(t, f.sessions.calls, 2)
	assert.Equal(t, "s1", f.sessions.calls[0].ref)
	assert.Equal(t, "s2", f.sessions.calls[1].ref)
}

func TestUpdateCharacterStateShapes(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(http.MethodPut, "/api/v1/sessions/s1/update-state", "player", `{"characterState":"state-9"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodPut, "/api/v1/sessions/s1/update-state", "player", `{"characterState":{"health":12,"state":"stunned"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.sessions.calls, 2)
	assert.Equal(t, "state-9", f.sessions.calls[0].state.StateID)
	assert.Nil(t, f.sessions.calls[0].state.State)
	require.NotNil(t, f.sessions.calls[1].state.State)
	assert.Equal(t, 12, f.sessions.calls[1].state.State.Health)
	assert.Equal(t, "stunned", f.sessions.calls[1].state.State.State)

	for _, body := range []string{`{"characterState":42}`, `{}`, `{"characterState":null}`} {
		rec = f.do(http.MethodPut, "/api/v1/sessions/s1/update-state", "player", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Len(t, f.sessions.calls, 2)
}

func TestUpdateCharacterStatesDecodesBothShapes(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(http.MethodPut, "/api/v1/unreal/s1/update-states", "player",
		`{"currentTurnCharacterId":"c2","characterStates":[{"_id":"st1","health":40}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodPut, "/api/v1/sessions/s1/update-states", "player",
		`{"characterStates":{"st2":{"stunCount":1},"st1":{"heal":5}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.sessions.calls, 2)
	first := f.sessions.calls[0].bulk
	require.NotNil(t, first.CurrentTurnCharacterID)
	assert.Equal(t, "c2", *first.CurrentTurnCharacterID)
	require.Len(t, first.Patches, 1)
	assert.Equal(t, "st1", first.Patches[0].ID)
	require.NotNil(t, first.Patches[0].Patch.Health)
	assert.Equal(t, 40, *first.Patches[0].Patch.Health)

	second := f.sessions.calls[1].bulk
	assert.Nil(t, second.CurrentTurnCharacterID)
	require.Len(t, second.Patches, 2)
	assert.Equal(t, "st1", second.Patches[0].ID)
	assert.Equal(t, "st2", second.Patches[1].ID)

	rec = f.do(http.MethodPut, "/api/v1/sessions/s1/update-states", "player", `{"characterStates":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionErrorsSurfaceAsMessages(t *testing.T) {
	f := newFixture(t, Deps{})

	f.sessions.err = oops.In("session").With("session_id", "s1").Wrap(repository.ErrSessionConflict)
	rec := f.do(http.MethodPut, "/api/v1/sessions/s1/end", "player", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, repository.ErrSessionConflict.Error(), decodeMessage(t, rec))

	f.sessions.err = errors.New("pool closed")
	rec = f.do(http.MethodGet, "/api/v1/sessions/s1", "player", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "pool closed", decodeMessage(t, rec))
}

func TestUnrealSignatureOptIn(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Security.RequireSignature = true
	cfg.Security.SignatureSecret = "secret"
	f := newFixture(t, Deps{Config: cfg})

	rec := f.do(http.MethodGet, "/api/v1/unreal/s1", "player", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/sessions/s1", "player", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Deps{})
	rec := f.do(http.MethodGet, "/api/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	f = newFixture(t, Deps{Cache: stubCache{err: errors.New("down")}})
	rec = f.do(http.MethodGet, "/api/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Database)
	assert.Equal(t, "error", body.Cache)
}
