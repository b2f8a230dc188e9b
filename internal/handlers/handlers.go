package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"battlearena/internal/config"
	"battlearena/internal/middleware"
	"battlearena/internal/models"
	"battlearena/internal/service"
)

type Accounts interface {
	middleware.Authenticator
	Register(ctx context.Context, input service.RegisterInput) (models.User, error)
	Login(ctx context.Context, email string, password string) (service.LoginResult, error)
	Activate(ctx context.Context, code string, email string) error
	VerifyCode(ctx context.Context, code string, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, code string, newPassword string) error
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id string) (models.User, error)
	Create(ctx context.Context, input service.CreateUserInput) (models.User, error)
	Update(ctx context.Context, id string, patch service.UserPatch) (models.User, error)
	Delete(ctx context.Context, id string) error
}

type Characters interface {
	List(ctx context.Context, owner models.User) ([]models.Character, error)
	Get(ctx context.Context, owner models.User, id string) (models.Character, error)
	Create(ctx context.Context, owner models.User, input service.CreateCharacterInput) (models.Character, error)
	Delete(ctx context.Context, owner models.User, id string) error
}

type Sessions interface {
	Create(ctx context.Context, caller models.User, input service.CreateSessionInput) (service.SessionView, error)
	CreateWithRoomCode(ctx context.Context, caller models.User, input service.CreateSessionInput) (service.SessionView, error)
	Join(ctx context.Context, caller models.User, ref string, characterID string) (service.SessionView, error)
	AddPlayer(ctx context.Context, caller models.User, ref string, characterID string, initial *models.CharacterState) (service.SessionView, error)
	RemovePlayer(ctx context.Context, caller models.User, ref string) (service.SessionView, error)
	AddSpectator(ctx context.Context, caller models.User, ref string) (service.SessionView, error)
	RemoveSpectator(ctx context.Context, caller models.User, ref string) (service.SessionView, error)
	UpdateCharacterState(ctx context.Context, caller models.User, ref string, update service.StateUpdate) (service.SessionView, error)
	UpdateCharacterStates(ctx context.Context, caller models.User, ref string, update service.BulkStateUpdate) (service.SessionView, error)
	End(ctx context.Context, caller models.User, ref string) (service.SessionView, error)
	Delete(ctx context.Context, caller models.User, ref string) error
	Get(ctx context.Context, ref string, withMaxHealth bool) (service.SessionView, error)
}

type Avatars interface {
	Upload(ctx context.Context, user models.User, input service.AvatarUpload) (service.Avatar, error)
}

// Cache is the slice of the redis client the handlers use. *redis.Client
// satisfies it.
type Cache interface {
	middleware.NonceStore
	Ping(ctx context.Context) *redis.StatusCmd
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Log        zerolog.Logger
	Config     *config.AppConfig
	Accounts   Accounts
	Characters Characters
	Sessions   Sessions
	Avatars    Avatars
	DB         Pinger
	Cache      Cache
}

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	accounts   Accounts
	characters Characters
	sessions   Sessions
	avatars    Avatars
	db         Pinger
	cache      Cache
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:        deps.Log,
		cfg:        deps.Config,
		accounts:   deps.Accounts,
		characters: deps.Characters,
		sessions:   deps.Sessions,
		avatars:    deps.Avatars,
		db:         deps.DB,
		cache:      deps.Cache,
	}
}

// Session client variants, used as the metrics label for created sessions.
const (
	variantGeneric = "generic"
	variantCV      = "cv"
	variantUnreal  = "unreal"
)

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	auth := middleware.Auth(h.accounts)
	v1 := router.Group("/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.RegisterAccount)
	authGroup.POST("/login", h.Login)

	users := v1.Group("/users")
	{
		users.POST("/register", h.RegisterAccount)
		users.POST("/activate/:token", h.Activate)
		users.POST("/forgot-password", h.ForgotPassword)
		users.POST("/reset-password/:token", h.ResetPassword)
		users.GET("/verify-code/:token", h.VerifyCode)

		users.GET("/:id", auth, h.GetUser)

		admin := users.Group("", auth, middleware.RequireAdmin())
		admin.GET("", h.ListUsers)
		admin.POST("", h.CreateUser)
		admin.PUT("/:id", h.UpdateUser)
		admin.DELETE("/:id", h.DeleteUser)
	}

	characters := v1.Group("/characters", auth)
	{
		characters.GET("", h.ListCharacters)
		characters.POST("", h.CreateCharacter)
		characters.GET("/:id", h.GetCharacter)
		characters.DELETE("/:id", h.DeleteCharacter)
	}

	v1.POST("/avatars", auth, h.UploadAvatar)

	sessions := v1.Group("/sessions", auth)
	{
		sessions.POST("/create", h.CreateSession(variantGeneric))
		sessions.POST("/create-with-room-code", h.CreateSessionWithRoomCode(variantGeneric))
		sessions.GET("/:sessionId", h.GetSession(false))
		sessions.POST("/:sessionId/join", h.JoinSession)
		sessions.PUT("/:sessionId/end", h.EndSession)
		sessions.PUT("/end/:sessionId", h.EndSession)
		sessions.DELETE("/:sessionId", h.DeleteSession)
		sessions.POST("/:sessionId/add-player", h.AddPlayer)
		sessions.DELETE("/:sessionId/remove-player", h.RemovePlayer)
		sessions.POST("/:sessionId/add-spectator", h.AddSpectator)
		sessions.DELETE("/:sessionId/remove-spectator", h.RemoveSpectator)
		sessions.PUT("/:sessionId/update-state", h.UpdateCharacterState)
		sessions.PUT("/:sessionId/update-states", h.UpdateCharacterStates)
	}

	ar := v1.Group("/ar", auth)
	{
		ar.GET("/:sessionId", h.GetSession(false))
		ar.POST("/:sessionId/add-spectator", h.AddSpectator)
		ar.DELETE("/:sessionId/remove-spectator", h.RemoveSpectator)
	}

	cv := v1.Group("/cv", auth)
	{
		cv.POST("/create", h.CreateSessionWithRoomCode(variantCV))
		cv.POST("/:sessionId/join", h.JoinSession)
	}

	unreal := v1.Group("/unreal", auth)
	if h.cfg.Security.RequireSignature {
		unreal.Use(middleware.Signature(h.cfg.Security.SignatureSecret, h.cache))
	}
	{
		unreal.POST("/create", h.CreateSession(variantUnreal))
		unreal.GET("/:sessionId", h.GetSession(true))
		unreal.PUT("/:sessionId/end", h.EndSession)
		unreal.PUT("/end/:sessionId", h.EndSession)
		unreal.DELETE("/:sessionId", h.DeleteSession)
		unreal.POST("/:sessionId/add-player", h.AddPlayer)
		unreal.DELETE("/:sessionId/remove-player", h.RemovePlayer)
		unreal.PUT("/:sessionId/update-states", h.UpdateCharacterStates)
	}
}
