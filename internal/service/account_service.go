package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"battlearena/internal/config"
	"battlearena/internal/ids"
	"battlearena/internal/models"
	"battlearena/internal/repository"
	"battlearena/internal/security"
)

const (
	codeAttempts        = 10
	adminPasswordLength = 16
)

var errCodeTaken = errors.New("code already in use")

type AccountService struct {
	users  UserStore
	tokens RecoveryTokenStore
	mailer Mailer
	rec    Recorder
	cfg    config.SecurityConfig
	log    zerolog.Logger
	now    func() time.Time
}

func NewAccountService(
	users UserStore,
	tokens RecoveryTokenStore,
	mailer Mailer,
	rec Recorder,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *AccountService {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &AccountService{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		rec:    rec,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

type RegisterInput struct {
	Email    string
	Password string
}

// Register creates an inactive account and mails its verification code.
// Accounts never verified are removed by SweepUnverified once the code
// expires.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return models.User{}, invalid("email and password are required")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, oops.In("account").With("email", email).Wrap(err)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		IsActive:     false,
		Characters:   []string{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, oops.In("account").With("email", email).Wrap(err)
	}

	token, err := s.issueToken(ctx, user.ID, models.TokenPurposeVerify, s.cfg.VerificationTTL)
	if err != nil {
		return models.User{}, err
	}

	s.send(ctx, user, "Verify your account",
		fmt.Sprintf("Your verification code is %s. It expires in %s.", token.Token, s.cfg.VerificationTTL))

	s.rec.AccountRegistered()
	s.log.Info().Str("user_id", user.ID).Msg("account registered")
	return user, nil
}

// issueToken stores a fresh 6-digit code, regenerating it while it collides
// with an existing one.
func (s *AccountService) issueToken(ctx context.Context, userID string, purpose models.TokenPurpose, ttl time.Duration) (models.RecoveryToken, error) {
	backoff := retry.WithMaxRetries(codeAttempts, retry.NewConstant(time.Millisecond))

	token, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (models.RecoveryToken, error) {
		code, err := security.GenerateCode()
		if err != nil {
			return models.RecoveryToken{}, err
		}

		exists, err := s.tokens.Exists(ctx, code)
		if err != nil {
			return models.RecoveryToken{}, err
		}
		if exists {
			return models.RecoveryToken{}, retry.RetryableError(errCodeTaken)
		}

		token := models.RecoveryToken{
			ID:        ids.New(),
			UserID:    userID,
			Token:     code,
			Purpose:   purpose,
			ExpiresAt: s.now().Add(ttl),
		}
		if err := s.tokens.Create(ctx, token); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return models.RecoveryToken{}, retry.RetryableError(errCodeTaken)
			}
			return models.RecoveryToken{}, err
		}
		return token, nil
	})
	if err != nil {
		return models.RecoveryToken{}, oops.In("account").With("user_id", userID).With("purpose", purpose).Wrap(err)
	}
	return token, nil
}

func (s *AccountService) send(ctx context.Context, user models.User, subject string, body string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("mail enqueue failed")
	}
}

type LoginResult struct {
	Token string
	User  models.User
}

func (s *AccountService) Login(ctx context.Context, email string, password string) (LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return LoginResult{}, err
	}

	if !user.IsActive {
		return LoginResult{}, ErrAccountInactive
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := security.GenerateIdentityToken(s.cfg.JWTSecret, user.ID, s.cfg.JWTTTL)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: user}, nil
}

// Authenticate resolves a bearer token to the live user it names.
func (s *AccountService) Authenticate(ctx context.Context, bearer string) (models.User, error) {
	claims, err := security.ParseIdentityToken(bearer, s.cfg.JWTSecret)
	if err != nil {
		return models.User{}, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUnauthenticated
		}
		return models.User{}, err
	}
	return user, nil
}

// checkToken loads a code of the given purpose and confirms it belongs to
// email when email is set.
func (s *AccountService) checkToken(ctx context.Context, code string, purpose models.TokenPurpose, email string) (models.RecoveryToken, models.User, error) {
	token, err := s.tokens.FindByToken(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRecoveryTokenNotFound) {
			return models.RecoveryToken{}, models.User{}, ErrInvalidToken
		}
		return models.RecoveryToken{}, models.User{}, err
	}
	if token.Purpose != purpose {
		return models.RecoveryToken{}, models.User{}, ErrInvalidToken
	}
	if token.Expired(s.now()) {
		return models.RecoveryToken{}, models.User{}, ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.RecoveryToken{}, models.User{}, ErrInvalidToken
		}
		return models.RecoveryToken{}, models.User{}, err
	}
	if email != "" && user.Email != normalizeEmail(email) {
		return models.RecoveryToken{}, models.User{}, ErrEmailMismatch
	}
	return token, user, nil
}

// Activate consumes a verification code and enables the account.
func (s *AccountService) Activate(ctx context.Context, code string, email string) error {
	if normalizeEmail(email) == "" {
		return invalid("email is required")
	}

	token, user, err := s.checkToken(ctx, code, models.TokenPurposeVerify, email)
	if err != nil {
		return err
	}

	if err := s.users.SetActive(ctx, user.ID, true); err != nil {
		return oops.In("account").With("user_id", user.ID).Wrap(err)
	}
	if err := s.tokens.Delete(ctx, token.ID); err != nil {
		return oops.In("account").With("user_id", user.ID).Wrap(err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("account activated")
	return nil
}

// VerifyCode checks a code against email without consuming it.
func (s *AccountService) VerifyCode(ctx context.Context, code string, email string) error {
	token, err := s.tokens.FindByToken(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRecoveryTokenNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	_, _, err = s.checkToken(ctx, code, token.Purpose, email)
	return err
}

func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	token, err := s.issueToken(ctx, user.ID, models.TokenPurposeReset, s.cfg.ResetTTL)
	if err != nil {
		return err
	}

	s.send(ctx, user, "Reset your password",
		fmt.Sprintf("Your password reset code is %s. It expires in %s.", token.Token, s.cfg.ResetTTL))
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, code string, newPassword string) error {
	if newPassword == "" {
		return invalid("password is required")
	}

	token, user, err := s.checkToken(ctx, code, models.TokenPurposeReset, "")
	if err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return oops.In("account").With("user_id", user.ID).Wrap(err)
	}
	if err := s.tokens.Delete(ctx, token.ID); err != nil {
		return oops.In("account").With("user_id", user.ID).Wrap(err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func (s *AccountService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

func (s *AccountService) Get(ctx context.Context, id string) (models.User, error) {
	return s.users.GetByID(ctx, id)
}

type CreateUserInput struct {
	Email      string
	Password   string
	IsAdmin    bool
	IsActive   *bool
	Characters []string
}

// Create adds an account on behalf of an admin. Accounts created this way
// are active unless told otherwise.
func (s *AccountService) Create(ctx context.Context, input CreateUserInput) (models.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return models.User{}, invalid("email and password are required")
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	characters := input.Characters
	if characters == nil {
		characters = []string{}
	}

	user := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      input.IsAdmin,
		IsActive:     active,
		Characters:   characters,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return user, nil
}

// UserPatch lists the fields an admin may change; nil fields are kept.
type UserPatch struct {
	Email      *string
	Password   *string
	IsAdmin    *bool
	IsActive   *bool
	Characters *[]string
}

func (s *AccountService) Update(ctx context.Context, id string, patch UserPatch) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return models.User{}, invalid("email must not be empty")
		}
		user.Email = email
	}
	if patch.Password != nil {
		hash, err := security.HashPassword(*patch.Password)
		if err != nil {
			return models.User{}, invalid("%s", err.Error())
		}
		user.PasswordHash = hash
	}
	if patch.IsAdmin != nil {
		user.IsAdmin = *patch.IsAdmin
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	if patch.Characters != nil {
		user.Characters = *patch.Characters
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *AccountService) Delete(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

// EnsureAdmin creates or refreshes the bootstrap admin account. When no
// password is configured a random one is generated and returned.
func (s *AccountService) EnsureAdmin(ctx context.Context, email string, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", invalid("admin email is required")
	}

	generated := ""
	if password == "" {
		var err error
		password, err = security.GeneratePassword(adminPasswordLength)
		if err != nil {
			return "", err
		}
		generated = password
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		user = models.User{
			ID:           ids.New(),
			Email:        email,
			PasswordHash: hash,
			IsAdmin:      true,
			IsActive:     true,
			Characters:   []string{},
		}
		if err := s.users.Create(ctx, user); err != nil {
			return "", oops.In("account").With("email", email).Wrap(err)
		}
	case err != nil:
		return "", oops.In("account").With("email", email).Wrap(err)
	default:
		user.PasswordHash = hash
		user.IsAdmin = true
		user.IsActive = true
		if err := s.users.Update(ctx, user); err != nil {
			return "", oops.In("account").With("email", email).Wrap(err)
		}
	}

	return generated, nil
}

// SweepUnverified deletes inactive accounts whose verification code expired
// before now.
func (s *AccountService) SweepUnverified(ctx context.Context, now time.Time) (int64, error) {
	removed, err := s.users.DeleteUnverified(ctx, now)
	if err != nil {
		return 0, oops.In("account").With("operation", "sweep unverified").Wrap(err)
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("unverified accounts swept")
	}
	return removed, nil
}
