package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"stocks-simulator/database"
	"stocks-simulator/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID    uint
	TokenID   string
	ExpiresAt time.Time
}

// Session is a freshly issued identity token.
type Session struct {
	Token     string    `json:"token"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

type Options struct {
	Secret       string
	TTL          time.Duration
	StartingCash decimal.Decimal
	BcryptCost   int // defaults to bcrypt.DefaultCost
}

// Service registers users and issues and checks session tokens.
type Service struct {
	db           *gorm.DB
	sessions     *SessionStore
	secret       []byte
	ttl          time.Duration
	startingCash decimal.Decimal
	cost         int
	log          zerolog.Logger
	now          func() time.Time
}

func NewService(db *gorm.DB, sessions *SessionStore, opts Options, log zerolog.Logger) *Service {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		db:           db,
		sessions:     sessions,
		secret:       []byte(opts.Secret),
		ttl:          opts.TTL,
		startingCash: opts.StartingCash,
		cost:         cost,
		log:          log.With().Str("component", "auth").Logger(),
		now:          time.Now,
	}
}

// Register creates a user holding the starting cash and logs them in.
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &models.ValidationError{Field: "username", Message: "must provide username"}
	}
	if utf8.RuneCountInString(username) > models.MaxUsernameLength {
		return nil, &models.ValidationError{Field: "username", Message: fmt.Sprintf("must be at most %d characters", models.MaxUsernameLength)}
	}
	if password == "" {
		return nil, &models.ValidationError{Field: "password", Message: "must provide password"}
	}
	if len(password) > models.MaxPasswordLength {
		return nil, &models.ValidationError{Field: "password", Message: fmt.Sprintf("must be at most %d bytes", models.MaxPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
		Cash:         s.startingCash,
		StartingCash: s.startingCash,
	}
	err = database.WithinTx(ctx, s.db, nil, func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if existing > 0 {
			return ErrUsernameTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			// A concurrent registration can still win the race to the unique index.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("Registered user")
	return s.issue(ctx, user)
}

// Authenticate checks a username and password and issues a session.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

// Verify checks a token's signature and expiry and that its session has not
// been revoked.
func (s *Service) Verify(ctx context.Context, token string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.UserID == 0 || c.ID == "" {
		return Identity{}, ErrInvalidToken
	}

	active, err := s.sessions.Active(ctx, c.ID)
	if err != nil {
		return Identity{}, err
	}
	if !active {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID:    c.UserID,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Logout revokes the session behind token. Invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	id, err := s.Verify(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, id.TokenID); err != nil {
		return err
	}
	s.log.Info().Uint("user_id", id.UserID).Msg("Logged out")
	return nil
}

func (s *Service) issue(ctx context.Context, user models.User) (*Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	tokenID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if err := s.sessions.Save(ctx, tokenID, user.ID, s.ttl); err != nil {
		return nil, err
	}

	return &Session{
		Token:     signed,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: expires,
	}, nil
}
