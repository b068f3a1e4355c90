package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"

	"github.com/cricketduel/backend/internal/config"
	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

type AuthService struct {
	store store.Store
	redis *redis.Client
	cfg   *config.AuthConfig
	log   *zap.Logger
	now   func() time.Time
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150,alphanum" example:"virat18"` // Username
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`            // User email address
	Password string `json:"password" validate:"required,min=6" example:"password123"`              // User password
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"virat18"`           // Username
	Password string `json:"password" validate:"required,min=6" example:"password123"` // User password
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	User  models.User `json:"user"`                                                    // User information
}

// Account is the caller's identity with their place in the hierarchy.
type Account struct {
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile"`
	Wallet  *models.Wallet  `json:"wallet"`
}

// NewAuthService wires authentication. A nil redis client disables the logout
// blacklist.
func NewAuthService(st store.Store, redisClient *redis.Client, cfg *config.AuthConfig, log *zap.Logger) *AuthService {
	return &AuthService{
		store: st,
		redis: redisClient,
		cfg:   cfg,
		log:   log.Named("auth"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register creates the user together with an end-user profile and an empty
// user wallet, all in one unit of work.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		CreatedAt:    now,
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return newError(ErrStateConflict, "Username or email already exists")
			}
			return err
		}
		if err := tx.CreateProfile(&models.Profile{
			UserID:    user.ID,
			UserType:  models.UserTypeEndUser,
			IsActive:  true,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.CreateWallet(&models.Wallet{
			OwnerID:   user.ID,
			Kind:      models.WalletKindUser,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))

	token, err := s.generateJWT(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResponse{Token: token, User: *user}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var user *models.User
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUserByUsername(strings.TrimSpace(req.Username))
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.log.Info("login failed, unknown user", zap.String("username", req.Username))
		}
		return nil, err
	}

	if !s.verifyPassword(req.Password, user.PasswordHash) {
		s.log.Info("login failed, bad password", zap.Int64("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateJWT(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResponse{Token: token, User: *user}, nil
}

// Logout blacklists the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s.redis == nil || token == "" {
		return nil
	}

	ttl := s.cfg.JWTExpiry
	if claims, err := s.parse(token); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			ttl = exp.Sub(s.now())
		}
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, blacklistKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// Authenticate validates the token and returns the user it was issued to.
func (s *AuthService) Authenticate(ctx context.Context, token string) (int64, error) {
	claims, err := s.parse(token)
	if err != nil {
		return 0, newError(ErrUnauthorized, "Invalid token")
	}

	if s.redis != nil {
		n, err := s.redis.Exists(ctx, blacklistKey(token)).Result()
		if err != nil {
			s.log.Warn("blacklist lookup failed", zap.Error(err))
		} else if n > 0 {
			return 0, newError(ErrUnauthorized, "Token has been revoked")
		}
	}

	raw, ok := claims["user_id"].(float64)
	if !ok || raw <= 0 {
		return 0, newError(ErrUnauthorized, "Invalid token")
	}
	return int64(raw), nil
}

// Me returns the caller's user, profile and wallet.
func (s *AuthService) Me(ctx context.Context, userID int64) (*Account, error) {
	acc := &Account{}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		acc.User, err = tx.GetUser(userID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("User")
		}
		if err != nil {
			return err
		}
		acc.Profile, err = tx.GetProfile(userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		acc.Wallet, err = tx.GetWallet(userID, models.WalletKindUser)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

func (s *AuthService) generateJWT(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     s.now().Add(s.cfg.JWTExpiry).Unix(),
	})
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) parse(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	salt := make([]byte, s.cfg.Argon2SaltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, s.cfg.Argon2Time, s.cfg.Argon2Memory, s.cfg.Argon2Threads, s.cfg.Argon2KeyLength)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func (s *AuthService) verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, s.cfg.Argon2Time, s.cfg.Argon2Memory, s.cfg.Argon2Threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computed) == 1
}
