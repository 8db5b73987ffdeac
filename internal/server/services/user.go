// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, guest sessions and
// issuing/refreshing JWTs plus server-stored refresh tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/dbx"
	"github.com/dmitrijs2005/failseed/internal/server/auth"
	"github.com/dmitrijs2005/failseed/internal/server/config"
	"github.com/dmitrijs2005/failseed/internal/server/models"
	"github.com/dmitrijs2005/failseed/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// TokenPair bundles a short-lived access token and a long-lived refresh token.
// Guest sessions get no refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService provides authentication-related operations:
// - Register: create users with a bcrypt password hash
// - Login: verify credentials and mint tokens
// - RefreshToken: rotate refresh tokens and mint new access tokens
// - Guest: mint an access token for an account-less owner
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	guestTokenValidityDuration   time.Duration
	bcryptCost                   int
	// dummyHash is compared against when the email is unknown so that a
	// miss costs the same as a wrong password.
	dummyHash []byte
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	s := &UserService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		guestTokenValidityDuration:   cfg.GuestTokenValidityDuration,
		bcryptCost:                   bcrypt.DefaultCost,
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("failseed-dummy-password"), s.bcryptCost)
	return s
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired,
// unknown ones ErrInvalidToken.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)
		if err := repoTx.Delete(ctx, refreshToken); err != nil {
			// a concurrent refresh consumed the token first
			if errors.Is(err, common.ErrInvalidToken) {
				return common.ErrInvalidToken
			}
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Register creates a new user and signs them in. The user row and the first
// refresh token are written in one transaction.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if len(password) < minPasswordLength {
		return nil, nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, nil, fmt.Errorf("%w: password is too long", common.ErrValidation)
		}
		return nil, nil, common.ErrorInternal
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user.ID, tx)
		return genErr
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, nil, common.ErrAlreadyExists
		}
		return nil, nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, pair, nil
}

// Login verifies the password and, on success, returns a new TokenPair.
// Unknown emails and wrong passwords are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}
	return s.generateTokenPair(ctx, user.ID, s.db)
}

// Guest mints an access token for a fresh guest owner.
func (s *UserService) Guest(ctx context.Context) (string, *TokenPair, error) {
	owner := common.GuestOwnerPrefix + uuid.NewString()
	access, err := auth.GenerateGuestToken(owner, s.jwtSecret, s.guestTokenValidityDuration)
	if err != nil {
		return "", nil, common.ErrorInternal
	}
	return owner, &TokenPair{AccessToken: access}, nil
}

// CurrentUser loads the account behind a registered owner id.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// --- helpers below ---

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	return email, nil
}

func (s *UserService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	refreshRepo := s.repomanager.RefreshTokens(tx)
	if err := refreshRepo.Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
