// Package auth implements personal access token (PAT) authentication.
// A token is presented as "pat_<id>_<secret>"; only the bcrypt hash of the
// secret half is stored, so a database leak does not leak usable tokens.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"postroom/internal/types"
)

// tokenPrefix identifies personal access tokens in the wire format.
const tokenPrefix = "pat"

// secretBytes is the entropy of the secret half (32 hex chars).
const secretBytes = 16

// TokenStore is the slice of the token repository the auth service needs.
type TokenStore interface {
	Create(ctx context.Context, t *types.AccessToken) error
	GetActiveByID(ctx context.Context, id string) (*types.AccessToken, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// PasswordHasher abstracts bcrypt operations for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedSecret, secret string) error
	GenerateFromPassword(secret string) (string, error)
}

// bcryptHasher is the production PasswordHasher.
type bcryptHasher struct {
	cost int
}

func (b *bcryptHasher) CompareHashAndPassword(hashedSecret, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(secret))
}

func (b *bcryptHasher) GenerateFromPassword(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Service mints and verifies personal access tokens. It implements the
// core.Authenticator interface via ResolveToken.
type Service struct {
	tokens TokenStore
	hasher PasswordHasher
	now    func() time.Time
	logger *slog.Logger
}

// ServiceConfig holds the dependencies for creating an auth Service.
type ServiceConfig struct {
	Tokens TokenStore
	Hasher PasswordHasher
	// BcryptCost is used only when Hasher is nil; zero means bcrypt.DefaultCost.
	BcryptCost int
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewService creates an auth Service with production defaults for any nil
// optional dependency.
func NewService(cfg ServiceConfig) *Service {
	hasher := cfg.Hasher
	if hasher == nil {
		cost := cfg.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		hasher = &bcryptHasher{cost: cost}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tokens: cfg.Tokens,
		hasher: hasher,
		now:    now,
		logger: logger,
	}
}

// Mint creates a new token for the account and returns the record plus the
// full plaintext token. The plaintext is shown exactly once; it cannot be
// recovered afterwards.
func (s *Service) Mint(ctx context.Context, accountID, name string, isAdmin bool) (*types.AccessToken, string, error) {
	secret, err := randomHex(secretBytes)
	if err != nil {
		return nil, "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate token secret", err)
	}

	hash, err := s.hasher.GenerateFromPassword(secret)
	if err != nil {
		return nil, "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash token secret", err)
	}

	token := &types.AccessToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      name,
		TokenHash: hash,
		IsAdmin:   isAdmin,
		CreatedAt: s.now(),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, "", err
	}

	plaintext := fmt.Sprintf("%s_%s_%s", tokenPrefix, token.ID, secret)
	s.logger.InfoContext(ctx, "access token minted",
		slog.String("token_id", token.ID),
		slog.String("account_id", accountID),
		slog.Bool("is_admin", isAdmin))
	return token, plaintext, nil
}

// ResolveToken verifies a presented token and returns the Actor it
// authenticates. All failure modes (malformed, unknown ID, revoked, secret
// mismatch) collapse to auth_token_invalid so callers cannot probe which
// half was wrong.
func (s *Service) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	id, secret, ok := splitToken(token)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "malformed access token", nil)
	}

	record, err := s.tokens.GetActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.hasher.CompareHashAndPassword(record.TokenHash, secret); err != nil {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid access token", nil)
	}

	// Best-effort; authentication already succeeded.
	if err := s.tokens.TouchLastUsed(ctx, id, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to record token use",
			slog.String("token_id", id), slog.Any("error", err))
	}

	return &types.Actor{
		AccountID: record.AccountID,
		TokenID:   record.ID,
		IsAdmin:   record.IsAdmin,
	}, nil
}

// splitToken parses "pat_<id>_<secret>" into its halves.
func splitToken(token string) (id, secret string, ok bool) {
	parts := strings.SplitN(token, "_", 3)
	if len(parts) != 3 || parts[0] != tokenPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// randomHex returns n random bytes hex-encoded.
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewInviteToken generates a raw invite token and its searchable SHA-256
// hash. Invite tokens use SHA-256 rather than bcrypt because the hash must be
// looked up by value; the token is single-use and short-lived.
func NewInviteToken() (raw, hash string, err error) {
	raw, err = randomHex(secretBytes)
	if err != nil {
		return "", "", err
	}
	return raw, HashToken(raw), nil
}

// HashToken produces the hex-encoded SHA-256 hash of a raw token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
