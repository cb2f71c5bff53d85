package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"postroom/internal/types"
)

// TokenRepository provides data access for personal access tokens. Only the
// bcrypt hash of a token's secret half is ever stored; the plaintext is shown
// once at mint time and never again.
type TokenRepository struct {
	db DBTX
}

// NewTokenRepository creates a new TokenRepository backed by the given
// database connection (pool or transaction).
func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `t.id, t.account_id, t.name, t.token_hash, t.is_admin,
	t.created_at, t.last_used_at, t.revoked_at`

func scanToken(row pgx.Row) (*types.AccessToken, error) {
	var t types.AccessToken
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.Name,
		&t.TokenHash,
		&t.IsAdmin,
		&t.CreatedAt,
		&t.LastUsedAt,
		&t.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new access token record.
func (r *TokenRepository) Create(ctx context.Context, t *types.AccessToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO access_tokens (id, account_id, name, token_hash, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		t.ID,
		t.AccountID,
		t.Name,
		t.TokenHash,
		t.IsAdmin,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create access token", err)
	}
	return nil
}

// GetActiveByID retrieves a token by its public ID, excluding revoked tokens.
// Auth lookups go through this: the caller then compares the presented secret
// against the stored hash.
func (r *TokenRepository) GetActiveByID(ctx context.Context, id string) (*types.AccessToken, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+tokenColumns+`
		 FROM access_tokens t
		 WHERE t.id = $1 AND t.revoked_at IS NULL`,
		id,
	)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid access token", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve access token", err)
	}
	return t, nil
}

// TouchLastUsed records that the token authenticated a request. Best-effort;
// a miss on a just-revoked token is not an error worth surfacing.
func (r *TokenRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE access_tokens SET last_used_at = $1 WHERE id = $2`,
		at,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to touch access token", err)
	}
	return nil
}

// Revoke permanently disables a token.
func (r *TokenRepository) Revoke(ctx context.Context, accountID, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE access_tokens SET revoked_at = NOW()
		 WHERE id = $1 AND account_id = $2 AND revoked_at IS NULL`,
		id,
		accountID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to revoke access token", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "access token not found", nil)
	}
	return nil
}

// ListByAccount returns the account's tokens, newest first, including revoked
// ones so the dashboard can show history.
func (r *TokenRepository) ListByAccount(ctx context.Context, accountID string) ([]*types.AccessToken, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+tokenColumns+`
		 FROM access_tokens t
		 WHERE t.account_id = $1
		 ORDER BY t.created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list access tokens", err)
	}
	defer rows.Close()

	var result []*types.AccessToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan token row", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating token rows", err)
	}
	return result, nil
}
