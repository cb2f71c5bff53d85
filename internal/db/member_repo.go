package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"postroom/internal/types"
)

// MemberRepository provides data access for the workspace_members table,
// covering both active members and pending invitations.
type MemberRepository struct {
	db DBTX
}

// NewMemberRepository creates a new MemberRepository backed by the given
// database connection (pool or transaction).
func NewMemberRepository(db DBTX) *MemberRepository {
	return &MemberRepository{db: db}
}

const memberColumns = `m.id, m.workspace_id, m.email, m.role, m.status,
	m.invite_token_hash, m.invited_at, m.joined_at`

func scanMember(row pgx.Row) (*types.Member, error) {
	var m types.Member
	var tokenHash *string
	err := row.Scan(
		&m.ID,
		&m.WorkspaceID,
		&m.Email,
		&m.Role,
		&m.Status,
		&tokenHash,
		&m.InvitedAt,
		&m.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	if tokenHash != nil {
		m.InviteTokenHash = *tokenHash
	}
	return &m, nil
}

// CountActive returns the number of members in the workspace, including
// pending invitations. Invitations count against the member limit so an
// owner cannot over-invite past the ceiling.
func (r *MemberRepository) CountActive(ctx context.Context, workspaceID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM workspace_members
		 WHERE workspace_id = $1`,
		workspaceID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count members", err)
	}
	return count, nil
}

// CreateInvited inserts a pending member with a hashed invite token.
// Returns ErrCodeConflictMemberExists if the email is already attached to
// the workspace.
func (r *MemberRepository) CreateInvited(ctx context.Context, m *types.Member, tokenHash string, invitedAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO workspace_members (id, workspace_id, email, role, status,
		 invite_token_hash, invited_at)
		 VALUES ($1, $2, $3, $4, 'invited', $5, $6)`,
		m.ID,
		m.WorkspaceID,
		m.Email,
		m.Role,
		nilIfEmpty(tokenHash),
		invitedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictMemberExists, "member already exists in workspace", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create invited member", err)
	}
	return nil
}

// GetInvitedByWorkspaceAndEmail finds a pending invitation so its token hash
// can be verified during acceptance.
func (r *MemberRepository) GetInvitedByWorkspaceAndEmail(ctx context.Context, workspaceID, email string) (*types.Member, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+memberColumns+`
		 FROM workspace_members m
		 WHERE m.workspace_id = $1 AND m.email = $2 AND m.status = 'invited'`,
		workspaceID,
		email,
	)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundInvite, "invitation not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve invitation", err)
	}
	return m, nil
}

// Accept flips an invited member to active and clears the invite token.
func (r *MemberRepository) Accept(ctx context.Context, memberID string, joinedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE workspace_members
		 SET status = 'active', invite_token_hash = NULL, joined_at = $1
		 WHERE id = $2 AND status = 'invited'`,
		joinedAt,
		memberID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to accept invitation", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundInvite, "invitation not found or already accepted", nil)
	}
	return nil
}

// ListByWorkspace returns all members of the workspace, invited and active.
func (r *MemberRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*types.Member, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+memberColumns+`
		 FROM workspace_members m
		 WHERE m.workspace_id = $1
		 ORDER BY m.invited_at ASC NULLS FIRST`,
		workspaceID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list members", err)
	}
	defer rows.Close()

	var result []*types.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan member row", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating member rows", err)
	}
	return result, nil
}

// Delete removes a member (or revokes a pending invitation).
func (r *MemberRepository) Delete(ctx context.Context, workspaceID, memberID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM workspace_members WHERE id = $1 AND workspace_id = $2`,
		memberID,
		workspaceID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete member", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMember, "member not found", nil)
	}
	return nil
}

// isUniqueViolation reports whether the error is a PostgreSQL unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
