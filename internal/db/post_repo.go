package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"postroom/internal/types"
)

// PostRepository provides data access for the posts table backing the
// scheduling calendar.
type PostRepository struct {
	db DBTX
}

// NewPostRepository creates a new PostRepository backed by the given
// database connection (pool or transaction).
func NewPostRepository(db DBTX) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `p.id, p.workspace_id, p.body, p.channels, p.status,
	p.scheduled_at, p.created_at, p.updated_at`

func scanPost(row pgx.Row) (*types.Post, error) {
	var p types.Post
	var channels []string
	err := row.Scan(
		&p.ID,
		&p.WorkspaceID,
		&p.Body,
		&channels,
		&p.Status,
		&p.ScheduledAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Channels = make([]types.Channel, len(channels))
	for i, c := range channels {
		p.Channels[i] = types.Channel(c)
	}
	return &p, nil
}

// channelStrings converts typed channels to a text array for storage.
func channelStrings(channels []types.Channel) []string {
	out := make([]string, len(channels))
	for i, c := range channels {
		out[i] = string(c)
	}
	return out
}

// Create inserts a new post.
func (r *PostRepository) Create(ctx context.Context, p *types.Post) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO posts (id, workspace_id, body, channels, status, scheduled_at,
		 created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		p.ID,
		p.WorkspaceID,
		p.Body,
		channelStrings(p.Channels),
		p.Status,
		p.ScheduledAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create post", err)
	}
	return nil
}

// GetByID retrieves a post scoped to a workspace.
func (r *PostRepository) GetByID(ctx context.Context, workspaceID, postID string) (*types.Post, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 WHERE p.id = $1 AND p.workspace_id = $2`,
		postID,
		workspaceID,
	)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPost, "post not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve post", err)
	}
	return p, nil
}

// ListByWorkspaceBetween returns posts scheduled in [start, end), plus
// unscheduled drafts, for calendar rendering.
func (r *PostRepository) ListByWorkspaceBetween(ctx context.Context, workspaceID string, start, end time.Time) ([]*types.Post, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 WHERE p.workspace_id = $1
		   AND (p.scheduled_at IS NULL OR (p.scheduled_at >= $2 AND p.scheduled_at < $3))
		 ORDER BY p.scheduled_at ASC NULLS LAST`,
		workspaceID,
		start,
		end,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list posts", err)
	}
	defer rows.Close()

	var result []*types.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan post row", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating post rows", err)
	}
	return result, nil
}

// Update rewrites a post's content, channels, status, and schedule.
func (r *PostRepository) Update(ctx context.Context, p *types.Post) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE posts
		 SET body = $1, channels = $2, status = $3, scheduled_at = $4, updated_at = NOW()
		 WHERE id = $5 AND workspace_id = $6`,
		p.Body,
		channelStrings(p.Channels),
		p.Status,
		p.ScheduledAt,
		p.ID,
		p.WorkspaceID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update post", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPost, "post not found", nil)
	}
	return nil
}

// Delete removes a post permanently.
func (r *PostRepository) Delete(ctx context.Context, workspaceID, postID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM posts WHERE id = $1 AND workspace_id = $2`,
		postID,
		workspaceID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete post", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPost, "post not found", nil)
	}
	return nil
}
