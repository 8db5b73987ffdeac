package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/dbx"
	"github.com/dmitrijs2005/failseed/internal/server/models"
)

// SQLRepository implements CRUD operations for refresh tokens over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	now     func() time.Time
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now}
}

// Create inserts a new refresh token for userID with an expiry time of now+validity.
func (r *SQLRepository) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), userID, token, r.dialect.TimeArg(r.now().Add(validity))); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Find returns the refresh token row for the given token string.
// If not found, it returns common.ErrorNotFound.
func (r *SQLRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1
	`
	refreshToken := &models.RefreshToken{Token: token}
	var expires dbx.Timestamp
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), token).Scan(&refreshToken.UserID, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	refreshToken.Expires = expires.Time
	return refreshToken, nil
}

// Delete removes a refresh token by its token string. A token that is
// already gone yields ErrInvalidToken, so only one rotation can consume it.
func (r *SQLRepository) Delete(ctx context.Context, token string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
	`
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrInvalidToken
	}
	return nil
}
