// Package entries provides the SQL-backed store for conversation entries.
// The same queries serve PostgreSQL and SQLite through dbx.Dialect.
package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/dbx"
	"github.com/dmitrijs2005/failseed/internal/server/models"
)

const selectEntry = `SELECT id, owner, text, conversation_history, turn_count, growth, hint, hint_status, category, is_completed, created_at
		 FROM entries`

// SQLRepository implements Repository over dbx.DBTX (satisfied by *sql.DB
// or *sql.Tx).
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Create inserts a new ongoing entry. e.History must already hold the
// first user/assistant exchange.
func (r *SQLRepository) Create(ctx context.Context, e *models.Entry) error {
	history, err := json.Marshal(e.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	query := `INSERT INTO entries (id, owner, text, conversation_history, turn_count, hint_status, is_completed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`

	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		e.ID, e.Owner, e.Text, string(history), e.TurnCount, string(e.HintStatus), r.dialect.TimeArg(e.CreatedAt)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the owner's entry or common.ErrorNotFound.
func (r *SQLRepository) Get(ctx context.Context, id, owner string) (*models.Entry, error) {
	query := selectEntry + `
		 WHERE id = $1 AND owner = $2`

	e, err := scanEntry(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), id, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// AppendTurn adds one user/assistant exchange and bumps the turn count.
// The write only succeeds if the entry is still at expectedTurn and not
// completed; a concurrent writer that got there first yields
// common.ErrVersionConflict.
func (r *SQLRepository) AppendTurn(ctx context.Context, id, owner string, expectedTurn int, user, assistant models.Message) (*models.Entry, error) {
	e, err := r.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if e.IsCompleted {
		return nil, common.ErrAlreadyCompleted
	}
	if e.TurnCount != expectedTurn {
		return nil, common.ErrVersionConflict
	}

	e.History = append(e.History, user, assistant)
	e.TurnCount++

	history, err := json.Marshal(e.History)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}

	query := `UPDATE entries SET conversation_history = $1, turn_count = $2
		 WHERE id = $3 AND owner = $4 AND turn_count = $5 AND is_completed = FALSE`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), string(history), e.TurnCount, id, owner, expectedTurn)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}
	return e, nil
}

// Finalize stores the distilled growth/hint/category and completes the entry.
// It refuses entries that are already completed or have moved past expectedTurn.
func (r *SQLRepository) Finalize(ctx context.Context, id, owner string, expectedTurn int, growth string, hint *string, category string) (*models.Entry, error) {
	query := `UPDATE entries SET growth = $1, hint = $2, category = $3, is_completed = TRUE
		 WHERE id = $4 AND owner = $5 AND turn_count = $6 AND is_completed = FALSE`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), growth, nullString(hint), category, id, owner, expectedTurn)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		if !errors.Is(err, common.ErrVersionConflict) {
			return nil, err
		}
		current, err := r.Get(ctx, id, owner)
		if err != nil {
			return nil, err
		}
		if current.IsCompleted {
			return nil, common.ErrAlreadyCompleted
		}
		return nil, common.ErrVersionConflict
	}
	return r.Get(ctx, id, owner)
}

// UpdateHintStatus sets the hint status of a completed entry.
func (r *SQLRepository) UpdateHintStatus(ctx context.Context, id, owner string, status models.HintStatus) (*models.Entry, error) {
	query := `UPDATE entries SET hint_status = $1
		 WHERE id = $2 AND owner = $3 AND is_completed = TRUE`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), string(status), id, owner)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		if !errors.Is(err, common.ErrVersionConflict) {
			return nil, err
		}
		if _, err := r.Get(ctx, id, owner); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: entry is not finalized yet", common.ErrValidation)
	}
	return r.Get(ctx, id, owner)
}

// ListCompleted returns the owner's completed entries, newest first.
func (r *SQLRepository) ListCompleted(ctx context.Context, owner string) ([]*models.Entry, error) {
	query := selectEntry + `
		 WHERE owner = $1 AND is_completed = TRUE
		 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), owner)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// CountByOwner counts all of the owner's entries, ongoing ones included.
func (r *SQLRepository) CountByOwner(ctx context.Context, owner string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT COUNT(*) FROM entries WHERE owner = $1`), owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Delete hard-deletes the owner's entry. It reports false, not an error,
// when nothing matched.
func (r *SQLRepository) Delete(ctx context.Context, id, owner string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM entries WHERE id = $1 AND owner = $2`), id, owner)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	switch n {
	case 0:
		return common.ErrVersionConflict
	case 1:
		return nil
	default:
		return fmt.Errorf("db error: %d rows updated", n)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		e                      models.Entry
		history                []byte
		growth, hint, category sql.NullString
		hintStatus             string
		createdAt              dbx.Timestamp
	)
	if err := row.Scan(&e.ID, &e.Owner, &e.Text, &history, &e.TurnCount,
		&growth, &hint, &hintStatus, &category, &e.IsCompleted, &createdAt); err != nil {
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &e.History); err != nil {
			return nil, fmt.Errorf("decode history of %s: %w", e.ID, err)
		}
	}
	e.Growth = stringPtr(growth)
	e.Hint = stringPtr(hint)
	e.Category = stringPtr(category)
	e.HintStatus = models.HintStatus(hintStatus)
	e.CreatedAt = createdAt.Time
	return &e, nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
