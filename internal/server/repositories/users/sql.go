package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/dbx"
	"github.com/dmitrijs2005/failseed/internal/server/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Create inserts the user. A taken email yields common.ErrAlreadyExists.
func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, email, password_hash, created_at)
         VALUES ($1, $2, $3, $4)
		 `

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		user.ID, user.Email, user.PasswordHash, r.dialect.TimeArg(user.CreatedAt))

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, created_at FROM users
		 WHERE email = $1
		 `
	return r.getOne(ctx, query, email)
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, created_at FROM users
		 WHERE id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	var createdAt dbx.Timestamp
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), arg).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &createdAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.CreatedAt = createdAt.Time
	return user, nil
}
