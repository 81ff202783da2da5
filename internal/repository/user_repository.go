package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/model"
)

type UserRepo struct{ db database.DBTX }

func NewUserRepo(db database.DBTX) *UserRepo { return &UserRepo{db: db} }

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, name string, image *string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (name, image) VALUES (?,?)",
		name, stringOrNil(image))
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var (
		u     model.User
		image sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id,name,image,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Name, &image, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, translate(err)
	}
	u.Image = nullString(image)
	return u, nil
}

// UpdateDisplay refreshes the name and avatar copied from the identity provider.
func (r *UserRepo) UpdateDisplay(ctx context.Context, id uint64, name string, image *string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET name=?, image=? WHERE id=?",
		name, stringOrNil(image), id)
	return translate(err)
}
