package database

import (
	"context"
	"time"
)

// User mirrors the identity provider's profile for display purposes.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertUser creates the user or, if it exists, refreshes name and image.
// Email is only written on creation. Returns true when the row was created.
func (db *DB) UpsertUser(ctx context.Context, u *User) (bool, error) {
	var created bool
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, image_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name       = EXCLUDED.name,
			image_url  = EXCLUDED.image_url,
			updated_at = now()
		RETURNING email, created_at, updated_at, (xmax = 0)
	`, u.ID, u.Name, u.Email, u.ImageURL).Scan(&u.Email, &u.CreatedAt, &u.UpdatedAt, &created)
	return created, err
}

// GetUser returns a single user.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, email, image_url, created_at, updated_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
