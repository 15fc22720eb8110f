package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/plantcare/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserService struct {
	db DBConn
}

func NewUserService(db DBConn) *UserService {
	return &UserService{db: db}
}

// UpsertFromIdentity returns the local user for a verified identity,
// creating it on first sight. Blank email or name claims never overwrite
// stored values.
func (s *UserService) UpsertFromIdentity(ctx context.Context, identity models.Identity) (*models.User, error) {
	subject := strings.TrimSpace(identity.Subject)
	if subject == "" {
		return nil, errors.New("identity subject is required")
	}

	user := &models.User{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (firebase_uid, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (firebase_uid) DO UPDATE
		   SET email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		       name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		       updated_at = NOW()
		RETURNING id, firebase_uid, email, name, created_at, updated_at`,
		subject,
		strings.TrimSpace(identity.Email),
		strings.TrimSpace(identity.Name),
	).Scan(&user.ID, &user.FirebaseUID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		"SELECT id, firebase_uid, email, name, created_at, updated_at FROM users WHERE id = $1",
		id,
	).Scan(&user.ID, &user.FirebaseUID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}
