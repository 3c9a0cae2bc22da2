package repository

import (
	"context"
	"errors"

	"casebrief-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FavoriteRepository handles database operations for favorites
type FavoriteRepository struct {
	db *pgxpool.Pool
}

// NewFavoriteRepository creates a new favorite repository
func NewFavoriteRepository(db *pgxpool.Pool) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// AddFavorite saves a case for a user. Adding twice is a no-op.
func (r *FavoriteRepository) AddFavorite(ctx context.Context, userID string, caseID uuid.UUID) error {
	query := `
		INSERT INTO favorites (user_id, case_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, case_id) DO NOTHING`

	_, err := r.db.Exec(ctx, query, userID, caseID)
	if isForeignKeyViolation(err) {
		return notFound("case", caseID)
	}
	if err != nil {
		return unavailable("add favorite", err)
	}
	return nil
}

// RemoveFavorite deletes a saved case. Removing a missing favorite is a no-op.
func (r *FavoriteRepository) RemoveFavorite(ctx context.Context, userID string, caseID uuid.UUID) error {
	query := `DELETE FROM favorites WHERE user_id = $1 AND case_id = $2`
	if _, err := r.db.Exec(ctx, query, userID, caseID); err != nil {
		return unavailable("remove favorite", err)
	}
	return nil
}

// ListFavorites returns a user's favorites, newest first
func (r *FavoriteRepository) ListFavorites(ctx context.Context, userID string) ([]*models.Favorite, error) {
	query := `
		SELECT user_id, case_id, created_at
		FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, unavailable("list favorites", err)
	}
	defer rows.Close()

	var favorites []*models.Favorite
	for rows.Next() {
		f := &models.Favorite{}
		if err := rows.Scan(&f.UserID, &f.CaseID, &f.CreatedAt); err != nil {
			return nil, unavailable("list favorites", err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list favorites", err)
	}
	return favorites, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
