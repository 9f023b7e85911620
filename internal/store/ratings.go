package store

import (
	"context"
	"fmt"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

// CreateRating stores a rating. The schema rejects a second rating by the
// same rater for the same user and item.
func CreateRating(ctx context.Context, db db.DBTX, r *model.Rating) (*model.Rating, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO ratings (rater_id, rated_user_id, item_id, rating, comment) VALUES (?, ?, ?, ?, ?)`,
		r.RaterID, r.RatedUserID, r.ItemID, r.Rating, r.Comment,
	)
	if err != nil {
		return nil, fmt.Errorf("creating rating: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting rating id: %w", err)
	}

	created := *r
	created.ID = id
	err = db.QueryRowContext(ctx, `SELECT created_at FROM ratings WHERE id = ?`, id).Scan(&created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting rating: %w", err)
	}
	return &created, nil
}

// HasRated reports whether the rater already rated the user for the item.
func HasRated(ctx context.Context, db db.DBTX, raterID, ratedUserID, itemID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ratings WHERE rater_id = ? AND rated_user_id = ? AND item_id = ?`,
		raterID, ratedUserID, itemID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking rating: %w", err)
	}
	return count > 0, nil
}

// ListRatingsForUser returns the ratings a user received, newest first.
func ListRatingsForUser(ctx context.Context, db db.DBTX, userID int64) ([]model.Rating, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT r.id, r.rater_id, r.rated_user_id, r.item_id, r.rating, r.comment, r.created_at,
		        u.username, i.name
		 FROM ratings r
		 JOIN users u ON u.id = r.rater_id
		 JOIN items i ON i.id = r.item_id
		 WHERE r.rated_user_id = ?
		 ORDER BY r.created_at DESC, r.id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing ratings: %w", err)
	}
	defer rows.Close()

	var ratings []model.Rating
	for rows.Next() {
		var r model.Rating
		if err := rows.Scan(&r.ID, &r.RaterID, &r.RatedUserID, &r.ItemID, &r.Rating, &r.Comment, &r.CreatedAt,
			&r.RaterUsername, &r.ItemName); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

// AverageRating returns the mean rating a user received and how many ratings
// it is based on. The mean is 0 with no ratings.
func AverageRating(ctx context.Context, db db.DBTX, userID int64) (float64, int, error) {
	var avg float64
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM ratings WHERE rated_user_id = ?`, userID,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("averaging ratings: %w", err)
	}
	return avg, count, nil
}
