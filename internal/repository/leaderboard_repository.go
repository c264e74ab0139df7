package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// LeaderboardRepository reads the leaderboard maintained by the leaderboard worker.
type LeaderboardRepository struct {
	pool *pgxpool.Pool
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(pool *pgxpool.Pool) *LeaderboardRepository {
	return &LeaderboardRepository{pool: pool}
}

// List returns the best results of a subject, highest first.
func (r *LeaderboardRepository) List(ctx context.Context, schoolID, subjectID int64, className *string, limit int) ([]model.LeaderboardEntry, error) {
	query := `SELECT l.student_id, s.name, l.subject_id, l.school_id, l.class_name, l.best_percentage, l.attempts, l.updated_at
		 FROM leaderboard l
		 JOIN students s ON s.id = l.student_id
		 WHERE l.school_id = $1 AND l.subject_id = $2`
	args := []any{schoolID, subjectID}
	if className != nil && *className != "" {
		args = append(args, *className)
		query += fmt.Sprintf(" AND l.class_name = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY l.best_percentage DESC, l.updated_at ASC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.StudentID, &e.StudentName, &e.SubjectID, &e.SchoolID, &e.ClassName, &e.BestPercentage, &e.Attempts, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
