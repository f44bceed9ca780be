package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
)

// GoalRepo implements GoalRepository using PostgreSQL.
type GoalRepo struct{ db *DB }

// NewGoalRepo constructs a goal repository.
func NewGoalRepo(db *DB) *GoalRepo { return &GoalRepo{db: db} }

const goalCols = `id, user_id, title, status, start_at, end_at, average_target, trend_target,
target_minimum, target_maximum, target_range, target_mean, target_variance, target_std_dev,
target_count, target_q1, target_q2, target_q3, target_median`

// List selects every goal of the user ordered by title.
func (r *GoalRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Goal, error) {
	const q = `SELECT ` + goalCols + ` FROM goals WHERE user_id=$1 ORDER BY title ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectGoals(rows)
}

// Get selects a goal of the user by title.
func (r *GoalRepo) Get(ctx context.Context, userID uuid.UUID, title string) (*model.Goal, error) {
	const q = `SELECT ` + goalCols + ` FROM goals WHERE user_id=$1 AND title=$2`
	g, err := scanGoal(r.db.Pool.QueryRow(ctx, q, userID, title))
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

// Create inserts a goal row.
func (r *GoalRepo) Create(ctx context.Context, g *model.Goal) error {
	const q = `
INSERT INTO goals (` + goalCols + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.db.Pool.Exec(ctx, q, goalArgs(g)...)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Update overwrites every mutable column of the goal.
func (r *GoalRepo) Update(ctx context.Context, g *model.Goal) error {
	const q = `
UPDATE goals SET title=$3, status=$4, start_at=$5, end_at=$6, average_target=$7, trend_target=$8,
  target_minimum=$9, target_maximum=$10, target_range=$11, target_mean=$12, target_variance=$13,
  target_std_dev=$14, target_count=$15, target_q1=$16, target_q2=$17, target_q3=$18, target_median=$19
WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, goalArgs(g)...)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete deletes a goal of the user by title and returns it.
func (r *GoalRepo) Delete(ctx context.Context, userID uuid.UUID, title string) (*model.Goal, error) {
	const q = `DELETE FROM goals WHERE user_id=$1 AND title=$2 RETURNING ` + goalCols
	g, err := scanGoal(r.db.Pool.QueryRow(ctx, q, userID, title))
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

// DeleteAll deletes and returns every goal of the user.
func (r *GoalRepo) DeleteAll(ctx context.Context, userID uuid.UUID) ([]model.Goal, error) {
	const q = `DELETE FROM goals WHERE user_id=$1 RETURNING ` + goalCols
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectGoals(rows)
}

func goalArgs(g *model.Goal) []any {
	var trend *int16
	if g.TrendTarget != nil {
		v := int16(g.TrendTarget.Int())
		trend = &v
	}
	st := g.StatsTarget
	return []any{
		g.ID, g.UserID, g.Title, int16(g.Status.Int()), g.Start, g.End, g.AverageTarget, trend,
		st.Minimum, st.Maximum, st.Range, st.Mean, st.Variance, st.StdDev,
		st.Count, st.Q1, st.Q2, st.Q3, st.Median,
	}
}

func collectGoals(rows pgx.Rows) ([]model.Goal, error) {
	defer rows.Close()
	out := []model.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func scanGoal(row pgx.Row) (*model.Goal, error) {
	var (
		g      model.Goal
		status int16
		trend  *int16
	)
	st := &g.StatsTarget
	err := row.Scan(&g.ID, &g.UserID, &g.Title, &status, &g.Start, &g.End, &g.AverageTarget, &trend,
		&st.Minimum, &st.Maximum, &st.Range, &st.Mean, &st.Variance, &st.StdDev,
		&st.Count, &st.Q1, &st.Q2, &st.Q3, &st.Median)
	if err != nil {
		return nil, err
	}
	if g.Status, err = model.GoalStatusFromInt(int(status)); err != nil {
		return nil, err
	}
	if trend != nil {
		ts, err := model.TrendStateFromInt(int(*trend))
		if err != nil {
			return nil, err
		}
		g.TrendTarget = &ts
	}
	return &g, nil
}
