package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
	"github.com/and161185/glucokeeper/internal/repository"
)

// Goals manages a user's goals. Titles are unique per user and address goals.
type Goals struct {
	repo repository.GoalRepository
}

// NewGoals constructs the goal service.
func NewGoals(repo repository.GoalRepository) *Goals { return &Goals{repo: repo} }

// List returns the user's goals.
func (s *Goals) List(ctx context.Context, userID uuid.UUID) ([]model.Goal, error) {
	return s.repo.List(ctx, userID)
}

// Create stores a new goal for the user. An empty status means not started.
func (s *Goals) Create(ctx context.Context, userID uuid.UUID, g model.Goal) (model.Goal, error) {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return model.Goal{}, fmt.Errorf("empty goal title: %w", errs.ErrInvalidArgument)
	}
	if g.Status == "" {
		g.Status = model.GoalNotStarted
	}
	if _, err := model.ParseGoalStatus(string(g.Status)); err != nil {
		return model.Goal{}, err
	}
	if err := checkPeriod(g.Start, g.End); err != nil {
		return model.Goal{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Goal{}, err
	}
	g.ID = id
	g.UserID = userID
	if err := s.repo.Create(ctx, &g); err != nil {
		return model.Goal{}, fmt.Errorf("goal %q: %w", g.Title, err)
	}
	return g, nil
}

// Update sets one attribute of the goal. Dates are RFC 3339; an empty value clears them.
func (s *Goals) Update(ctx context.Context, userID uuid.UUID, title string, field model.GoalField, value string) (model.Goal, error) {
	g, err := s.repo.Get(ctx, userID, title)
	if err != nil {
		return model.Goal{}, fmt.Errorf("goal %q: %w", title, err)
	}

	switch field {
	case model.GoalFieldTitle:
		v := strings.TrimSpace(value)
		if v == "" {
			return model.Goal{}, fmt.Errorf("empty goal title: %w", errs.ErrInvalidArgument)
		}
		g.Title = v
	case model.GoalFieldStatus:
		st, err := model.ParseGoalStatus(value)
		if err != nil {
			return model.Goal{}, err
		}
		g.Status = st
	case model.GoalFieldStart, model.GoalFieldEnd:
		t, err := parseOptionalTime(value)
		if err != nil {
			return model.Goal{}, err
		}
		if field == model.GoalFieldStart {
			g.Start = t
		} else {
			g.End = t
		}
		if err := checkPeriod(g.Start, g.End); err != nil {
			return model.Goal{}, err
		}
	default:
		return model.Goal{}, fmt.Errorf("goal field %q: %w", field, errs.ErrInvalidArgument)
	}

	if err := s.repo.Update(ctx, g); err != nil {
		return model.Goal{}, fmt.Errorf("goal %q: %w", title, err)
	}
	return *g, nil
}

// Delete removes the goal and returns it.
func (s *Goals) Delete(ctx context.Context, userID uuid.UUID, title string) (model.Goal, error) {
	g, err := s.repo.Delete(ctx, userID, title)
	if err != nil {
		return model.Goal{}, fmt.Errorf("goal %q: %w", title, err)
	}
	return *g, nil
}

func parseOptionalTime(v string) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("datetime %q: %w", v, errs.ErrInvalidArgument)
	}
	return &t, nil
}

func checkPeriod(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("goal ends before it starts: %w", errs.ErrInvalidArgument)
	}
	return nil
}
