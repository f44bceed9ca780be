package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/glucokeeper/internal/errs"
)

// GoalStatus is the progress of a goal.
type GoalStatus string

// Goal states.
const (
	GoalNotStarted GoalStatus = "not_started"
	GoalOnGoing    GoalStatus = "on_going"
	GoalCompleted  GoalStatus = "completed"
)

// Int returns the storage code of the status: -1, 0 or 1.
func (s GoalStatus) Int() int {
	switch s {
	case GoalOnGoing:
		return 0
	case GoalCompleted:
		return 1
	default:
		return -1
	}
}

// GoalStatusFromInt maps a storage code back to a status.
func GoalStatusFromInt(v int) (GoalStatus, error) {
	switch v {
	case -1:
		return GoalNotStarted, nil
	case 0:
		return GoalOnGoing, nil
	case 1:
		return GoalCompleted, nil
	default:
		return "", fmt.Errorf("goal status code %d: %w", v, errs.ErrInvalidArgument)
	}
}

// ParseGoalStatus validates a status name.
func ParseGoalStatus(s string) (GoalStatus, error) {
	switch st := GoalStatus(s); st {
	case GoalNotStarted, GoalOnGoing, GoalCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("goal status %q: %w", s, errs.ErrInvalidArgument)
	}
}

// StatsTarget holds the statistic values a goal aims for. Every field is optional.
type StatsTarget struct {
	Minimum  *float64
	Maximum  *float64
	Range    *float64
	Mean     *float64
	Variance *float64
	StdDev   *float64
	Count    *int
	Q1       *float64
	Q2       *float64
	Q3       *float64
	Median   *float64
}

// Goal is a user objective over glucose readings.
type Goal struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Title         string // unique
	Status        GoalStatus
	Start         *time.Time
	End           *time.Time
	AverageTarget *float64
	TrendTarget   *TrendState
	StatsTarget   StatsTarget
}

// GoalField names a goal attribute that can be updated in place.
type GoalField string

// Updatable goal attributes.
const (
	GoalFieldTitle  GoalField = "title"
	GoalFieldStatus GoalField = "status"
	GoalFieldStart  GoalField = "start_datetime"
	GoalFieldEnd    GoalField = "end_datetime"
)

// ParseGoalField validates an attribute name.
func ParseGoalField(s string) (GoalField, error) {
	switch f := GoalField(s); f {
	case GoalFieldTitle, GoalFieldStatus, GoalFieldStart, GoalFieldEnd:
		return f, nil
	default:
		return "", fmt.Errorf("goal field %q: %w", s, errs.ErrInvalidArgument)
	}
}
