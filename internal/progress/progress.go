// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package progress tracks per-user calorie totals across daily cycles.
//
// A cycle runs from the configured cycle hour of one day to the same hour
// of the next, so late-night meals count towards the previous day. Rollover
// is implicit: a record from an expired cycle is replaced by a fresh one
// the next time the user is seen, without any scheduled jobs.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.astrophena.name/macrotrackr/internal/store"
)

// ErrStore is wrapped by all [Tracker] errors caused by the underlying
// store, so callers can tell persistence failures from everything else.
var ErrStore = errors.New("progress store")

// Default tracker settings.
const (
	DefaultDailyGoal = 1350
	DefaultCycleHour = 5
)

// Progress is a user's calorie total for the current cycle.
type Progress struct {
	UserID     int64     `json:"user_id"`
	CycleStart time.Time `json:"cycle_start"`
	Calories   int       `json:"calories"`
	Goal       int       `json:"goal"`
}

// Remaining returns the calories left until the goal, never negative.
func (p Progress) Remaining() int {
	if r := p.Goal - p.Calories; r > 0 {
		return r
	}
	return 0
}

// Tracker accumulates calories per user on top of a [store.Store].
type Tracker struct {
	store     store.Store
	dailyGoal int
	cycleHour int
	loc       *time.Location
}

// Opts are the options for creating a [Tracker] with [NewTracker].
type Opts struct {
	// Store persists per-user progress records. Required.
	Store store.Store
	// DailyGoal is the calorie goal for each cycle.
	// Defaults to [DefaultDailyGoal].
	DailyGoal int
	// CycleHour is the hour of day, from 1 to 23, at which a new cycle
	// begins. Zero selects [DefaultCycleHour].
	CycleHour int
	// Location is the time zone in which the cycle boundary is computed.
	// Defaults to [time.Local].
	Location *time.Location
}

// NewTracker creates a new [Tracker].
func NewTracker(opts Opts) *Tracker {
	t := &Tracker{
		store:     opts.Store,
		dailyGoal: opts.DailyGoal,
		cycleHour: opts.CycleHour,
		loc:       opts.Location,
	}
	if t.dailyGoal <= 0 {
		t.dailyGoal = DefaultDailyGoal
	}
	if t.cycleHour <= 0 || t.cycleHour > 23 {
		t.cycleHour = DefaultCycleHour
	}
	if t.loc == nil {
		t.loc = time.Local
	}
	return t
}

// cycleStart returns the start of the cycle that now falls into.
func (t *Tracker) cycleStart(now time.Time) time.Time {
	now = now.In(t.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), t.cycleHour, 0, 0, 0, t.loc)
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

func key(userID int64) string { return "progress/" + strconv.FormatInt(userID, 10) }

// AddMeal adds calories to the user's total for the cycle now falls into
// and returns the updated progress. Negative deltas are clamped so the
// total never goes below zero.
func (t *Tracker) AddMeal(ctx context.Context, userID int64, calories int, now time.Time) (Progress, error) {
	return t.update(ctx, userID, now, func(p *Progress) {
		p.Calories += calories
		if p.Calories < 0 {
			p.Calories = 0
		}
	})
}

// Current returns the user's progress for the cycle now falls into without
// modifying the total. If the stored record belongs to an expired cycle, it
// is rolled over to a fresh one.
func (t *Tracker) Current(ctx context.Context, userID int64, now time.Time) (Progress, error) {
	return t.update(ctx, userID, now, func(p *Progress) {})
}

// Reset zeroes the user's total and re-anchors the cycle at the boundary
// now falls into.
func (t *Tracker) Reset(ctx context.Context, userID int64, now time.Time) (Progress, error) {
	start := t.cycleStart(now)
	return t.update(ctx, userID, now, func(p *Progress) {
		p.Calories = 0
		p.CycleStart = start
	})
}

// update loads the user's record, rolls it over if its cycle expired,
// applies f and stores the result, all atomically.
func (t *Tracker) update(ctx context.Context, userID int64, now time.Time, f func(p *Progress)) (Progress, error) {
	start := t.cycleStart(now)

	var p Progress
	_, err := t.store.Update(ctx, key(userID), func(old []byte) ([]byte, error) {
		p = Progress{UserID: userID, CycleStart: start}
		if old != nil {
			var stored Progress
			// A record that doesn't unmarshal is treated as absent.
			if err := json.Unmarshal(old, &stored); err == nil && !stored.CycleStart.Before(start) {
				p = stored
				p.UserID = userID
			}
		}
		// The goal comes from configuration, never from the stored record.
		p.Goal = t.dailyGoal
		f(&p)
		return json.Marshal(p)
	})
	if err != nil {
		return Progress{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return p, nil
}
