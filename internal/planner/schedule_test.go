package planner

import (
	"testing"
	"time"

	"tripline/internal/models"
)

func clockAt(hour, min int) time.Time {
	return time.Date(2025, 4, 12, hour, min, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

// workedChain reproduces the reference scenario: start departs 09:00 with a
// 30 minute leg, one waypoint with a 60 minute stay and a 0 minute leg to
// the goal.
func workedChain(t *testing.T) Chain {
	t.Helper()

	anchor := clockAt(9, 0)
	stops := []models.Stop{
		{Model: gormModel(1), Kind: models.StopKindStart, DepartureTime: &anchor, MoveTimeMin: 30},
		{Model: gormModel(2), Kind: models.StopKindWaypoint, Position: 1, StayDurationMin: intPtr(60), MoveTimeMin: 0},
		{Model: gormModel(3), Kind: models.StopKindGoal},
	}
	chain, err := NewChain(stops)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return chain
}

func wantClock(t *testing.T, label string, got *time.Time, hour, min int) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s is unset, want %02d:%02d", label, hour, min)
	}
	if !got.Equal(clockAt(hour, min)) {
		t.Fatalf("%s = %s, want %02d:%02d", label, got.Format("15:04"), hour, min)
	}
}

func TestPropagateScheduleWorkedExample(t *testing.T) {
	out := PropagateSchedule(workedChain(t))

	wantClock(t, "waypoint arrival", out[1].ArrivalTime, 9, 30)
	wantClock(t, "waypoint departure", out[1].DepartureTime, 10, 30)
	wantClock(t, "goal arrival", out[2].ArrivalTime, 10, 30)
	if out[2].DepartureTime != nil {
		t.Fatalf("goal has a departure time; it is terminal")
	}
}

func TestPropagateScheduleStayChange(t *testing.T) {
	chain := workedChain(t)
	chain[1].StayDurationMin = intPtr(120)

	out := PropagateSchedule(chain)

	wantClock(t, "waypoint arrival", out[1].ArrivalTime, 9, 30)
	wantClock(t, "waypoint departure", out[1].DepartureTime, 11, 30)
	wantClock(t, "goal arrival", out[2].ArrivalTime, 11, 30)
}

func TestPropagateScheduleUnsetStaySchedulesAsZero(t *testing.T) {
	chain := workedChain(t)
	chain[1].StayDurationMin = nil

	out := PropagateSchedule(chain)

	wantClock(t, "waypoint arrival", out[1].ArrivalTime, 9, 30)
	wantClock(t, "waypoint departure", out[1].DepartureTime, 9, 30)
	wantClock(t, "goal arrival", out[2].ArrivalTime, 9, 30)
}

func TestPropagateScheduleNoAnchorClearsTimes(t *testing.T) {
	chain := workedChain(t)
	stale := clockAt(7, 0)
	chain[1].ArrivalTime = &stale
	chain[1].DepartureTime = &stale
	chain[2].ArrivalTime = &stale
	chain.Start().DepartureTime = nil

	out := PropagateSchedule(chain)

	for i := 1; i < len(out); i++ {
		if out[i].ArrivalTime != nil || out[i].DepartureTime != nil {
			t.Fatalf("stop %d still has times after the anchor was cleared", i)
		}
	}
}

func TestPropagateScheduleIdempotent(t *testing.T) {
	once := PropagateSchedule(workedChain(t))
	twice := PropagateSchedule(once)

	for i := range once {
		if !timesEqual(once[i].ArrivalTime, twice[i].ArrivalTime) {
			t.Fatalf("stop %d arrival changed on re-run", i)
		}
		if !timesEqual(once[i].DepartureTime, twice[i].DepartureTime) {
			t.Fatalf("stop %d departure changed on re-run", i)
		}
	}
}

func TestPropagateScheduleInvariants(t *testing.T) {
	anchor := clockAt(8, 15)
	stops := []models.Stop{
		{Model: gormModel(1), Kind: models.StopKindStart, DepartureTime: &anchor, MoveTimeMin: 25},
		{Model: gormModel(2), Kind: models.StopKindWaypoint, Position: 1, StayDurationMin: intPtr(45), MoveTimeMin: 40},
		{Model: gormModel(3), Kind: models.StopKindWaypoint, Position: 2, MoveTimeMin: 0},
		{Model: gormModel(4), Kind: models.StopKindWaypoint, Position: 3, StayDurationMin: intPtr(0), MoveTimeMin: 90},
		{Model: gormModel(5), Kind: models.StopKindGoal},
	}
	chain, err := NewChain(stops)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	out := PropagateSchedule(chain)

	// Monotonic schedule: arrival at i+1 never precedes departure from i.
	for i := 0; i < len(out)-1; i++ {
		dep := out[i].DepartureTime
		arr := out[i+1].ArrivalTime
		if dep == nil || arr == nil {
			t.Fatalf("stop %d..%d missing schedule times", i, i+1)
		}
		if arr.Before(*dep) {
			t.Fatalf("arrival at stop %d precedes departure from stop %d", i+1, i)
		}
	}

	// Stay identity: departure == arrival + stay (unset counts as zero).
	for i := 1; i < len(out)-1; i++ {
		want := out[i].ArrivalTime.Add(time.Duration(out[i].StayMinutes()) * time.Minute)
		if !out[i].DepartureTime.Equal(want) {
			t.Fatalf("stop %d departure = %v, want arrival+stay = %v", i, out[i].DepartureTime, want)
		}
	}
}

func TestPropagateScheduleDoesNotMutateInput(t *testing.T) {
	chain := workedChain(t)
	PropagateSchedule(chain)

	if chain[1].ArrivalTime != nil {
		t.Fatalf("input chain gained an arrival time")
	}
	if chain[2].ArrivalTime != nil {
		t.Fatalf("input goal gained an arrival time")
	}
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
