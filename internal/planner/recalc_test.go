package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"tripline/internal/directions"
	"tripline/internal/models"
)

// routedChain builds a chain with waypointCount waypoints, a 09:00 anchor
// and sentinel leg metrics, plus a mock provider seeded with every ordered
// pair so any adjacency the engine produces can be resolved.
func routedChain(t *testing.T, waypointCount int) (Chain, *directions.MockProvider) {
	t.Helper()

	chain := testChain(t, waypointCount)
	anchor := clockAt(9, 0)
	chain.Start().DepartureTime = &anchor
	for i := range chain {
		chain[i].MoveTimeMin = 99
		chain[i].MoveDistanceKm = 99
	}

	var pairs []directions.MockPair
	for i := range chain {
		for j := range chain {
			if i == j {
				continue
			}
			pairs = append(pairs, directions.MockPair{
				From:    directions.LatLng{Lat: chain[i].Lat, Lng: chain[i].Lng},
				To:      directions.LatLng{Lat: chain[j].Lat, Lng: chain[j].Lng},
				Minutes: 30,
				Km:      12.5,
			})
		}
	}
	return chain, directions.NewMockProvider(pairs)
}

func TestStayEditNeverCallsProvider(t *testing.T) {
	chain, provider := routedChain(t, 2)
	engine := NewEngine(provider)

	chain[1].StayDurationMin = intPtr(90)
	out, err := engine.Apply(context.Background(), Edit{Kind: EditStay, StopID: chain[1].ID}, chain)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if provider.Calls() != 0 {
		t.Fatalf("stay edit made %d provider calls, want 0", provider.Calls())
	}

	// The schedule still propagates downstream through the goal.
	for i := 1; i < len(out); i++ {
		if out[i].ArrivalTime == nil {
			t.Fatalf("stop %d has no arrival time after stay edit", i)
		}
	}
	wantArrival := out[1].DepartureTime.Add(99 * time.Minute) // sentinel leg
	if !out[2].ArrivalTime.Equal(wantArrival) {
		t.Fatalf("downstream arrival not repropagated")
	}
}

func TestMemoEditRunsNoStage(t *testing.T) {
	chain, provider := routedChain(t, 1)
	engine := NewEngine(provider)

	out, err := engine.Apply(context.Background(), Edit{Kind: EditMemo}, chain)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if provider.Calls() != 0 {
		t.Fatalf("memo edit made %d provider calls, want 0", provider.Calls())
	}
	for i := range out {
		if out[i].MoveTimeMin != 99 {
			t.Fatalf("memo edit rewrote leg metrics")
		}
		if !timesEqual(out[i].ArrivalTime, chain[i].ArrivalTime) {
			t.Fatalf("memo edit rewrote schedule times")
		}
	}
}

func TestTollToggleRecomputesOnlyItsLeg(t *testing.T) {
	chain, provider := routedChain(t, 3)
	engine := NewEngine(provider)

	target := chain[2] // waypoint at position 2
	out, err := engine.Apply(context.Background(), Edit{Kind: EditToll, StopID: target.ID}, chain)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if provider.Calls() != 1 {
		t.Fatalf("toll toggle made %d provider calls, want 1", provider.Calls())
	}
	if out[2].MoveTimeMin != 30 || out[2].MoveDistanceKm != 12.5 {
		t.Fatalf("toggled stop's leg was not recomputed")
	}
	for _, i := range []int{0, 1, 3} {
		if out[i].MoveTimeMin != 99 {
			t.Fatalf("leg of stop %d was recomputed, want untouched", i)
		}
	}
	// Schedule still re-runs over the whole chain.
	if out.Goal().ArrivalTime == nil {
		t.Fatalf("goal not rescheduled after toll toggle")
	}
}

func TestTollToggleOnGoalRejected(t *testing.T) {
	chain, provider := routedChain(t, 1)
	engine := NewEngine(provider)

	_, err := engine.Apply(context.Background(), Edit{Kind: EditToll, StopID: chain.Goal().ID}, chain)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound (goal owns no leg)", err)
	}
}

func TestFullRecomputationCoversEveryLeg(t *testing.T) {
	cases := []struct {
		name string
		kind EditKind
	}{
		{"insert", EditInsert},
		{"remove", EditRemove},
		{"reorder", EditReorder},
		{"bulk_adopt", EditBulkAdopt},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain, provider := routedChain(t, 2)
			engine := NewEngine(provider)

			out, err := engine.Apply(context.Background(), Edit{Kind: tc.kind}, chain)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}

			wantLegs := len(chain) - 1
			if provider.Calls() != wantLegs {
				t.Fatalf("made %d provider calls, want %d", provider.Calls(), wantLegs)
			}
			for i := 0; i < len(out)-1; i++ {
				if out[i].MoveTimeMin != 30 {
					t.Fatalf("leg of stop %d not refreshed", i)
				}
			}
			if out.Goal().MoveTimeMin != 99 {
				// Goal keeps its sentinel: it never owns a computed leg.
				t.Fatalf("goal stop received leg metrics")
			}
		})
	}
}

func TestRemovalExampleRecomputesRouteAndSchedule(t *testing.T) {
	chain, _ := routedChain(t, 3)

	mutated, err := RemoveWaypointAt(chain, 2)
	if err != nil {
		t.Fatalf("RemoveWaypointAt: %v", err)
	}

	// Rebuild the provider for the shortened chain.
	var pairs []directions.MockPair
	for i := 0; i < len(mutated)-1; i++ {
		pairs = append(pairs, directions.MockPair{
			From:    directions.LatLng{Lat: mutated[i].Lat, Lng: mutated[i].Lng},
			To:      directions.LatLng{Lat: mutated[i+1].Lat, Lng: mutated[i+1].Lng},
			Minutes: 20,
			Km:      8,
		})
	}
	provider := directions.NewMockProvider(pairs)
	engine := NewEngine(provider)

	out, err := engine.Apply(context.Background(), Edit{Kind: EditRemove}, mutated)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	assertContiguous(t, out)
	if got := len(out.Waypoints()); got != 2 {
		t.Fatalf("waypoint count = %d, want 2", got)
	}
	if provider.Calls() != 3 {
		t.Fatalf("made %d provider calls, want 3", provider.Calls())
	}
	wantGoal := clockAt(10, 0) // 09:00 + 3 legs * 20 min, no stays
	if out.Goal().ArrivalTime == nil || !out.Goal().ArrivalTime.Equal(wantGoal) {
		t.Fatalf("goal arrival = %v, want 10:00", out.Goal().ArrivalTime)
	}
}

func TestProviderFailureLeavesInputUntouched(t *testing.T) {
	chain, provider := routedChain(t, 2)
	provider.Err = errors.New("boom")
	engine := NewEngine(provider)

	out, err := engine.Apply(context.Background(), Edit{Kind: EditInsert}, chain)
	if out != nil {
		t.Fatalf("Apply returned a chain alongside an error")
	}
	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}

	for i := range chain {
		if chain[i].MoveTimeMin != 99 || chain[i].MoveDistanceKm != 99 {
			t.Fatalf("input chain metrics were modified despite the failure")
		}
	}
}

func TestPartialProviderFailureDoesNotLeak(t *testing.T) {
	chain, provider := routedChain(t, 2)
	provider.FailAfter = 1 // first leg succeeds, second fails
	engine := NewEngine(provider)

	_, err := engine.Apply(context.Background(), Edit{Kind: EditReorder}, chain)
	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}

	// Even the leg that succeeded before the failure must not surface.
	for i := range chain {
		if chain[i].MoveTimeMin != 99 {
			t.Fatalf("partial route results leaked into the input chain")
		}
	}
}

func TestRouteStageCompletesBeforeScheduleStage(t *testing.T) {
	chain, provider := routedChain(t, 1)
	engine := NewEngine(provider)

	out, err := engine.Apply(context.Background(), Edit{Kind: EditInsert}, chain)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// The schedule must be built from the fresh 30-minute legs, not the 99
	// minute sentinels that were on the chain when the edit began.
	wantWpArrival := clockAt(9, 30)
	if out[1].ArrivalTime == nil || !out[1].ArrivalTime.Equal(wantWpArrival) {
		t.Fatalf("waypoint arrival = %v, want 09:30 (fresh leg metrics)", out[1].ArrivalTime)
	}
}

func TestTollPreferenceReachesProvider(t *testing.T) {
	chain, _ := routedChain(t, 0)
	chain.Start().TollUsed = true

	var seen []directions.Request
	engine := NewEngine(requestRecorder{seen: &seen})

	if _, err := engine.Apply(context.Background(), Edit{Kind: EditToll, StopID: chain.Start().ID}, chain); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("provider saw %d requests, want 1", len(seen))
	}
	if !seen[0].TollAllowed {
		t.Fatalf("toll preference not forwarded to the provider")
	}
}

type requestRecorder struct {
	seen *[]directions.Request
}

func (r requestRecorder) ComputeLeg(ctx context.Context, req directions.Request) (directions.Leg, error) {
	*r.seen = append(*r.seen, req)
	return directions.Leg{MoveTimeMin: 5, MoveDistanceKm: 1}, nil
}

func TestBuildSummary(t *testing.T) {
	chain := workedChain(t)
	chain[0].MoveDistanceKm = 12.3
	chain[1].MoveDistanceKm = 3.2

	out := PropagateSchedule(chain)
	summary := BuildSummary(out)

	if len(summary.Waypoints) != 1 {
		t.Fatalf("summary waypoints = %d, want 1", len(summary.Waypoints))
	}
	wp := summary.Waypoints[0]
	if wp.ArrivalTime == nil || *wp.ArrivalTime != "09:30" {
		t.Fatalf("summary arrival = %v, want 09:30", wp.ArrivalTime)
	}
	if wp.DepartureTime == nil || *wp.DepartureTime != "10:30" {
		t.Fatalf("summary departure = %v, want 10:30", wp.DepartureTime)
	}
	if wp.MoveDistance != 3.2 {
		t.Fatalf("summary distance = %v, want 3.2 (one decimal)", wp.MoveDistance)
	}

	if summary.Totals.TimeExcludingGoal != 30 {
		t.Fatalf("time excluding goal = %d, want 30", summary.Totals.TimeExcludingGoal)
	}
	if summary.Totals.TimeIncludingGoal != 30 {
		t.Fatalf("time including goal = %d, want 30", summary.Totals.TimeIncludingGoal)
	}
	if summary.Totals.DistanceExcludingGoal != 12.3 {
		t.Fatalf("distance excluding goal = %v, want 12.3", summary.Totals.DistanceExcludingGoal)
	}
	if summary.Totals.DistanceIncludingGoal != 15.5 {
		t.Fatalf("distance including goal = %v, want 15.5", summary.Totals.DistanceIncludingGoal)
	}
}

func TestChainRequiresStartAndGoal(t *testing.T) {
	_, err := NewChain([]models.Stop{
		{Kind: models.StopKindWaypoint, Position: 1},
	})
	if err == nil {
		t.Fatalf("NewChain accepted a chain without start and goal")
	}
}
